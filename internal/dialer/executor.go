package dialer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/platform/config"
	"voicecampaign_backend/platform/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// dispatchLockName serializes campaign dispatch across processes so
// two executors can never admit calls for the same campaign at once.
const dispatchLockName = "campaign_dispatch"

// ErrAlreadyRunning is returned when Start is called on a running
// executor.
var ErrAlreadyRunning = errors.New("executor already running")

// Executor supervises campaign execution: one loop admits and places
// calls under the dispatch lock, another reconciles in-flight calls and
// keeps progress current.
type Executor struct {
	campaignStore CampaignStore
	callStore     CallStore
	gateway       *Gateway
	reconciler    *Reconciler
	locker        Locker
	eventBus      events.Bus
	cfg           config.DialerConfig
	log           *logger.Logger
	pacer         *rate.Limiter
	throttle      *logThrottle

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
}

// Status reports the executor's run state.
type Status struct {
	Running   bool       `json:"running"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

// NewExecutor creates a campaign executor. It does not start any loops.
func NewExecutor(campaignStore CampaignStore, callStore CallStore, gateway *Gateway, reconciler *Reconciler, locker Locker, eventBus events.Bus, cfg config.DialerConfig, log *logger.Logger) *Executor {
	return &Executor{
		campaignStore: campaignStore,
		callStore:     callStore,
		gateway:       gateway,
		reconciler:    reconciler,
		locker:        locker,
		eventBus:      eventBus,
		cfg:           cfg,
		log:           log,
		pacer:         rate.NewLimiter(rate.Every(cfg.GetCallInterval()), 1),
		throttle:      newLogThrottle(time.Minute),
	}
}

// Start launches the dispatch and reconcile loops. The loops run until
// Stop is called; they do not inherit the caller's context so an HTTP
// request starting the executor does not tear it down on return.
func (e *Executor) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.startedAt = time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.loop(gctx, e.cfg.GetPollInterval(), e.dispatchCycle) })
	g.Go(func() error { return e.loop(gctx, e.cfg.GetPollInterval(), e.reconcileCycle) })

	done := e.done
	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error("executor stopped", "error", err)
		}
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		close(done)
	}()

	e.log.Info("executor started",
		"poll_interval", e.cfg.GetPollInterval().String(),
		"batch_size", e.cfg.GetCampaignBatchSize(),
		"max_concurrent_calls", e.cfg.GetMaxConcurrentCalls(),
	)
	return nil
}

// Stop signals the loops to exit and waits for them, bounded by ctx.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns whether the loops are running.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel == nil {
		return Status{Running: false}
	}
	startedAt := e.startedAt
	return Status{Running: true, StartedAt: &startedAt}
}

// loop runs fn immediately and then on every tick until ctx ends.
func (e *Executor) loop(ctx context.Context, every time.Duration, fn func(context.Context)) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	e.runCycle(ctx, fn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.runCycle(ctx, fn)
		}
	}
}

// runCycle contains a panicking cycle so one bad iteration does not
// take the loop down; the next tick runs normally.
func (e *Executor) runCycle(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("executor cycle panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn(ctx)
}

// dispatchCycle runs one admission pass under the dispatch lock:
// promote due schedules, then for each running campaign place at most
// enough calls to reach the per-campaign concurrency cap.
func (e *Executor) dispatchCycle(ctx context.Context) {
	if !e.locker.Acquire(ctx, dispatchLockName, e.cfg.GetLockTimeout(), e.cfg.GetLockAcquireTimeout()) {
		if e.throttle.Allow("dispatch-lock") {
			e.log.Warn("dispatch lock not acquired, skipping cycle")
		}
		return
	}
	defer e.locker.Release(ctx, dispatchLockName)

	e.promoteScheduled(ctx)

	batch, err := e.campaignStore.ListByStatus(ctx, campaigns.StatusRunning, e.cfg.GetCampaignBatchSize())
	if err != nil {
		e.log.DatabaseError("list running campaigns", err)
		return
	}
	for _, campaign := range batch {
		if ctx.Err() != nil {
			return
		}
		e.dispatchCampaign(ctx, campaign)
	}
}

// promoteScheduled moves campaigns whose schedule time has passed into
// running.
func (e *Executor) promoteScheduled(ctx context.Context) {
	due, err := e.campaignStore.ListScheduledDue(ctx, time.Now().UTC())
	if err != nil {
		e.log.DatabaseError("list due campaigns", err)
		return
	}
	for _, campaign := range due {
		if err := e.campaignStore.SetStatus(ctx, campaign.ID, campaigns.StatusRunning); err != nil {
			e.log.DatabaseError("promote scheduled campaign", err)
			continue
		}
		e.log.WithCampaign(campaign.ID).Info("campaign promoted to running", "name", campaign.Name)
		if e.eventBus != nil {
			e.eventBus.Publish(ctx, events.CampaignStarted{
				BaseEvent:  events.NewBaseEvent(),
				CampaignID: campaign.ID,
				Name:       campaign.Name,
			})
		}
	}
}

// dispatchCampaign admits the next call for one campaign. Admission is
// re-derived from persisted contact status each cycle, so a crashed
// executor cannot leak an in-flight slot.
func (e *Executor) dispatchCampaign(ctx context.Context, campaign campaigns.Campaign) {
	counts, err := e.campaignStore.ContactStatusCounts(ctx, campaign.ID)
	if err != nil {
		e.log.DatabaseError("contact status counts", err)
		return
	}
	if counts[campaigns.ContactCalling] >= e.cfg.GetMaxConcurrentCalls() {
		return
	}
	if Exhausted(counts) {
		e.completeCampaign(ctx, campaign)
		return
	}

	contact, err := e.campaignStore.NextPendingContact(ctx, campaign.ID)
	if err != nil {
		e.log.DatabaseError("next pending contact", err)
		return
	}
	if contact == nil {
		// Pending drained but calls still in flight; reconciliation
		// will finish the campaign.
		return
	}

	if err := e.pacer.Wait(ctx); err != nil {
		return
	}
	if _, err := e.gateway.PlaceContactCall(ctx, campaign, *contact); err != nil {
		e.log.WithCampaign(campaign.ID).Error("call placement failed",
			"contact_id", contact.ID, "error", err.Error())
	}
}

// reconcileCycle resolves in-flight calls and refreshes progress for
// every campaign that changed, completing those that drained.
func (e *Executor) reconcileCycle(ctx context.Context) {
	changed, err := e.reconciler.ReconcileAll(ctx)
	if err != nil {
		e.log.DatabaseError("reconcile calls", err)
		return
	}
	for _, campaignID := range changed {
		counts, err := RefreshProgress(ctx, e.campaignStore, e.callStore, campaignID)
		if err != nil {
			e.log.DatabaseError("refresh progress", err)
			continue
		}
		if !Exhausted(counts) {
			continue
		}
		campaign, err := e.campaignStore.Get(ctx, campaignID)
		if err != nil {
			e.log.DatabaseError("load campaign", err)
			continue
		}
		if campaign.Status == campaigns.StatusRunning {
			e.completeCampaign(ctx, campaign)
		}
	}
}

// completeCampaign marks a drained campaign completed and announces it.
func (e *Executor) completeCampaign(ctx context.Context, campaign campaigns.Campaign) {
	counts, err := RefreshProgress(ctx, e.campaignStore, e.callStore, campaign.ID)
	if err != nil {
		e.log.DatabaseError("refresh progress", err)
		return
	}
	if err := e.campaignStore.SetStatus(ctx, campaign.ID, campaigns.StatusCompleted); err != nil {
		e.log.DatabaseError("complete campaign", err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	e.log.WithCampaign(campaign.ID).Info("campaign completed",
		"name", campaign.Name,
		"completed", counts[campaigns.ContactCompleted],
		"failed", counts[campaigns.ContactFailed],
		"no_answer", counts[campaigns.ContactNoAnswer],
	)
	if e.eventBus != nil {
		e.eventBus.Publish(ctx, events.CampaignCompleted{
			BaseEvent:      events.NewBaseEvent(),
			CampaignID:     campaign.ID,
			Name:           campaign.Name,
			TotalContacts:  total,
			CompletedCalls: counts[campaigns.ContactCompleted],
			FailedCalls:    counts[campaigns.ContactFailed],
			NoAnswerCalls:  counts[campaigns.ContactNoAnswer],
		})
	}
}
