// The executor binary runs campaign dialing and background analysis
// outside the API process. The dispatch lock makes it safe to run
// alongside an API instance whose in-process executor is active.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicecampaign_backend/internal/adapters"
	"voicecampaign_backend/internal/adapters/storage"
	"voicecampaign_backend/internal/agents"
	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/dialer"
	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/internal/lock"
	"voicecampaign_backend/internal/notification"
	"voicecampaign_backend/internal/telephony"
	"voicecampaign_backend/internal/voiceai"
	"voicecampaign_backend/platform/config"
	"voicecampaign_backend/platform/db"
	"voicecampaign_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting executor", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	var telephonyAPI dialer.TelephonyAPI
	if client := telephony.NewClient(cfg, log); client != nil {
		telephonyAPI = client
	} else {
		log.Warn("telephony provider not configured; calls cannot be placed")
	}

	voiceClient := voiceai.NewClient(cfg, log)
	var voiceAPI dialer.VoiceAIAPI
	var sessionAPI calls.SessionAPI
	if voiceClient != nil {
		voiceAPI = voiceClient
		sessionAPI = voiceClient
	} else {
		log.Warn("voice AI provider not configured; sessions cannot be created")
	}

	var archive calls.RecordingArchive
	if store, err := storage.NewRecordingStore(cfg); err != nil {
		log.Warn("recording archive disabled", "reason", err.Error())
	} else {
		if err := withRetry(ctx, log, "ensure recordings bucket", 5, 2*time.Second, func() error {
			return store.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure recordings bucket", "error", err)
			panic("failed to ensure recordings bucket: " + err.Error())
		}
		archive = store
	}

	analysisQueue, err := dialer.NewClient(cfg)
	if err != nil {
		log.Warn("analysis queue disabled", "reason", err.Error())
	} else {
		defer analysisQueue.Close()
	}

	agentsService := agents.NewService(agents.NewRepository(pool), log)
	agentReader := adapters.NewAgentReader(agentsService)

	campaignRepo := campaigns.NewRepository(pool)
	callRepo := calls.NewRepository(pool)
	contactResolver := adapters.NewContactResolver(campaignRepo, eventBus)
	callsService := calls.NewService(callRepo, sessionAPI, archive, contactResolver, eventBus, log)

	notification.NewSubscriber(notification.NewSMTPSender(cfg), cfg.GetNotifyAddress(), log).
		Register(eventBus)
	dialer.NewProgressSubscriber(campaignRepo, callRepo, log).
		Register(eventBus)

	gateway := dialer.NewGateway(campaignRepo, callRepo, agentReader, telephonyAPI, voiceAPI, cfg, log)
	reconciler := dialer.NewReconciler(campaignRepo, callRepo, telephonyAPI, analysisQueue, eventBus, log)
	locker := lock.NewManager(lock.NewRepository(pool), log)
	executor := dialer.NewExecutor(campaignRepo, callRepo, gateway, reconciler, locker, eventBus, cfg, log)

	if err := executor.Start(); err != nil {
		log.Error("failed to start executor loops", "error", err)
		panic("failed to start executor loops: " + err.Error())
	}

	worker, err := dialer.NewWorker(cfg, callsService, campaignRepo, callRepo, log)
	if err != nil {
		log.Warn("analysis worker disabled", "reason", err.Error())
		<-ctx.Done()
	} else {
		// Run blocks until the context is cancelled.
		worker.Run(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := executor.Stop(shutdownCtx); err != nil {
		log.Error("executor did not stop cleanly", "error", err)
	}
	log.Info("executor stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
