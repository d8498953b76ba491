package dialer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/internal/telephony"
	"voicecampaign_backend/platform/logger"
)

// staleCallAfter is how long a contact may sit in calling with no
// provider record before it is written off as failed. Covers the case
// where the provider lost the call entirely.
const staleCallAfter = 15 * time.Minute

// Reconciler resolves in-flight contacts against the telephony
// provider: live calls are left alone, ended calls get their canonical
// outcome written back to the contact and call record.
type Reconciler struct {
	campaignStore CampaignStore
	callStore     CallStore
	telephonyAPI  TelephonyAPI
	enqueuer      AnalysisEnqueuer
	eventBus      events.Bus
	log           *logger.Logger
	throttle      *logThrottle
}

// NewReconciler creates a call state reconciler.
func NewReconciler(campaignStore CampaignStore, callStore CallStore, telephonyAPI TelephonyAPI, enqueuer AnalysisEnqueuer, eventBus events.Bus, log *logger.Logger) *Reconciler {
	return &Reconciler{
		campaignStore: campaignStore,
		callStore:     callStore,
		telephonyAPI:  telephonyAPI,
		enqueuer:      enqueuer,
		eventBus:      eventBus,
		log:           log,
		throttle:      newLogThrottle(time.Minute),
	}
}

// ReconcileAll resolves every contact currently marked calling and
// returns the ids of campaigns whose contacts changed state.
func (r *Reconciler) ReconcileAll(ctx context.Context) ([]int64, error) {
	if r.telephonyAPI == nil {
		return nil, nil
	}
	contacts, err := r.campaignStore.ListCallingContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calling contacts: %w", err)
	}

	changed := make(map[int64]struct{})
	for _, contact := range contacts {
		if ctx.Err() != nil {
			break
		}
		resolved, err := r.reconcileContact(ctx, contact)
		if err != nil {
			if r.throttle.Allow(fmt.Sprintf("reconcile:%d", contact.ID)) {
				r.log.ProviderError("telephony", "reconcile call", err)
			}
			continue
		}
		if resolved {
			changed[contact.CampaignID] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	return ids, nil
}

// reconcileContact returns true when the contact reached a terminal
// status during this pass.
func (r *Reconciler) reconcileContact(ctx context.Context, contact campaigns.Contact) (bool, error) {
	if contact.CallID == nil || *contact.CallID == "" {
		// Dispatch recorded no call id; nothing to poll, write it off.
		return true, r.campaignStore.SetContactStatus(ctx, contact.ID, campaigns.ContactFailed)
	}
	callID := *contact.CallID

	_, err := r.telephonyAPI.GetLiveCall(ctx, callID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, telephony.ErrCallNotFound) {
		return false, fmt.Errorf("poll live call %s: %w", callID, err)
	}

	detail, err := r.telephonyAPI.GetCall(ctx, callID)
	if err == nil {
		return r.resolveFromDetail(ctx, contact, callID, detail)
	}
	if !errors.Is(err, telephony.ErrCallNotFound) {
		return false, fmt.Errorf("fetch call %s: %w", callID, err)
	}
	return r.resolveFromCache(ctx, contact, callID)
}

func (r *Reconciler) resolveFromDetail(ctx context.Context, contact campaigns.Contact, callID string, detail *telephony.CallDetail) (bool, error) {
	rec, err := r.callStore.ApplyProviderUpdate(ctx, callID, calls.ProviderUpdate{
		CallState:       detail.CallState,
		DurationSecs:    detail.CallDuration,
		InitiatedAt:     parseProviderTime(detail.InitiationTime),
		AnsweredAt:      parseProviderTime(detail.AnswerTime),
		EndedAt:         parseProviderTime(detail.EndTime),
		HangupCause:     detail.HangupCauseName,
		HangupSource:    detail.HangupSource,
		ProviderPayload: detail.Raw,
	})
	if err != nil && !errors.Is(err, calls.ErrCallNotFound) {
		return false, err
	}

	callState, hangupCause := detail.CallState, detail.HangupCauseName
	if err == nil {
		// The stored record may hold a terminal state from the hangup
		// webhook that the poll has not caught up with yet.
		callState, hangupCause = rec.CallState, rec.HangupCause
	}
	return r.writeOutcome(ctx, contact, callID, rec, callState, hangupCause)
}

// resolveFromCache handles calls the provider no longer knows about.
// A terminal state cached from the hangup webhook wins; otherwise the
// contact is failed once it has been stuck long enough.
func (r *Reconciler) resolveFromCache(ctx context.Context, contact campaigns.Contact, callID string) (bool, error) {
	rec, err := r.callStore.GetByCallID(ctx, callID)
	if err == nil {
		if _, terminal := calls.ContactStatusForOutcome(calls.CanonicalOutcome(rec.CallState, rec.HangupCause)); terminal {
			return r.writeOutcome(ctx, contact, callID, rec, rec.CallState, rec.HangupCause)
		}
	}
	if err != nil && !errors.Is(err, calls.ErrCallNotFound) {
		return false, err
	}
	if time.Since(contact.UpdatedAt) < staleCallAfter {
		return false, nil
	}
	r.log.CallEvent("reconcile.stale", callID, contact.CampaignID, "no provider record, failing contact")
	return true, r.campaignStore.SetContactStatus(ctx, contact.ID, campaigns.ContactFailed)
}

func (r *Reconciler) writeOutcome(ctx context.Context, contact campaigns.Contact, callID string, rec calls.CallRecord, callState, hangupCause string) (bool, error) {
	outcome := calls.CanonicalOutcome(callState, hangupCause)
	contactStatus, terminal := calls.ContactStatusForOutcome(outcome)
	if !terminal {
		return false, nil
	}

	if err := r.campaignStore.SetContactStatus(ctx, contact.ID, contactStatus); err != nil {
		return false, err
	}
	r.log.CallEvent("resolved", callID, contact.CampaignID,
		fmt.Sprintf("state=%s cause=%s outcome=%s", callState, hangupCause, outcome))

	if outcome == calls.OutcomeCompleted {
		if err := r.callStore.EnsureAnalysis(ctx, callID, rec.SessionID); err != nil {
			r.log.DatabaseError("ensure analysis row", err)
		}
		if r.enqueuer != nil {
			if err := r.enqueuer.EnqueueAnalysis(ctx, callID); err != nil {
				r.log.ProviderError("queue", "enqueue analysis", err)
			}
		}
	}

	if r.eventBus != nil {
		sessionID := ""
		if rec.SessionID != nil {
			sessionID = *rec.SessionID
		}
		r.eventBus.Publish(ctx, events.ContactStatusChanged{
			BaseEvent:  events.NewBaseEvent(),
			CampaignID: contact.CampaignID,
			ContactID:  contact.ID,
			CallID:     callID,
			OldStatus:  campaigns.ContactCalling,
			NewStatus:  contactStatus,
		})
		r.eventBus.Publish(ctx, events.CallResolved{
			BaseEvent:  events.NewBaseEvent(),
			CallID:     callID,
			SessionID:  sessionID,
			CampaignID: contact.CampaignID,
			CallState:  callState,
			Outcome:    outcome,
		})
	}
	return true, nil
}

// parseProviderTime parses the timestamp format the telephony provider
// uses in call detail records.
func parseProviderTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
