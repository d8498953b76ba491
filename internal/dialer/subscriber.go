package dialer

import (
	"context"

	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/platform/logger"
)

// ProgressSubscriber recomputes campaign progress whenever a contact
// changes status, regardless of which path moved it. The poll loop only
// refreshes campaigns it touched itself; hangup webhooks land in the
// API process and would otherwise leave progress stale until the next
// reconcile pass.
type ProgressSubscriber struct {
	campaignStore CampaignStore
	callStore     CallStore
	log           *logger.Logger
}

// NewProgressSubscriber creates the progress recompute subscriber.
func NewProgressSubscriber(campaignStore CampaignStore, callStore CallStore, log *logger.Logger) *ProgressSubscriber {
	return &ProgressSubscriber{campaignStore: campaignStore, callStore: callStore, log: log}
}

// Register attaches the subscriber to the event bus.
func (s *ProgressSubscriber) Register(bus events.Bus) {
	bus.Subscribe(events.ContactStatusChanged{}.EventName(), events.HandlerFunc(s.handle))
}

func (s *ProgressSubscriber) handle(ctx context.Context, ev events.Event) error {
	changed, ok := ev.(events.ContactStatusChanged)
	if !ok || changed.CampaignID == 0 {
		return nil
	}
	if _, err := RefreshProgress(ctx, s.campaignStore, s.callStore, changed.CampaignID); err != nil {
		s.log.DatabaseError("refresh progress on contact change", err)
		return err
	}
	return nil
}
