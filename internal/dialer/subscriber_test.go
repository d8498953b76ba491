package dialer

import (
	"context"
	"testing"

	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/platform/logger"
)

func TestProgressSubscriberRefreshesOnContactChange(t *testing.T) {
	log := logger.New("test")
	campaignStore := newFakeCampaignStore()
	callStore := newFakeCallStore()
	campaignStore.campaigns[1] = campaigns.Campaign{ID: 1, Status: campaigns.StatusRunning}
	campaignStore.contacts = append(campaignStore.contacts,
		&campaigns.Contact{ID: 100, CampaignID: 1, Status: campaigns.ContactCompleted},
		&campaigns.Contact{ID: 101, CampaignID: 1, Status: campaigns.ContactPending},
	)

	bus := events.NewInMemoryBus(log)
	NewProgressSubscriber(campaignStore, callStore, log).Register(bus)

	err := bus.PublishSync(context.Background(), events.ContactStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: 1,
		ContactID:  100,
		CallID:     "uuid-1",
		OldStatus:  campaigns.ContactCalling,
		NewStatus:  campaigns.ContactCompleted,
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	got, _ := campaignStore.Get(context.Background(), 1)
	if got.ProgressPct != 50 {
		t.Errorf("progress = %d, want 50 after one of two contacts resolved", got.ProgressPct)
	}
}

func TestProgressSubscriberIgnoresDirectCalls(t *testing.T) {
	log := logger.New("test")
	campaignStore := newFakeCampaignStore()
	callStore := newFakeCallStore()

	bus := events.NewInMemoryBus(log)
	NewProgressSubscriber(campaignStore, callStore, log).Register(bus)

	// A call without a campaign produces a zero campaign id; the
	// subscriber must not try to refresh anything.
	err := bus.PublishSync(context.Background(), events.ContactStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		CallID:    "uuid-1",
		NewStatus: campaigns.ContactCompleted,
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}
}
