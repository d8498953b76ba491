package notification

import (
	"context"
	"fmt"

	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/platform/logger"
)

// Subscriber listens for campaign completion and mails the report to
// the configured operator address.
type Subscriber struct {
	sender *SMTPSender
	notify string
	log    *logger.Logger
}

// NewSubscriber creates the notification subscriber. Either a nil
// sender or an empty notify address disables delivery.
func NewSubscriber(sender *SMTPSender, notifyAddress string, log *logger.Logger) *Subscriber {
	return &Subscriber{sender: sender, notify: notifyAddress, log: log}
}

// Register attaches the subscriber to the event bus.
func (s *Subscriber) Register(bus events.Bus) {
	bus.Subscribe("campaigns.completed", events.HandlerFunc(func(ctx context.Context, ev events.Event) error {
		completed, ok := ev.(events.CampaignCompleted)
		if !ok {
			return fmt.Errorf("unexpected event type %T", ev)
		}
		return s.handleCampaignCompleted(ctx, completed)
	}))
}

func (s *Subscriber) handleCampaignCompleted(ctx context.Context, ev events.CampaignCompleted) error {
	if s.sender == nil || s.notify == "" {
		return nil
	}

	err := s.sender.SendCampaignReport(ctx, s.notify, ev.Name,
		ev.TotalContacts, ev.CompletedCalls, ev.NoAnswerCalls, ev.FailedCalls)
	if err != nil {
		s.log.WithCampaign(ev.CampaignID).Error("campaign report email failed", "error", err.Error())
		return err
	}

	s.log.WithCampaign(ev.CampaignID).Info("campaign report email sent", "to", s.notify)
	return nil
}
