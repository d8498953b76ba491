package adapters

import (
	"context"
	"errors"
	"fmt"

	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/events"
)

// ContactResolver adapts the campaigns repository to the contact
// write-back the calls service performs when a hangup webhook lands.
type ContactResolver struct {
	repo     *campaigns.Repository
	eventBus events.Bus
}

// NewContactResolver creates a new contact resolver adapter.
func NewContactResolver(repo *campaigns.Repository, eventBus events.Bus) *ContactResolver {
	return &ContactResolver{repo: repo, eventBus: eventBus}
}

// ResolveByCallID writes a terminal status to the contact that owns
// the call. A call with no contact (direct placement) is a no-op.
func (a *ContactResolver) ResolveByCallID(ctx context.Context, callID, contactStatus string) error {
	contact, err := a.repo.GetContactByCallID(ctx, callID)
	if errors.Is(err, campaigns.ErrContactNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up contact for call %s: %w", callID, err)
	}

	if err := a.repo.SetContactStatus(ctx, contact.ID, contactStatus); err != nil {
		return fmt.Errorf("set contact %d status: %w", contact.ID, err)
	}

	if a.eventBus != nil {
		a.eventBus.Publish(ctx, events.ContactStatusChanged{
			BaseEvent:  events.NewBaseEvent(),
			CampaignID: contact.CampaignID,
			ContactID:  contact.ID,
			CallID:     callID,
			OldStatus:  contact.Status,
			NewStatus:  contactStatus,
		})
	}
	return nil
}

// Compile-time check against the calls service interface.
var _ calls.ContactResolver = (*ContactResolver)(nil)
