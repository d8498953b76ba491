// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"voicecampaign_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Campaign Domain Events
// =============================================================================

// CampaignStarted is published when a campaign transitions to running.
type CampaignStarted struct {
	BaseEvent
	CampaignID int64  `json:"campaignId"`
	Name       string `json:"name"`
}

func (e CampaignStarted) EventName() string { return "campaigns.started" }

// CampaignCompleted is published when every contact of a campaign has
// reached a terminal status.
type CampaignCompleted struct {
	BaseEvent
	CampaignID     int64  `json:"campaignId"`
	Name           string `json:"name"`
	TotalContacts  int    `json:"totalContacts"`
	CompletedCalls int    `json:"completedCalls"`
	FailedCalls    int    `json:"failedCalls"`
	NoAnswerCalls  int    `json:"noAnswerCalls"`
}

func (e CampaignCompleted) EventName() string { return "campaigns.completed" }

// ContactStatusChanged is published when a contact moves between statuses.
type ContactStatusChanged struct {
	BaseEvent
	CampaignID int64  `json:"campaignId"`
	ContactID  int64  `json:"contactId"`
	CallID     string `json:"callId,omitempty"`
	OldStatus  string `json:"oldStatus"`
	NewStatus  string `json:"newStatus"`
}

func (e ContactStatusChanged) EventName() string { return "campaigns.contact.status_changed" }

// =============================================================================
// Call Domain Events
// =============================================================================

// CallResolved is published when a live call reaches a terminal state and
// its outcome has been written back to the contact.
type CallResolved struct {
	BaseEvent
	CallID     string `json:"callId"`
	SessionID  string `json:"sessionId,omitempty"`
	CampaignID int64  `json:"campaignId"`
	CallState  string `json:"callState"`
	Outcome    string `json:"outcome"`
}

func (e CallResolved) EventName() string { return "calls.resolved" }
