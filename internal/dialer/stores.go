// Package dialer executes campaigns: it admits at most a configured
// number of in-flight calls per campaign, places calls through the
// telephony and voice AI providers, reconciles their terminal state and
// keeps campaign progress up to date.
package dialer

import (
	"context"
	"encoding/json"
	"time"

	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/telephony"
	"voicecampaign_backend/internal/voiceai"
)

// CampaignStore is the campaign persistence the dialer drives. It is
// satisfied by the campaigns repository.
type CampaignStore interface {
	Get(ctx context.Context, id int64) (campaigns.Campaign, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]campaigns.Campaign, error)
	ListScheduledDue(ctx context.Context, now time.Time) ([]campaigns.Campaign, error)
	SetStatus(ctx context.Context, id int64, status string) error
	SetProgress(ctx context.Context, id int64, progressPct, analysisPct int) error
	NextPendingContact(ctx context.Context, campaignID int64) (*campaigns.Contact, error)
	ContactStatusCounts(ctx context.Context, campaignID int64) (map[string]int, error)
	ListCallingContacts(ctx context.Context) ([]campaigns.Contact, error)
	SetContactStatus(ctx context.Context, contactID int64, status string) error
	SetContactDispatch(ctx context.Context, contactID int64, status string, callID *string, extra json.RawMessage) error
}

// CallStore is the call record persistence the dialer writes. It is
// satisfied by the calls repository.
type CallStore interface {
	Create(ctx context.Context, c calls.CallRecord) (calls.CallRecord, error)
	GetByCallID(ctx context.Context, callID string) (calls.CallRecord, error)
	ApplyProviderUpdate(ctx context.Context, callID string, u calls.ProviderUpdate) (calls.CallRecord, error)
	EnsureAnalysis(ctx context.Context, callID string, sessionID *string) error
	AnalysisCompleteCount(ctx context.Context, campaignID int64) (int, error)
}

// AgentProfile is the agent configuration a call is executed with.
type AgentProfile struct {
	ID              string
	Name            string
	SystemPrompt    string
	FromNumber      string
	InitialMessages json.RawMessage
	Settings        json.RawMessage
}

// AgentStore resolves agent profiles. It is satisfied by the agents
// adapter.
type AgentStore interface {
	AgentProfile(ctx context.Context, agentID string) (AgentProfile, error)
}

// TelephonyAPI is the telephony provider surface the dialer needs.
type TelephonyAPI interface {
	PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (*telephony.PlaceCallResponse, error)
	GetLiveCall(ctx context.Context, callUUID string) (*telephony.LiveCall, error)
	GetCall(ctx context.Context, callUUID string) (*telephony.CallDetail, error)
}

// VoiceAIAPI is the voice AI provider surface the dialer needs.
type VoiceAIAPI interface {
	CreateSession(ctx context.Context, req voiceai.SessionRequest) (*voiceai.Session, error)
}

// Locker serializes dispatch across processes.
type Locker interface {
	Acquire(ctx context.Context, name string, holdFor, waitFor time.Duration) bool
	Release(ctx context.Context, name string)
}

// AnalysisEnqueuer schedules background artifact collection for a call.
type AnalysisEnqueuer interface {
	EnqueueAnalysis(ctx context.Context, callID string) error
}
