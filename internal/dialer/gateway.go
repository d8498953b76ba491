package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/telephony"
	"voicecampaign_backend/internal/voiceai"
	"voicecampaign_backend/platform/config"
	"voicecampaign_backend/platform/logger"
)

// ErrNoAgent is returned when a campaign has no assigned agent to
// execute calls with.
var ErrNoAgent = errors.New("campaign has no assigned agent")

// ErrProvidersNotConfigured is returned when either provider client is
// missing; calls cannot be placed without both.
var ErrProvidersNotConfigured = errors.New("telephony or voice AI provider not configured")

// ErrNoDestinationNumber is returned when the contact carries no phone
// number to dial.
var ErrNoDestinationNumber = errors.New("no destination number")

// ErrNoCallerNumber is returned when neither the campaign, the agent
// nor the configuration provides an originating number.
var ErrNoCallerNumber = errors.New("no caller number configured")

// Gateway places one outbound call end to end: it creates the voice AI
// session first so the join URL exists before the callee can answer,
// then asks the telephony provider to dial.
type Gateway struct {
	campaignStore CampaignStore
	callStore     CallStore
	agents        AgentStore
	telephonyAPI  TelephonyAPI
	voiceAPI      VoiceAIAPI
	cfg           config.TelephonyConfig
	log           *logger.Logger
}

// NewGateway creates a call placement gateway.
func NewGateway(campaignStore CampaignStore, callStore CallStore, agents AgentStore, telephonyAPI TelephonyAPI, voiceAPI VoiceAIAPI, cfg config.TelephonyConfig, log *logger.Logger) *Gateway {
	return &Gateway{
		campaignStore: campaignStore,
		callStore:     callStore,
		agents:        agents,
		telephonyAPI:  telephonyAPI,
		voiceAPI:      voiceAPI,
		cfg:           cfg,
		log:           log,
	}
}

// PlaceContactCall dials one campaign contact. Failure handling
// differs by stage: a session that cannot be created marks the contact
// failed (retrying would fail the same way), while a dial submission
// error returns the contact to pending so a later cycle can retry it.
func (g *Gateway) PlaceContactCall(ctx context.Context, campaign campaigns.Campaign, contact campaigns.Contact) (calls.CallRecord, error) {
	if g.telephonyAPI == nil || g.voiceAPI == nil {
		return calls.CallRecord{}, ErrProvidersNotConfigured
	}
	if campaign.AssignedAgentID == nil || *campaign.AssignedAgentID == "" {
		g.noteDispatchFailure(ctx, contact.ID, campaigns.ContactFailed, ErrNoAgent)
		return calls.CallRecord{}, ErrNoAgent
	}

	agent, err := g.agents.AgentProfile(ctx, *campaign.AssignedAgentID)
	if err != nil {
		g.noteDispatchFailure(ctx, contact.ID, campaigns.ContactFailed, err)
		return calls.CallRecord{}, fmt.Errorf("resolve agent %s: %w", *campaign.AssignedAgentID, err)
	}

	// Both numbers must be known before any provider is contacted. A
	// contact that cannot be dialed stays failed instead of burning a
	// voice session per cycle.
	if contact.Phone == "" {
		g.noteDispatchFailure(ctx, contact.ID, campaigns.ContactFailed, ErrNoDestinationNumber)
		return calls.CallRecord{}, ErrNoDestinationNumber
	}
	from := g.callerNumber(campaign.FromNumber, agent.FromNumber)
	if from == "" {
		g.noteDispatchFailure(ctx, contact.ID, campaigns.ContactFailed, ErrNoCallerNumber)
		return calls.CallRecord{}, ErrNoCallerNumber
	}

	opts, err := MergeCallOptions(agent, campaign.Config, nil)
	if err != nil {
		g.noteDispatchFailure(ctx, contact.ID, campaigns.ContactFailed, err)
		return calls.CallRecord{}, err
	}

	session, err := g.voiceAPI.CreateSession(ctx, g.buildSessionRequest(opts, contact))
	if err != nil {
		g.log.ProviderError("voiceai", "create session", err)
		g.noteDispatchFailure(ctx, contact.ID, campaigns.ContactFailed, err)
		return calls.CallRecord{}, fmt.Errorf("create voice session: %w", err)
	}

	placed, err := g.telephonyAPI.PlaceCall(ctx, telephony.PlaceCallRequest{
		From:        from,
		To:          contact.Phone,
		AnswerURL:   g.cfg.GetAnswerURL(),
		HangupURL:   g.cfg.GetHangupURL(),
		MaxDuration: opts.MaxDurationString(),
	})
	if err != nil {
		g.log.ProviderError("telephony", "place call", err)
		// A dial submission error is transient; the contact stays
		// eligible for the next cycle.
		g.noteDispatchFailure(ctx, contact.ID, campaigns.ContactPending, err)
		return calls.CallRecord{}, fmt.Errorf("place call: %w", err)
	}

	record, err := g.callStore.Create(ctx, calls.CallRecord{
		CallID:       placed.RequestUUID,
		SessionID:    &session.SessionID,
		AgentID:      agent.ID,
		CampaignID:   &campaign.ID,
		ToNumber:     contact.Phone,
		FromNumber:   from,
		JoinURL:      session.JoinURL,
		SystemPrompt: opts.SystemPrompt,
		LanguageHint: opts.LanguageHint,
		Voice:        opts.Voice,
		MaxDuration:  opts.MaxDurationSecs,
	})
	if err != nil {
		// The call is already dialing. Keep the contact attached to it
		// anyway so reconciliation can still resolve the outcome.
		g.log.DatabaseError("create call record", err)
	}

	callID := placed.RequestUUID
	if err := g.campaignStore.SetContactDispatch(ctx, contact.ID, campaigns.ContactCalling, &callID, nil); err != nil {
		g.log.DatabaseError("mark contact calling", err)
	}

	g.log.CallEvent("placed", callID, campaign.ID, fmt.Sprintf("to=%s agent=%s", contact.Phone, agent.ID))
	return record, nil
}

// DirectCallRequest describes a one-off call placed outside any
// campaign.
type DirectCallRequest struct {
	AgentID          string
	To               string
	From             string
	SettingsOverride json.RawMessage
}

// PlaceDirectCall dials a single number with an agent, without a
// campaign or contact attached. Used for test calls and ad hoc
// outreach.
func (g *Gateway) PlaceDirectCall(ctx context.Context, req DirectCallRequest) (calls.CallRecord, error) {
	if g.telephonyAPI == nil || g.voiceAPI == nil {
		return calls.CallRecord{}, ErrProvidersNotConfigured
	}
	agent, err := g.agents.AgentProfile(ctx, req.AgentID)
	if err != nil {
		return calls.CallRecord{}, fmt.Errorf("resolve agent %s: %w", req.AgentID, err)
	}
	if req.To == "" {
		return calls.CallRecord{}, ErrNoDestinationNumber
	}
	from := g.callerNumber(req.From, agent.FromNumber)
	if from == "" {
		return calls.CallRecord{}, ErrNoCallerNumber
	}

	opts, err := MergeCallOptions(agent, nil, req.SettingsOverride)
	if err != nil {
		return calls.CallRecord{}, err
	}

	session, err := g.voiceAPI.CreateSession(ctx, g.buildSessionRequest(opts, campaigns.Contact{Phone: req.To}))
	if err != nil {
		g.log.ProviderError("voiceai", "create session", err)
		return calls.CallRecord{}, fmt.Errorf("create voice session: %w", err)
	}

	placed, err := g.telephonyAPI.PlaceCall(ctx, telephony.PlaceCallRequest{
		From:        from,
		To:          req.To,
		AnswerURL:   g.cfg.GetAnswerURL(),
		HangupURL:   g.cfg.GetHangupURL(),
		MaxDuration: opts.MaxDurationString(),
	})
	if err != nil {
		g.log.ProviderError("telephony", "place call", err)
		return calls.CallRecord{}, fmt.Errorf("place call: %w", err)
	}

	record, err := g.callStore.Create(ctx, calls.CallRecord{
		CallID:       placed.RequestUUID,
		SessionID:    &session.SessionID,
		AgentID:      agent.ID,
		ToNumber:     req.To,
		FromNumber:   from,
		JoinURL:      session.JoinURL,
		SystemPrompt: opts.SystemPrompt,
		LanguageHint: opts.LanguageHint,
		Voice:        opts.Voice,
		MaxDuration:  opts.MaxDurationSecs,
	})
	if err != nil {
		return calls.CallRecord{}, fmt.Errorf("create call record: %w", err)
	}

	g.log.CallEvent("placed.direct", record.CallID, 0, fmt.Sprintf("to=%s agent=%s", req.To, agent.ID))
	return record, nil
}

// callerNumber resolves the originating number: the explicit number
// wins, then the agent's, then the configured default.
func (g *Gateway) callerNumber(explicit, agentFrom string) string {
	if explicit != "" {
		return explicit
	}
	if agentFrom != "" {
		return agentFrom
	}
	return g.cfg.GetCallerNumber()
}

// noteDispatchFailure moves the contact to status and records the
// failure cause in its extra blob.
func (g *Gateway) noteDispatchFailure(ctx context.Context, contactID int64, status string, cause error) {
	extra, _ := json.Marshal(map[string]string{"last_error": cause.Error()})
	if err := g.campaignStore.SetContactDispatch(ctx, contactID, status, nil, extra); err != nil {
		g.log.DatabaseError("record dispatch failure", err)
	}
}

func (g *Gateway) buildSessionRequest(opts CallOptions, contact campaigns.Contact) voiceai.SessionRequest {
	initial := make([]voiceai.InitialMessage, 0, len(opts.InitialMessages))
	for _, text := range opts.InitialMessages {
		initial = append(initial, voiceai.InitialMessage{Text: PersonalizePrompt(text, contact.Name)})
	}
	return voiceai.SessionRequest{
		SystemPrompt:       PersonalizePrompt(opts.SystemPrompt, contact.Name),
		Temperature:        opts.Temperature,
		LanguageHint:       opts.LanguageHint,
		Voice:              opts.Voice,
		InitialMessages:    initial,
		MaxDuration:        opts.MaxDurationString(),
		InactivityMessages: opts.InactivityMessages,
		RecordingEnabled:   opts.RecordingEnabled,
		TranscriptOptional: true,
		VADSettings:        opts.VADSettings,
	}
}
