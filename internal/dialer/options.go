package dialer

import (
	"encoding/json"
	"fmt"
	"strings"

	"voicecampaign_backend/internal/voiceai"
)

// Call option defaults applied when neither the agent settings nor the
// campaign config specify a value.
const (
	defaultTemperature     = 0.2
	defaultMaxDurationSecs = 300
)

// CallOptions is the fully merged configuration one call is placed
// with. Precedence, lowest to highest: defaults, campaign config,
// agent settings, per-call override.
type CallOptions struct {
	SystemPrompt       string
	Voice              string
	LanguageHint       string
	Temperature        float64
	MaxDurationSecs    int
	RecordingEnabled   bool
	InitialMessages    []string
	InactivityMessages []voiceai.InactivityMessage
	VADSettings        map[string]any
}

// settingsOverlay is the shape both agent settings and campaign config
// share. Pointer fields distinguish "absent" from zero values.
type settingsOverlay struct {
	SystemPrompt       *string                     `json:"system_prompt"`
	Voice              *string                     `json:"voice"`
	LanguageHint       *string                     `json:"language_hint"`
	Temperature        *float64                    `json:"temperature"`
	MaxDurationSecs    *int                        `json:"max_duration"`
	RecordingEnabled   *bool                       `json:"recording_enabled"`
	InitialMessages    []string                    `json:"initial_messages"`
	InactivityMessages []voiceai.InactivityMessage `json:"inactivity_messages"`
	VADSettings        map[string]any              `json:"vad_settings"`
}

func (o *CallOptions) apply(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "{}" {
		return nil
	}
	var overlay settingsOverlay
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse call settings: %w", err)
	}
	if overlay.SystemPrompt != nil && *overlay.SystemPrompt != "" {
		o.SystemPrompt = *overlay.SystemPrompt
	}
	if overlay.Voice != nil {
		o.Voice = *overlay.Voice
	}
	if overlay.LanguageHint != nil {
		o.LanguageHint = *overlay.LanguageHint
	}
	if overlay.Temperature != nil {
		o.Temperature = *overlay.Temperature
	}
	if overlay.MaxDurationSecs != nil && *overlay.MaxDurationSecs > 0 {
		o.MaxDurationSecs = *overlay.MaxDurationSecs
	}
	if overlay.RecordingEnabled != nil {
		o.RecordingEnabled = *overlay.RecordingEnabled
	}
	if overlay.InitialMessages != nil {
		o.InitialMessages = overlay.InitialMessages
	}
	if overlay.InactivityMessages != nil {
		o.InactivityMessages = overlay.InactivityMessages
	}
	if overlay.VADSettings != nil {
		o.VADSettings = overlay.VADSettings
	}
	return nil
}

// MergeCallOptions resolves the options for one call. Agent-level
// configuration beats the campaign config, and an explicit per-call
// override beats both.
func MergeCallOptions(agent AgentProfile, campaignConfig, override json.RawMessage) (CallOptions, error) {
	opts := CallOptions{
		Temperature:      defaultTemperature,
		MaxDurationSecs:  defaultMaxDurationSecs,
		RecordingEnabled: true,
	}
	if err := opts.apply(campaignConfig); err != nil {
		return CallOptions{}, err
	}

	if agent.SystemPrompt != "" {
		opts.SystemPrompt = agent.SystemPrompt
	}
	if len(agent.InitialMessages) > 0 && string(agent.InitialMessages) != "null" {
		var messages []string
		if err := json.Unmarshal(agent.InitialMessages, &messages); err != nil {
			return CallOptions{}, fmt.Errorf("parse agent initial messages: %w", err)
		}
		if len(messages) > 0 {
			opts.InitialMessages = messages
		}
	}
	if err := opts.apply(agent.Settings); err != nil {
		return CallOptions{}, err
	}

	if err := opts.apply(override); err != nil {
		return CallOptions{}, err
	}
	return opts, nil
}

// PersonalizePrompt substitutes the contact's name into the system
// prompt. Prompts without a placeholder are returned unchanged.
func PersonalizePrompt(prompt, contactName string) string {
	if contactName == "" {
		contactName = "there"
	}
	return strings.NewReplacer(
		"{contact_name}", contactName,
		"{{contact_name}}", contactName,
	).Replace(prompt)
}

// MaxDurationString renders the max duration the way the voice AI
// provider expects it, as seconds with an "s" suffix.
func (o CallOptions) MaxDurationString() string {
	return fmt.Sprintf("%ds", o.MaxDurationSecs)
}
