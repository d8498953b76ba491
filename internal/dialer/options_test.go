package dialer

import (
	"encoding/json"
	"testing"
)

func TestMergeCallOptionsDefaults(t *testing.T) {
	agent := AgentProfile{SystemPrompt: "You are a friendly caller."}

	opts, err := MergeCallOptions(agent, nil, nil)
	if err != nil {
		t.Fatalf("MergeCallOptions: %v", err)
	}
	if opts.SystemPrompt != "You are a friendly caller." {
		t.Errorf("SystemPrompt = %q", opts.SystemPrompt)
	}
	if opts.Temperature != defaultTemperature {
		t.Errorf("Temperature = %v, want %v", opts.Temperature, defaultTemperature)
	}
	if opts.MaxDurationSecs != defaultMaxDurationSecs {
		t.Errorf("MaxDurationSecs = %d, want %d", opts.MaxDurationSecs, defaultMaxDurationSecs)
	}
	if !opts.RecordingEnabled {
		t.Error("RecordingEnabled = false, want true by default")
	}
}

func TestMergeCallOptionsAgentBeatsCampaign(t *testing.T) {
	agent := AgentProfile{
		SystemPrompt: "agent prompt",
		Settings:     json.RawMessage(`{"voice":"Anna","temperature":0.5,"max_duration":120}`),
	}
	campaignConfig := json.RawMessage(`{"voice":"Bert","temperature":0.8,"system_prompt":"campaign prompt","language_hint":"nl"}`)

	opts, err := MergeCallOptions(agent, campaignConfig, nil)
	if err != nil {
		t.Fatalf("MergeCallOptions: %v", err)
	}
	if opts.Voice != "Anna" {
		t.Errorf("Voice = %q, want Anna from agent settings", opts.Voice)
	}
	if opts.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5 from agent settings", opts.Temperature)
	}
	if opts.SystemPrompt != "agent prompt" {
		t.Errorf("SystemPrompt = %q, want agent prompt", opts.SystemPrompt)
	}
	if opts.MaxDurationSecs != 120 {
		t.Errorf("MaxDurationSecs = %d, want 120 from agent settings", opts.MaxDurationSecs)
	}
	if opts.LanguageHint != "nl" {
		t.Errorf("LanguageHint = %q, campaign value should fill fields the agent leaves unset", opts.LanguageHint)
	}
}

func TestMergeCallOptionsOverrideBeatsAgent(t *testing.T) {
	agent := AgentProfile{
		SystemPrompt: "agent prompt",
		Settings:     json.RawMessage(`{"voice":"Anna","temperature":0.5}`),
	}
	override := json.RawMessage(`{"voice":"Carla","system_prompt":"override prompt"}`)

	opts, err := MergeCallOptions(agent, nil, override)
	if err != nil {
		t.Fatalf("MergeCallOptions: %v", err)
	}
	if opts.Voice != "Carla" {
		t.Errorf("Voice = %q, want Carla from the per-call override", opts.Voice)
	}
	if opts.SystemPrompt != "override prompt" {
		t.Errorf("SystemPrompt = %q, want override prompt", opts.SystemPrompt)
	}
	if opts.Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5 kept from agent settings", opts.Temperature)
	}
}

func TestMergeCallOptionsAgentInitialMessages(t *testing.T) {
	agent := AgentProfile{
		SystemPrompt:    "p",
		InitialMessages: json.RawMessage(`["Hello!","How are you?"]`),
	}

	opts, err := MergeCallOptions(agent, nil, nil)
	if err != nil {
		t.Fatalf("MergeCallOptions: %v", err)
	}
	if len(opts.InitialMessages) != 2 || opts.InitialMessages[0] != "Hello!" {
		t.Errorf("InitialMessages = %v", opts.InitialMessages)
	}
}

func TestMergeCallOptionsIgnoresEmptyOverrides(t *testing.T) {
	agent := AgentProfile{SystemPrompt: "keep me"}
	campaignConfig := json.RawMessage(`{"system_prompt":"","max_duration":0}`)

	opts, err := MergeCallOptions(agent, campaignConfig, nil)
	if err != nil {
		t.Fatalf("MergeCallOptions: %v", err)
	}
	if opts.SystemPrompt != "keep me" {
		t.Errorf("SystemPrompt = %q, empty override should not clear it", opts.SystemPrompt)
	}
	if opts.MaxDurationSecs != defaultMaxDurationSecs {
		t.Errorf("MaxDurationSecs = %d, zero override should not apply", opts.MaxDurationSecs)
	}
}

func TestMergeCallOptionsBadJSON(t *testing.T) {
	agent := AgentProfile{Settings: json.RawMessage(`{not json`)}
	if _, err := MergeCallOptions(agent, nil, nil); err == nil {
		t.Fatal("expected error for malformed agent settings")
	}
}

func TestPersonalizePrompt(t *testing.T) {
	cases := []struct {
		prompt string
		name   string
		want   string
	}{
		{"Hi {contact_name}, calling about your order.", "Kim", "Hi Kim, calling about your order."},
		{"Hi {{contact_name}}!", "Kim", "Hi Kim!"},
		{"Hi {contact_name}!", "", "Hi there!"},
		{"No placeholder here.", "Kim", "No placeholder here."},
	}
	for _, tc := range cases {
		if got := PersonalizePrompt(tc.prompt, tc.name); got != tc.want {
			t.Errorf("PersonalizePrompt(%q, %q) = %q, want %q", tc.prompt, tc.name, got, tc.want)
		}
	}
}

func TestMaxDurationString(t *testing.T) {
	opts := CallOptions{MaxDurationSecs: 240}
	if got := opts.MaxDurationString(); got != "240s" {
		t.Errorf("MaxDurationString() = %q, want 240s", got)
	}
}
