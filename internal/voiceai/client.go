// Package voiceai wraps the Ultravox REST API. A session pairs one
// telephony call with one AI agent conversation; the join URL returned
// at session creation is what the telephony answer webhook streams to.
package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voicecampaign_backend/platform/config"
	"voicecampaign_backend/platform/logger"
)

// ErrSessionNotFound is returned when the provider has no session for
// the requested ID.
var ErrSessionNotFound = errors.New("voiceai: session not found")

// ErrRecordingNotReady is returned when the recording for a session has
// not been produced yet.
var ErrRecordingNotReady = errors.New("voiceai: recording not ready")

// Client talks to the Ultravox REST API using an API key header.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// InitialMessage is a scripted opening line spoken by the agent.
type InitialMessage struct {
	Text string `json:"text"`
}

// InactivityMessage re-engages a silent callee after a delay.
type InactivityMessage struct {
	Duration string `json:"duration"`
	Message  string `json:"message"`
}

// SessionRequest configures a new voice AI session.
type SessionRequest struct {
	SystemPrompt       string              `json:"systemPrompt"`
	Temperature        float64             `json:"temperature"`
	LanguageHint       string              `json:"languageHint,omitempty"`
	Voice              string              `json:"voice,omitempty"`
	InitialMessages    []InitialMessage    `json:"initialMessages"`
	MaxDuration        string              `json:"maxDuration,omitempty"`
	InactivityMessages []InactivityMessage `json:"inactivityMessages"`
	SelectedTools      []json.RawMessage   `json:"selectedTools"`
	RecordingEnabled   bool                `json:"recordingEnabled"`
	TranscriptOptional bool                `json:"transcriptOptional"`
	Medium             map[string]any      `json:"medium"`
	VADSettings        map[string]any      `json:"vadSettings,omitempty"`
}

// Session is the provider acknowledgement of a created session.
type Session struct {
	SessionID string `json:"callId"`
	JoinURL   string `json:"joinUrl"`
}

// SessionDetail is the provider view of a session's lifecycle.
type SessionDetail struct {
	SessionID    string `json:"callId"`
	Created      string `json:"created"`
	Joined       string `json:"joined"`
	Ended        string `json:"ended"`
	EndReason    string `json:"endReason"`
	FirstSpeaker string `json:"firstSpeaker"`
	LanguageHint string `json:"languageHint"`
	Voice        string `json:"voice"`
	ErrorCount   int    `json:"errorCount"`
	Summary      string `json:"summary"`
	ShortSummary string `json:"shortSummary"`
}

// TranscriptPage is one page of conversation messages.
type TranscriptPage struct {
	Results  []json.RawMessage `json:"results"`
	Total    int               `json:"total"`
	Next     string            `json:"next"`
	Previous string            `json:"previous"`
}

// NewClient creates a voice AI client. Returns nil when no API key is
// configured, which callers treat as the provider being disabled.
func NewClient(cfg config.VoiceAIConfig, log *logger.Logger) *Client {
	if cfg.GetVoiceAIAPIKey() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetVoiceAIBaseURL(), "/"),
		apiKey:  cfg.GetVoiceAIAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// CreateSession starts a new voice AI session and returns its join URL.
// The greeting prompt flag makes the agent speak first once the media
// stream connects.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.InitialMessages == nil {
		req.InitialMessages = []InitialMessage{}
	}
	if req.InactivityMessages == nil {
		req.InactivityMessages = []InactivityMessage{}
	}
	if req.SelectedTools == nil {
		req.SelectedTools = []json.RawMessage{}
	}
	if req.Medium == nil {
		req.Medium = map[string]any{"plivo": map[string]any{}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal session payload: %w", err)
	}

	endpoint := c.baseURL + "/calls?enableGreetingPrompt=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create session request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("voice AI API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}
	if session.JoinURL == "" {
		return nil, fmt.Errorf("voice AI API returned no join URL")
	}
	if !strings.HasPrefix(session.JoinURL, "wss://") {
		return nil, fmt.Errorf("voice AI API returned malformed join URL %q", session.JoinURL)
	}

	c.log.Info("voice AI session created", "session_id", session.SessionID)
	return &session, nil
}

// GetSession fetches session lifecycle details including the summary
// fields produced after the session ends.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	endpoint := fmt.Sprintf("%s/calls/%s", c.baseURL, url.PathEscape(sessionID))

	var detail SessionDetail
	if err := c.getJSON(ctx, endpoint, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Transcript fetches one page of conversation messages for a session.
// Pass an empty cursor for the first page; follow Next for the rest.
func (c *Client) Transcript(ctx context.Context, sessionID, cursor string) (*TranscriptPage, error) {
	endpoint := fmt.Sprintf("%s/calls/%s/messages", c.baseURL, url.PathEscape(sessionID))
	if cursor != "" {
		endpoint += "?cursor=" + url.QueryEscape(cursor)
	}

	var page TranscriptPage
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RecordingURL resolves the download URL for a session recording. The
// provider answers with a redirect to short-lived signed storage.
func (c *Client) RecordingURL(ctx context.Context, sessionID string) (string, error) {
	endpoint := fmt.Sprintf("%s/calls/%s/recording", c.baseURL, url.PathEscape(sessionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	// Stop at the redirect so we can hand the signed URL to the caller.
	client := &http.Client{
		Timeout: c.http.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recording request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrRecordingNotReady
	case resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode < http.StatusBadRequest:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("voice AI API redirect had no location")
		}
		return location, nil
	case resp.StatusCode == http.StatusOK:
		return endpoint, nil
	default:
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("voice AI API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
}

// DownloadRecording streams the recording bytes for archival.
func (c *Client) DownloadRecording(ctx context.Context, recordingURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("recording download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("recording download returned %d", resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("voice AI request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrSessionNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("voice AI API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode voice AI response: %w", err)
	}
	return nil
}
