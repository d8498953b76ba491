// Package telephony wraps the Plivo voice REST API. It covers only the
// operations the dialer needs: placing outbound calls and reading live
// or completed call resources.
package telephony

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

// ErrCallNotFound is returned when the provider has no resource for the
// requested call UUID. For live lookups that usually means the call has
// already ended.
var ErrCallNotFound = errors.New("telephony: call not found")

// Client talks to the Plivo REST API using basic auth.
type Client struct {
	baseURL   string
	authID    string
	authToken string
	http      *http.Client
	log       *logger.Logger
}

// PlaceCallRequest describes an outbound call to initiate.
type PlaceCallRequest struct {
	From        string
	To          string
	AnswerURL   string
	HangupURL   string
	MaxDuration string
}

// PlaceCallResponse is the provider acknowledgement of a placed call.
type PlaceCallResponse struct {
	RequestUUID string `json:"request_uuid"`
	Message     string `json:"message"`
	APIID       string `json:"api_id"`
}

// LiveCall is the provider view of a call that is still in progress.
type LiveCall struct {
	CallUUID   string `json:"call_uuid"`
	From       string `json:"from"`
	To         string `json:"to"`
	CallStatus string `json:"call_status"`
	Direction  string `json:"direction"`
	CallerName string `json:"caller_name"`
}

// CallDetail is the provider view of a completed call.
type CallDetail struct {
	CallUUID        string `json:"call_uuid"`
	FromNumber      string `json:"from_number"`
	ToNumber        string `json:"to_number"`
	CallDirection   string `json:"call_direction"`
	CallDuration    int    `json:"call_duration"`
	BillDuration    int    `json:"bill_duration"`
	CallState       string `json:"call_state"`
	InitiationTime  string `json:"initiation_time"`
	AnswerTime      string `json:"answer_time"`
	EndTime         string `json:"end_time"`
	HangupCauseName string `json:"hangup_cause_name"`
	HangupSource    string `json:"hangup_source"`

	// Raw is the provider response body exactly as received, kept so
	// the reconciler can persist it for forensics.
	Raw json.RawMessage `json:"-"`
}

type placeCallPayload struct {
	From         string `json:"from"`
	To           string `json:"to"`
	AnswerURL    string `json:"answer_url"`
	AnswerMethod string `json:"answer_method"`
	HangupURL    string `json:"hangup_url,omitempty"`
	HangupMethod string `json:"hangup_method,omitempty"`
}

// NewClient creates a telephony client. Returns nil when no auth ID is
// configured, which callers treat as telephony being disabled.
func NewClient(cfg config.TelephonyConfig, log *logger.Logger) *Client {
	if cfg.GetTelephonyAuthID() == "" {
		return nil
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.GetTelephonyBaseURL(), "/"),
		authID:    cfg.GetTelephonyAuthID(),
		authToken: cfg.GetTelephonyAuthToken(),
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

// PlaceCall initiates an outbound call. The answer URL carries the max
// duration as a query parameter so the answer webhook can forward it to
// the voice AI session.
func (c *Client) PlaceCall(ctx context.Context, req PlaceCallRequest) (*PlaceCallResponse, error) {
	answerURL := req.AnswerURL
	if req.MaxDuration != "" {
		sep := "?"
		if strings.Contains(answerURL, "?") {
			sep = "&"
		}
		answerURL += sep + "max_duration=" + url.QueryEscape(req.MaxDuration)
	}

	payload := placeCallPayload{
		From:         req.From,
		To:           req.To,
		AnswerURL:    answerURL,
		AnswerMethod: "GET",
		HangupURL:    req.HangupURL,
		HangupMethod: "POST",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal call payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/Account/%s/Call/", c.baseURL, c.authID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.authID, c.authToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("place call request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("telephony API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result PlaceCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode place call response: %w", err)
	}
	if result.RequestUUID == "" {
		return nil, fmt.Errorf("telephony API returned no request_uuid")
	}

	c.log.CallEvent("call placed", result.RequestUUID, 0, "to "+req.To)
	return &result, nil
}

// GetLiveCall fetches a call that is still in progress.
// Returns ErrCallNotFound when the call is no longer live.
func (c *Client) GetLiveCall(ctx context.Context, callUUID string) (*LiveCall, error) {
	endpoint := fmt.Sprintf("%s/v1/Account/%s/Call/%s/?status=live", c.baseURL, c.authID, url.PathEscape(callUUID))

	var live LiveCall
	if _, err := c.getJSON(ctx, endpoint, &live); err != nil {
		return nil, err
	}
	return &live, nil
}

// GetCall fetches a completed call record.
// Returns ErrCallNotFound when the provider has no such call.
func (c *Client) GetCall(ctx context.Context, callUUID string) (*CallDetail, error) {
	endpoint := fmt.Sprintf("%s/v1/Account/%s/Call/%s/", c.baseURL, c.authID, url.PathEscape(callUUID))

	var detail CallDetail
	raw, err := c.getJSON(ctx, endpoint, &detail)
	if err != nil {
		return nil, err
	}
	detail.Raw = raw
	return &detail, nil
}

// getJSON fetches and decodes a provider resource, returning the raw
// body alongside the decoded value.
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.authID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telephony request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrCallNotFound
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read telephony response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("telephony API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("decode telephony response: %w", err)
	}
	return data, nil
}
