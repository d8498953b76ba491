// Package calls provides the call bounded context: the record of every
// placed call, its terminal outcome, and the post-call artifacts
// (transcript, recording, summary) fetched from the voice AI provider.
package calls

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCallNotFound is returned when no call record exists for the given id.
var ErrCallNotFound = errors.New("call record not found")

// CallRecord is the persisted history of a single outbound call.
type CallRecord struct {
	ID                 int64           `json:"id"`
	CallID             string          `json:"callId"`
	SessionID          *string         `json:"sessionId"`
	AgentID            string          `json:"agentId"`
	CampaignID         *int64          `json:"campaignId"`
	ToNumber           string          `json:"toNumber"`
	FromNumber         string          `json:"fromNumber"`
	CallState          string          `json:"callState"`
	DurationSecs       int             `json:"durationSecs"`
	InitiatedAt        *time.Time      `json:"initiatedAt"`
	AnsweredAt         *time.Time      `json:"answeredAt"`
	EndedAt            *time.Time      `json:"endedAt"`
	HangupCause        string          `json:"hangupCause"`
	HangupSource       string          `json:"hangupSource"`
	JoinURL            string          `json:"-"`
	ProviderPayload    json.RawMessage `json:"providerPayload,omitempty"`
	SessionPayload     json.RawMessage `json:"sessionPayload,omitempty"`
	Transcript         json.RawMessage `json:"transcript,omitempty"`
	RecordingURL       string          `json:"recordingUrl,omitempty"`
	RecordingObjectKey string          `json:"recordingObjectKey,omitempty"`
	Summary            string          `json:"summary,omitempty"`
	SystemPrompt       string          `json:"-"`
	LanguageHint       string          `json:"languageHint,omitempty"`
	Voice              string          `json:"voice,omitempty"`
	MaxDuration        int             `json:"maxDuration,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// AnalysisStatus tracks which post-call artifacts have been fetched for
// a call. Flags only ever move from false to true.
type AnalysisStatus struct {
	CallID            string     `json:"callId"`
	SessionID         *string    `json:"sessionId"`
	TranscriptFetched bool       `json:"transcriptFetched"`
	RecordingFetched  bool       `json:"recordingFetched"`
	SummaryFetched    bool       `json:"summaryFetched"`
	IsComplete        bool       `json:"isComplete"`
	LastCheckedAt     *time.Time `json:"lastCheckedAt"`
}

// ProviderUpdate carries the fields a reconciliation pass or hangup
// webhook learned about a call. Empty strings and nil times leave the
// stored value untouched.
type ProviderUpdate struct {
	CallState       string
	DurationSecs    int
	InitiatedAt     *time.Time
	AnsweredAt      *time.Time
	EndedAt         *time.Time
	HangupCause     string
	HangupSource    string
	ProviderPayload json.RawMessage
}

// Repository provides data access for call records and their analysis
// status rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new calls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const callColumns = `id, call_id, session_id, agent_id, campaign_id, to_number, from_number,
	call_state, duration_secs, initiated_at, answered_at, ended_at, hangup_cause, hangup_source,
	join_url, provider_payload, session_payload, transcript, recording_url, recording_object_key,
	summary, system_prompt, language_hint, voice, max_duration, created_at, updated_at`

func scanCallRecord(row pgx.Row) (CallRecord, error) {
	var c CallRecord
	err := row.Scan(
		&c.ID, &c.CallID, &c.SessionID, &c.AgentID, &c.CampaignID, &c.ToNumber, &c.FromNumber,
		&c.CallState, &c.DurationSecs, &c.InitiatedAt, &c.AnsweredAt, &c.EndedAt, &c.HangupCause,
		&c.HangupSource, &c.JoinURL, &c.ProviderPayload, &c.SessionPayload, &c.Transcript,
		&c.RecordingURL, &c.RecordingObjectKey, &c.Summary, &c.SystemPrompt, &c.LanguageHint,
		&c.Voice, &c.MaxDuration, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// Create inserts a new call record. The call id only exists once the
// provider acknowledges the dial, so the record is written immediately
// after that acknowledgement; the answer webhook looks the join URL up
// by call id.
func (r *Repository) Create(ctx context.Context, c CallRecord) (CallRecord, error) {
	return scanCallRecord(r.pool.QueryRow(ctx, `
		INSERT INTO call_records (
			call_id, session_id, agent_id, campaign_id, to_number, from_number, call_state,
			join_url, session_payload, system_prompt, language_hint, voice, max_duration
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+callColumns+`
	`, c.CallID, c.SessionID, c.AgentID, c.CampaignID, c.ToNumber, c.FromNumber, c.CallState,
		c.JoinURL, c.SessionPayload, c.SystemPrompt, c.LanguageHint, c.Voice, c.MaxDuration))
}

// GetByCallID retrieves a call record by its telephony call id.
func (r *Repository) GetByCallID(ctx context.Context, callID string) (CallRecord, error) {
	c, err := scanCallRecord(r.pool.QueryRow(ctx, `
		SELECT `+callColumns+` FROM call_records WHERE call_id = $1
	`, callID))
	if errors.Is(err, pgx.ErrNoRows) {
		return CallRecord{}, ErrCallNotFound
	}
	return c, err
}

// GetBySessionID retrieves a call record by its voice AI session id.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (CallRecord, error) {
	c, err := scanCallRecord(r.pool.QueryRow(ctx, `
		SELECT `+callColumns+` FROM call_records WHERE session_id = $1
	`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return CallRecord{}, ErrCallNotFound
	}
	return c, err
}

// List returns recent call records, optionally filtered by campaign.
func (r *Repository) List(ctx context.Context, campaignID *int64, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+callColumns+` FROM call_records
		WHERE ($1::bigint IS NULL OR campaign_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CallRecord
	for rows.Next() {
		c, err := scanCallRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ApplyProviderUpdate merges the fields learned from the telephony
// provider into the stored record. Empty values never overwrite
// previously stored ones, so a late ambiguous poll cannot erase a
// terminal state written by the hangup webhook.
func (r *Repository) ApplyProviderUpdate(ctx context.Context, callID string, u ProviderUpdate) (CallRecord, error) {
	c, err := scanCallRecord(r.pool.QueryRow(ctx, `
		UPDATE call_records
		SET call_state       = COALESCE(NULLIF($2, ''), call_state),
		    duration_secs    = GREATEST(duration_secs, $3),
		    initiated_at     = COALESCE($4, initiated_at),
		    answered_at      = COALESCE($5, answered_at),
		    ended_at         = COALESCE($6, ended_at),
		    hangup_cause     = COALESCE(NULLIF($7, ''), hangup_cause),
		    hangup_source    = COALESCE(NULLIF($8, ''), hangup_source),
		    provider_payload = COALESCE($9, provider_payload),
		    updated_at       = now()
		WHERE call_id = $1
		RETURNING `+callColumns+`
	`, callID, u.CallState, u.DurationSecs, u.InitiatedAt, u.AnsweredAt, u.EndedAt,
		u.HangupCause, u.HangupSource, u.ProviderPayload))
	if errors.Is(err, pgx.ErrNoRows) {
		return CallRecord{}, ErrCallNotFound
	}
	return c, err
}

// SetSessionPayload stores the raw session detail fetched from the
// voice AI provider alongside its summary fields.
func (r *Repository) SetSessionPayload(ctx context.Context, callID string, payload json.RawMessage, summary string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_records
		SET session_payload = $2,
		    summary = COALESCE(NULLIF($3, ''), summary),
		    updated_at = now()
		WHERE call_id = $1
	`, callID, payload, summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// SetTranscript caches the fetched transcript on the call record.
func (r *Repository) SetTranscript(ctx context.Context, callID string, transcript json.RawMessage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_records SET transcript = $2, updated_at = now() WHERE call_id = $1
	`, callID, transcript)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// SetRecording caches the recording URL and, when the recording was
// archived to object storage, the object key it was stored under.
func (r *Repository) SetRecording(ctx context.Context, callID, recordingURL, objectKey string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_records
		SET recording_url = $2,
		    recording_object_key = COALESCE(NULLIF($3, ''), recording_object_key),
		    updated_at = now()
		WHERE call_id = $1
	`, callID, recordingURL, objectKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// SetSummary caches the call summary on the call record.
func (r *Repository) SetSummary(ctx context.Context, callID, summary string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_records SET summary = $2, updated_at = now() WHERE call_id = $1
	`, callID, summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// EnsureAnalysis creates the analysis tracking row for a call if it
// does not already exist.
func (r *Repository) EnsureAnalysis(ctx context.Context, callID string, sessionID *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO call_analysis_status (call_id, session_id)
		VALUES ($1, $2)
		ON CONFLICT (call_id) DO NOTHING
	`, callID, sessionID)
	return err
}

// GetAnalysis retrieves the analysis status for a call.
func (r *Repository) GetAnalysis(ctx context.Context, callID string) (AnalysisStatus, error) {
	var s AnalysisStatus
	err := r.pool.QueryRow(ctx, `
		SELECT call_id, session_id, transcript_fetched, recording_fetched, summary_fetched, is_complete, last_checked_at
		FROM call_analysis_status WHERE call_id = $1
	`, callID).Scan(&s.CallID, &s.SessionID, &s.TranscriptFetched, &s.RecordingFetched,
		&s.SummaryFetched, &s.IsComplete, &s.LastCheckedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AnalysisStatus{}, ErrCallNotFound
	}
	return s, err
}

// MarkAnalysis records which artifacts were fetched on this pass. Flags
// accumulate: a true is never reset, and is_complete is derived from
// the accumulated flags.
func (r *Repository) MarkAnalysis(ctx context.Context, callID string, transcript, recording, summary bool) (AnalysisStatus, error) {
	var s AnalysisStatus
	err := r.pool.QueryRow(ctx, `
		UPDATE call_analysis_status
		SET transcript_fetched = transcript_fetched OR $2,
		    recording_fetched  = recording_fetched OR $3,
		    summary_fetched    = summary_fetched OR $4,
		    is_complete        = (transcript_fetched OR $2) AND (recording_fetched OR $3) AND (summary_fetched OR $4),
		    last_checked_at    = now(),
		    updated_at         = now()
		WHERE call_id = $1
		RETURNING call_id, session_id, transcript_fetched, recording_fetched, summary_fetched, is_complete, last_checked_at
	`, callID, transcript, recording, summary).Scan(&s.CallID, &s.SessionID, &s.TranscriptFetched,
		&s.RecordingFetched, &s.SummaryFetched, &s.IsComplete, &s.LastCheckedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AnalysisStatus{}, ErrCallNotFound
	}
	return s, err
}

// ListIncompleteAnalyses returns analysis rows that still have missing
// artifacts, oldest check first.
func (r *Repository) ListIncompleteAnalyses(ctx context.Context, limit int) ([]AnalysisStatus, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT call_id, session_id, transcript_fetched, recording_fetched, summary_fetched, is_complete, last_checked_at
		FROM call_analysis_status
		WHERE NOT is_complete
		ORDER BY last_checked_at NULLS FIRST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AnalysisStatus
	for rows.Next() {
		var s AnalysisStatus
		if err := rows.Scan(&s.CallID, &s.SessionID, &s.TranscriptFetched, &s.RecordingFetched,
			&s.SummaryFetched, &s.IsComplete, &s.LastCheckedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// AnalysisCompleteCount returns how many of a campaign's contacts have
// a call whose analysis artifacts are all fetched.
func (r *Repository) AnalysisCompleteCount(ctx context.Context, campaignID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM campaign_contacts cc
		JOIN call_analysis_status cas ON cas.call_id = cc.call_id
		WHERE cc.campaign_id = $1 AND cas.is_complete
	`, campaignID).Scan(&count)
	return count, err
}
