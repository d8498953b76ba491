package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/internal/voiceai"
	"voicecampaign_backend/platform/apperr"
	"voicecampaign_backend/platform/logger"
)

// SessionAPI is the voice AI provider surface the service needs to
// collect post-call artifacts.
type SessionAPI interface {
	GetSession(ctx context.Context, sessionID string) (*voiceai.SessionDetail, error)
	Transcript(ctx context.Context, sessionID, cursor string) (*voiceai.TranscriptPage, error)
	RecordingURL(ctx context.Context, sessionID string) (string, error)
	DownloadRecording(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// RecordingArchive stores call recordings durably. Implementations may
// be absent, in which case only the provider's signed URL is kept.
type RecordingArchive interface {
	StoreRecording(ctx context.Context, callID string, body io.Reader, size int64) (objectKey string, err error)
	RecordingLink(ctx context.Context, objectKey string) (string, error)
}

// ContactResolver writes a terminal contact status back to the
// campaign a call belongs to.
type ContactResolver interface {
	ResolveByCallID(ctx context.Context, callID, contactStatus string) error
}

// HangupEvent carries the fields the telephony provider posts when a
// call ends.
type HangupEvent struct {
	CallUUID     string
	CallStatus   string
	DurationSecs int
	HangupCause  string
	HangupSource string
}

// Service implements call record queries, hangup resolution and
// post-call artifact collection.
type Service struct {
	repo     *Repository
	sessions SessionAPI
	archive  RecordingArchive
	resolver ContactResolver
	eventBus events.Bus
	log      *logger.Logger
}

// NewService creates a new calls service. The archive and resolver may
// be nil when object storage or campaign write-back is not configured.
func NewService(repo *Repository, sessions SessionAPI, archive RecordingArchive, resolver ContactResolver, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, sessions: sessions, archive: archive, resolver: resolver, eventBus: eventBus, log: log}
}

// Repository exposes the underlying repository for composition.
func (s *Service) Repository() *Repository { return s.repo }

// List returns recent call records, optionally filtered by campaign.
func (s *Service) List(ctx context.Context, campaignID *int64, limit int) ([]CallRecord, error) {
	records, err := s.repo.List(ctx, campaignID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list calls", err)
	}
	return records, nil
}

// Get retrieves a single call record.
func (s *Service) Get(ctx context.Context, callID string) (CallRecord, error) {
	rec, err := s.repo.GetByCallID(ctx, callID)
	if errors.Is(err, ErrCallNotFound) {
		return CallRecord{}, apperr.Wrap(apperr.KindNotFound, "call not found", err)
	}
	if err != nil {
		return CallRecord{}, apperr.Wrap(apperr.KindInternal, "failed to load call", err)
	}
	return rec, nil
}

// AnswerJoinURL returns the voice AI join URL stored for a call. The
// answer webhook uses it to bridge the leg the moment the callee picks
// up.
func (s *Service) AnswerJoinURL(ctx context.Context, callUUID string) (string, error) {
	rec, err := s.repo.GetByCallID(ctx, callUUID)
	if err != nil {
		return "", err
	}
	if rec.JoinURL == "" {
		return "", fmt.Errorf("call %s has no join url", callUUID)
	}
	return rec.JoinURL, nil
}

// ResolveHangup applies a hangup webhook to the call record, maps the
// terminal outcome and writes it back to the owning campaign contact.
func (s *Service) ResolveHangup(ctx context.Context, ev HangupEvent) (CallRecord, error) {
	now := time.Now().UTC()
	rec, err := s.repo.ApplyProviderUpdate(ctx, ev.CallUUID, ProviderUpdate{
		CallState:    ev.CallStatus,
		DurationSecs: ev.DurationSecs,
		EndedAt:      &now,
		HangupCause:  ev.HangupCause,
		HangupSource: ev.HangupSource,
	})
	if err != nil {
		return CallRecord{}, err
	}

	outcome := CanonicalOutcome(rec.CallState, rec.HangupCause)
	s.log.CallEvent("hangup", rec.CallID, derefCampaign(rec.CampaignID),
		fmt.Sprintf("cause=%s outcome=%s", rec.HangupCause, outcome))

	if contactStatus, terminal := ContactStatusForOutcome(outcome); terminal {
		if s.resolver != nil {
			if err := s.resolver.ResolveByCallID(ctx, rec.CallID, contactStatus); err != nil {
				s.log.DatabaseError("resolve contact for hangup", err)
			}
		}
		// Only answered calls produce artifacts worth collecting; an
		// unanswered session never yields a transcript or recording.
		if outcome == OutcomeCompleted {
			if err := s.repo.EnsureAnalysis(ctx, rec.CallID, rec.SessionID); err != nil {
				s.log.DatabaseError("ensure analysis row", err)
			}
		}
		s.publishResolved(ctx, rec, outcome)
	}
	return rec, nil
}

func (s *Service) publishResolved(ctx context.Context, rec CallRecord, outcome string) {
	if s.eventBus == nil {
		return
	}
	sessionID := ""
	if rec.SessionID != nil {
		sessionID = *rec.SessionID
	}
	s.eventBus.Publish(ctx, events.CallResolved{
		BaseEvent:  events.NewBaseEvent(),
		CallID:     rec.CallID,
		SessionID:  sessionID,
		CampaignID: derefCampaign(rec.CampaignID),
		CallState:  rec.CallState,
		Outcome:    outcome,
	})
}

// FetchTranscript returns the call transcript, fetching and caching it
// from the voice AI provider on first access.
func (s *Service) FetchTranscript(ctx context.Context, callID string) (json.RawMessage, error) {
	rec, err := s.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if len(rec.Transcript) > 0 {
		return rec.Transcript, nil
	}
	if rec.SessionID == nil {
		return nil, apperr.NotFound("call has no voice session")
	}
	if s.sessions == nil {
		return nil, apperr.Unavailable("voice AI provider not configured")
	}

	var messages []json.RawMessage
	cursor := ""
	for {
		page, err := s.sessions.Transcript(ctx, *rec.SessionID, cursor)
		if err != nil {
			if errors.Is(err, voiceai.ErrSessionNotFound) {
				return nil, apperr.Wrap(apperr.KindNotFound, "transcript not available", err)
			}
			return nil, apperr.Wrap(apperr.KindUnavailable, "failed to fetch transcript", err)
		}
		messages = append(messages, page.Results...)
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	transcript, err := json.Marshal(messages)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to encode transcript", err)
	}
	if err := s.repo.SetTranscript(ctx, callID, transcript); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to cache transcript", err)
	}
	if _, err := s.repo.MarkAnalysis(ctx, callID, true, false, false); err != nil && !errors.Is(err, ErrCallNotFound) {
		s.log.DatabaseError("mark transcript fetched", err)
	}
	return transcript, nil
}

// FetchRecording returns a URL for the call recording. When an archive
// is configured the recording is downloaded once, stored, and served
// from the archive afterwards.
func (s *Service) FetchRecording(ctx context.Context, callID string) (string, error) {
	rec, err := s.Get(ctx, callID)
	if err != nil {
		return "", err
	}
	if rec.RecordingObjectKey != "" && s.archive != nil {
		return s.archive.RecordingLink(ctx, rec.RecordingObjectKey)
	}
	if rec.SessionID == nil {
		return "", apperr.NotFound("call has no voice session")
	}
	if s.sessions == nil {
		return "", apperr.Unavailable("voice AI provider not configured")
	}

	url, err := s.sessions.RecordingURL(ctx, *rec.SessionID)
	if err != nil {
		if errors.Is(err, voiceai.ErrRecordingNotReady) {
			return "", apperr.Wrap(apperr.KindNotFound, "recording not ready", err)
		}
		return "", apperr.Wrap(apperr.KindUnavailable, "failed to fetch recording url", err)
	}

	objectKey := ""
	if s.archive != nil {
		body, size, err := s.sessions.DownloadRecording(ctx, url)
		if err != nil {
			s.log.ProviderError("voiceai", "download recording", err)
		} else {
			objectKey, err = s.archive.StoreRecording(ctx, callID, body, size)
			body.Close()
			if err != nil {
				s.log.ProviderError("storage", "archive recording", err)
				objectKey = ""
			}
		}
	}
	if err := s.repo.SetRecording(ctx, callID, url, objectKey); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to cache recording", err)
	}
	if _, err := s.repo.MarkAnalysis(ctx, callID, false, true, false); err != nil && !errors.Is(err, ErrCallNotFound) {
		s.log.DatabaseError("mark recording fetched", err)
	}
	if objectKey != "" && s.archive != nil {
		return s.archive.RecordingLink(ctx, objectKey)
	}
	return url, nil
}

// FetchSummary returns the call summary, fetching the session detail
// from the voice AI provider when it is not cached yet.
func (s *Service) FetchSummary(ctx context.Context, callID string) (string, error) {
	rec, err := s.Get(ctx, callID)
	if err != nil {
		return "", err
	}
	if rec.Summary != "" {
		return rec.Summary, nil
	}
	if rec.SessionID == nil {
		return "", apperr.NotFound("call has no voice session")
	}
	if s.sessions == nil {
		return "", apperr.Unavailable("voice AI provider not configured")
	}

	detail, err := s.sessions.GetSession(ctx, *rec.SessionID)
	if err != nil {
		if errors.Is(err, voiceai.ErrSessionNotFound) {
			return "", apperr.Wrap(apperr.KindNotFound, "session not found", err)
		}
		return "", apperr.Wrap(apperr.KindUnavailable, "failed to fetch session", err)
	}
	payload, _ := json.Marshal(detail)
	if err := s.repo.SetSessionPayload(ctx, callID, payload, detail.Summary); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to cache session", err)
	}
	if detail.Summary != "" {
		if _, err := s.repo.MarkAnalysis(ctx, callID, false, false, true); err != nil && !errors.Is(err, ErrCallNotFound) {
			s.log.DatabaseError("mark summary fetched", err)
		}
	}
	return detail.Summary, nil
}

// CollectArtifacts attempts to fetch every missing artifact for a call
// in one pass. It is the unit of work behind the background analysis
// task and returns the accumulated status.
func (s *Service) CollectArtifacts(ctx context.Context, callID string) (AnalysisStatus, error) {
	rec, err := s.repo.GetByCallID(ctx, callID)
	if err != nil {
		return AnalysisStatus{}, err
	}
	if err := s.repo.EnsureAnalysis(ctx, callID, rec.SessionID); err != nil {
		return AnalysisStatus{}, err
	}
	status, err := s.repo.GetAnalysis(ctx, callID)
	if err != nil {
		return AnalysisStatus{}, err
	}

	gotTranscript, gotRecording, gotSummary := false, false, false
	if !status.TranscriptFetched {
		if _, err := s.FetchTranscript(ctx, callID); err == nil {
			gotTranscript = true
		} else if !apperr.Is(err, apperr.KindNotFound) && !apperr.Is(err, apperr.KindUnavailable) {
			return status, err
		}
	}
	if !status.RecordingFetched {
		if _, err := s.FetchRecording(ctx, callID); err == nil {
			gotRecording = true
		} else if !apperr.Is(err, apperr.KindNotFound) && !apperr.Is(err, apperr.KindUnavailable) {
			return status, err
		}
	}
	if !status.SummaryFetched {
		if summary, err := s.FetchSummary(ctx, callID); err == nil && summary != "" {
			gotSummary = true
		} else if err != nil && !apperr.Is(err, apperr.KindNotFound) && !apperr.Is(err, apperr.KindUnavailable) {
			return status, err
		}
	}
	return s.repo.MarkAnalysis(ctx, callID, gotTranscript, gotRecording, gotSummary)
}

func derefCampaign(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
