package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"voicecampaign_backend/internal/calls"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/telephony"
	"voicecampaign_backend/internal/voiceai"
	"voicecampaign_backend/platform/logger"
)

type fakeCampaignStore struct {
	mu        sync.Mutex
	campaigns map[int64]campaigns.Campaign
	contacts  []*campaigns.Contact
}

func newFakeCampaignStore() *fakeCampaignStore {
	return &fakeCampaignStore{campaigns: make(map[int64]campaigns.Campaign)}
}

func (s *fakeCampaignStore) Get(ctx context.Context, id int64) (campaigns.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return campaigns.Campaign{}, campaigns.ErrCampaignNotFound
	}
	return c, nil
}

func (s *fakeCampaignStore) ListByStatus(ctx context.Context, status string, limit int) ([]campaigns.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []campaigns.Campaign
	for _, c := range s.campaigns {
		if c.Status == status && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCampaignStore) ListScheduledDue(ctx context.Context, now time.Time) ([]campaigns.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []campaigns.Campaign
	for _, c := range s.campaigns {
		if c.Status == campaigns.StatusScheduled && c.ScheduleAt != nil && !c.ScheduleAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCampaignStore) SetStatus(ctx context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	c.Status = status
	s.campaigns[id] = c
	return nil
}

func (s *fakeCampaignStore) SetProgress(ctx context.Context, id int64, progressPct, analysisPct int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	c.ProgressPct = progressPct
	c.AnalysisProgressPct = analysisPct
	s.campaigns[id] = c
	return nil
}

func (s *fakeCampaignStore) NextPendingContact(ctx context.Context, campaignID int64) (*campaigns.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if contact.CampaignID == campaignID && contact.Status == campaigns.ContactPending {
			copied := *contact
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeCampaignStore) ContactStatusCounts(ctx context.Context, campaignID int64) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, contact := range s.contacts {
		if contact.CampaignID == campaignID {
			counts[contact.Status]++
		}
	}
	return counts, nil
}

func (s *fakeCampaignStore) ListCallingContacts(ctx context.Context) ([]campaigns.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []campaigns.Contact
	for _, contact := range s.contacts {
		if contact.Status == campaigns.ContactCalling {
			out = append(out, *contact)
		}
	}
	return out, nil
}

func (s *fakeCampaignStore) SetContactStatus(ctx context.Context, contactID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if contact.ID == contactID {
			contact.Status = status
			contact.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("contact %d not found", contactID)
}

func (s *fakeCampaignStore) SetContactDispatch(ctx context.Context, contactID int64, status string, callID *string, extra json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if contact.ID == contactID {
			contact.Status = status
			contact.CallID = callID
			contact.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("contact %d not found", contactID)
}

func (s *fakeCampaignStore) contactStatus(t *testing.T, contactID int64) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.contacts {
		if contact.ID == contactID {
			return contact.Status
		}
	}
	t.Fatalf("contact %d not found", contactID)
	return ""
}

type fakeCallStore struct {
	mu            sync.Mutex
	records       map[string]calls.CallRecord
	analysisRows  map[string]bool
	analyzedCount int
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{
		records:      make(map[string]calls.CallRecord),
		analysisRows: make(map[string]bool),
	}
}

func (s *fakeCallStore) Create(ctx context.Context, c calls.CallRecord) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[c.CallID] = c
	return c, nil
}

func (s *fakeCallStore) GetByCallID(ctx context.Context, callID string) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[callID]
	if !ok {
		return calls.CallRecord{}, calls.ErrCallNotFound
	}
	return rec, nil
}

func (s *fakeCallStore) ApplyProviderUpdate(ctx context.Context, callID string, u calls.ProviderUpdate) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[callID]
	if !ok {
		return calls.CallRecord{}, calls.ErrCallNotFound
	}
	if u.CallState != "" && rec.CallState == "" {
		rec.CallState = u.CallState
	}
	if u.HangupCause != "" && rec.HangupCause == "" {
		rec.HangupCause = u.HangupCause
	}
	if u.DurationSecs > rec.DurationSecs {
		rec.DurationSecs = u.DurationSecs
	}
	if len(u.ProviderPayload) > 0 {
		rec.ProviderPayload = u.ProviderPayload
	}
	s.records[callID] = rec
	return rec, nil
}

func (s *fakeCallStore) EnsureAnalysis(ctx context.Context, callID string, sessionID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysisRows[callID] = true
	return nil
}

func (s *fakeCallStore) AnalysisCompleteCount(ctx context.Context, campaignID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzedCount, nil
}

type fakeAgentStore struct {
	profile AgentProfile
	err     error
}

func (s *fakeAgentStore) AgentProfile(ctx context.Context, agentID string) (AgentProfile, error) {
	if s.err != nil {
		return AgentProfile{}, s.err
	}
	return s.profile, nil
}

type fakeTelephony struct {
	mu       sync.Mutex
	placed   []telephony.PlaceCallRequest
	placeErr error
	nextUUID int
	live     map[string]*telephony.LiveCall
	details  map[string]*telephony.CallDetail
}

func newFakeTelephony() *fakeTelephony {
	return &fakeTelephony{
		live:    make(map[string]*telephony.LiveCall),
		details: make(map[string]*telephony.CallDetail),
	}
}

func (f *fakeTelephony) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (*telephony.PlaceCallResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.nextUUID++
	f.placed = append(f.placed, req)
	return &telephony.PlaceCallResponse{RequestUUID: fmt.Sprintf("uuid-%d", f.nextUUID)}, nil
}

func (f *fakeTelephony) GetLiveCall(ctx context.Context, callUUID string) (*telephony.LiveCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if live, ok := f.live[callUUID]; ok {
		return live, nil
	}
	return nil, telephony.ErrCallNotFound
}

func (f *fakeTelephony) GetCall(ctx context.Context, callUUID string) (*telephony.CallDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if detail, ok := f.details[callUUID]; ok {
		return detail, nil
	}
	return nil, telephony.ErrCallNotFound
}

func (f *fakeTelephony) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

type fakeVoiceAI struct {
	mu       sync.Mutex
	requests []voiceai.SessionRequest
	err      error
}

func (f *fakeVoiceAI) CreateSession(ctx context.Context, req voiceai.SessionRequest) (*voiceai.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &voiceai.Session{
		SessionID: fmt.Sprintf("sess-%d", len(f.requests)),
		JoinURL:   "wss://voice.example.com/join/abc",
	}, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	denied   bool
	acquires int
	releases int
}

func (l *fakeLocker) Acquire(ctx context.Context, name string, holdFor, waitFor time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denied {
		return false
	}
	l.acquires++
	return true
}

func (l *fakeLocker) Release(ctx context.Context, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
}

type fakeEnqueuer struct {
	mu      sync.Mutex
	callIDs []string
}

func (f *fakeEnqueuer) EnqueueAnalysis(ctx context.Context, callID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callIDs = append(f.callIDs, callID)
	return nil
}

type stubConfig struct {
	maxConcurrent int
}

func (stubConfig) GetPollInterval() time.Duration       { return time.Second }
func (stubConfig) GetCallInterval() time.Duration       { return time.Millisecond }
func (stubConfig) GetCampaignBatchSize() int            { return 3 }
func (c stubConfig) GetMaxConcurrentCalls() int         { return c.maxConcurrent }
func (stubConfig) GetLockTimeout() time.Duration        { return time.Minute }
func (stubConfig) GetLockAcquireTimeout() time.Duration { return time.Second }

// noCallerConfig drops the configured fallback caller number.
type noCallerConfig struct{ stubConfig }

func (noCallerConfig) GetCallerNumber() string { return "" }

func (stubConfig) GetTelephonyAuthID() string    { return "AUTHID" }
func (stubConfig) GetTelephonyAuthToken() string { return "token" }
func (stubConfig) GetTelephonyBaseURL() string   { return "https://telephony.example.com" }
func (stubConfig) GetCallerNumber() string       { return "+3170000000" }
func (stubConfig) GetAnswerURL() string          { return "https://api.example.com/webhooks/telephony/answer" }
func (stubConfig) GetHangupURL() string          { return "https://api.example.com/webhooks/telephony/hangup" }

type executorEnv struct {
	campaignStore *fakeCampaignStore
	callStore     *fakeCallStore
	telephonyAPI  *fakeTelephony
	voiceAPI      *fakeVoiceAI
	locker        *fakeLocker
	enqueuer      *fakeEnqueuer
	executor      *Executor
}

func newExecutorEnv(t *testing.T, maxConcurrent int) *executorEnv {
	t.Helper()
	campaignStore := newFakeCampaignStore()
	callStore := newFakeCallStore()
	telephonyAPI := newFakeTelephony()
	voiceAPI := &fakeVoiceAI{}
	locker := &fakeLocker{}
	enqueuer := &fakeEnqueuer{}
	agents := &fakeAgentStore{profile: AgentProfile{
		ID:           "agent-1",
		Name:         "Sales Agent",
		SystemPrompt: "Hi {contact_name}, this is a call.",
		FromNumber:   "+3161111111",
	}}
	cfg := stubConfig{maxConcurrent: maxConcurrent}
	log := logger.New("test")

	gateway := NewGateway(campaignStore, callStore, agents, telephonyAPI, voiceAPI, cfg, log)
	reconciler := NewReconciler(campaignStore, callStore, telephonyAPI, enqueuer, nil, log)
	executor := NewExecutor(campaignStore, callStore, gateway, reconciler, locker, nil, cfg, log)

	return &executorEnv{
		campaignStore: campaignStore,
		callStore:     callStore,
		telephonyAPI:  telephonyAPI,
		voiceAPI:      voiceAPI,
		locker:        locker,
		enqueuer:      enqueuer,
		executor:      executor,
	}
}

func (e *executorEnv) addCampaign(id int64, status string, contactStatuses ...string) {
	agentID := "agent-1"
	e.campaignStore.campaigns[id] = campaigns.Campaign{
		ID:              id,
		Name:            fmt.Sprintf("campaign-%d", id),
		AssignedAgentID: &agentID,
		Status:          status,
		TotalContacts:   len(contactStatuses),
	}
	for i, status := range contactStatuses {
		e.campaignStore.contacts = append(e.campaignStore.contacts, &campaigns.Contact{
			ID:         id*100 + int64(i),
			CampaignID: id,
			Name:       fmt.Sprintf("Contact %d", i),
			Phone:      fmt.Sprintf("+316000000%d", i),
			Status:     status,
			UpdatedAt:  time.Now(),
		})
	}
}

func TestDispatchAdmitsOneCallPerCampaign(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning,
		campaigns.ContactPending, campaigns.ContactPending, campaigns.ContactPending)

	env.executor.dispatchCycle(context.Background())

	if got := env.telephonyAPI.placedCount(); got != 1 {
		t.Fatalf("placed %d calls, want 1", got)
	}
	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactCalling {
		t.Errorf("first contact status = %q, want calling", got)
	}
	if got := env.campaignStore.contactStatus(t, 101); got != campaigns.ContactPending {
		t.Errorf("second contact status = %q, want pending", got)
	}

	// The call is still in flight, so the next cycle must not admit
	// another one.
	env.executor.dispatchCycle(context.Background())
	if got := env.telephonyAPI.placedCount(); got != 1 {
		t.Fatalf("placed %d calls after second cycle, want still 1", got)
	}
}

func TestDispatchSkipsWhenLockUnavailable(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.locker.denied = true

	env.executor.dispatchCycle(context.Background())

	if got := env.telephonyAPI.placedCount(); got != 0 {
		t.Fatalf("placed %d calls without the dispatch lock, want 0", got)
	}
}

func TestDispatchReleasesLock(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)

	env.executor.dispatchCycle(context.Background())

	if env.locker.acquires != 1 || env.locker.releases != 1 {
		t.Errorf("lock acquires=%d releases=%d, want 1 and 1", env.locker.acquires, env.locker.releases)
	}
}

func TestDispatchPromotesDueScheduledCampaign(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusScheduled, campaigns.ContactPending)
	past := time.Now().Add(-time.Minute)
	c := env.campaignStore.campaigns[1]
	c.ScheduleAt = &past
	env.campaignStore.campaigns[1] = c

	env.executor.dispatchCycle(context.Background())

	got, _ := env.campaignStore.Get(context.Background(), 1)
	if got.Status != campaigns.StatusRunning {
		t.Errorf("campaign status = %q, want running after promotion", got.Status)
	}
	if env.telephonyAPI.placedCount() != 1 {
		t.Errorf("placed %d calls, want 1 in the same cycle as promotion", env.telephonyAPI.placedCount())
	}
}

func TestDispatchFailsContactWithoutPhone(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.campaignStore.contacts[0].Phone = ""

	env.executor.dispatchCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactFailed {
		t.Fatalf("contact status = %q, want failed", got)
	}
	if len(env.voiceAPI.requests) != 0 {
		t.Errorf("created %d voice sessions for an undialable contact, want 0", len(env.voiceAPI.requests))
	}
	if got := env.telephonyAPI.placedCount(); got != 0 {
		t.Errorf("placed %d calls for an undialable contact, want 0", got)
	}
}

func TestPlaceContactCallRequiresCallerNumber(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	agents := &fakeAgentStore{profile: AgentProfile{ID: "agent-1", SystemPrompt: "p"}}
	gateway := NewGateway(env.campaignStore, env.callStore, agents,
		env.telephonyAPI, env.voiceAPI, noCallerConfig{}, logger.New("test"))

	campaign, _ := env.campaignStore.Get(context.Background(), 1)
	contact := *env.campaignStore.contacts[0]
	if _, err := gateway.PlaceContactCall(context.Background(), campaign, contact); !errors.Is(err, ErrNoCallerNumber) {
		t.Fatalf("PlaceContactCall = %v, want ErrNoCallerNumber", err)
	}
	if len(env.voiceAPI.requests) != 0 {
		t.Errorf("created %d voice sessions without a caller number, want 0", len(env.voiceAPI.requests))
	}
	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactFailed {
		t.Errorf("contact status = %q, want failed", got)
	}
}

func TestDispatchLeavesEmptyCampaignRunning(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning)

	env.executor.dispatchCycle(context.Background())

	got, _ := env.campaignStore.Get(context.Background(), 1)
	if got.Status != campaigns.StatusRunning {
		t.Errorf("campaign status = %q, a campaign without contacts must not complete", got.Status)
	}
}

func TestReconcileLeavesLiveCallAlone(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.executor.dispatchCycle(context.Background())
	env.telephonyAPI.live["uuid-1"] = &telephony.LiveCall{CallUUID: "uuid-1", CallStatus: "in-progress"}

	env.executor.reconcileCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactCalling {
		t.Errorf("contact status = %q, want calling while the call is live", got)
	}
}

func TestReconcileResolvesCompletedCall(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.executor.dispatchCycle(context.Background())
	raw := json.RawMessage(`{"call_uuid":"uuid-1","call_state":"ANSWER","hangup_cause_name":"NORMAL_CLEARING"}`)
	env.telephonyAPI.details["uuid-1"] = &telephony.CallDetail{
		CallUUID:        "uuid-1",
		CallState:       "ANSWER",
		CallDuration:    42,
		HangupCauseName: "NORMAL_CLEARING",
		Raw:             raw,
	}

	env.executor.reconcileCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactCompleted {
		t.Fatalf("contact status = %q, want completed", got)
	}
	if string(env.callStore.records["uuid-1"].ProviderPayload) != string(raw) {
		t.Errorf("provider payload = %s, want the raw provider response stored", env.callStore.records["uuid-1"].ProviderPayload)
	}
	if len(env.enqueuer.callIDs) != 1 || env.enqueuer.callIDs[0] != "uuid-1" {
		t.Errorf("enqueued analysis for %v, want [uuid-1]", env.enqueuer.callIDs)
	}
	if !env.callStore.analysisRows["uuid-1"] {
		t.Error("analysis row was not created for the completed call")
	}

	got, _ := env.campaignStore.Get(context.Background(), 1)
	if got.Status != campaigns.StatusCompleted {
		t.Errorf("campaign status = %q, want completed once every contact is terminal", got.Status)
	}
	if got.ProgressPct != 100 {
		t.Errorf("progress = %d, want 100", got.ProgressPct)
	}
}

func TestReconcileNoAnswerSkipsAnalysis(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.executor.dispatchCycle(context.Background())
	env.telephonyAPI.details["uuid-1"] = &telephony.CallDetail{
		CallUUID:        "uuid-1",
		CallState:       "NO_ANSWER",
		HangupCauseName: "NO_ANSWER",
	}

	env.executor.reconcileCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactNoAnswer {
		t.Fatalf("contact status = %q, want no-answer", got)
	}
	if len(env.enqueuer.callIDs) != 0 {
		t.Errorf("enqueued analysis for %v, unanswered calls have no artifacts", env.enqueuer.callIDs)
	}
}

func TestReconcileUsesCachedWebhookState(t *testing.T) {
	// The provider has forgotten the call but the hangup webhook
	// already stored a terminal state.
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.executor.dispatchCycle(context.Background())
	rec := env.callStore.records["uuid-1"]
	rec.CallState = "ANSWER"
	rec.HangupCause = "NORMAL_CLEARING"
	env.callStore.records["uuid-1"] = rec

	env.executor.reconcileCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactCompleted {
		t.Errorf("contact status = %q, want completed from the cached record", got)
	}
}

func TestReconcileFailsStaleContact(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactCalling)
	callID := "uuid-gone"
	env.campaignStore.contacts[0].CallID = &callID
	env.campaignStore.contacts[0].UpdatedAt = time.Now().Add(-time.Hour)

	env.executor.reconcileCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactFailed {
		t.Errorf("contact status = %q, want failed after staleness window", got)
	}
}

func TestReconcileFailsContactWithoutCallID(t *testing.T) {
	// Dispatch recorded no call id for this contact; there is nothing to
	// poll, so the refresh loop writes it off instead of letting it hold
	// the campaign's admission slot.
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactCalling)

	env.executor.reconcileCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactFailed {
		t.Errorf("contact status = %q, want failed", got)
	}
}

func TestRunCycleRecoversPanic(t *testing.T) {
	env := newExecutorEnv(t, 1)

	env.executor.runCycle(context.Background(), func(context.Context) {
		panic("boom")
	})
	// Reaching this point means the panic did not escape the cycle.
}

func TestSessionFailureFailsContactWithoutDialing(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.voiceAPI.err = errors.New("session service down")

	env.executor.dispatchCycle(context.Background())

	if got := env.telephonyAPI.placedCount(); got != 0 {
		t.Fatalf("placed %d calls despite session failure, want 0", got)
	}
	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactFailed {
		t.Errorf("contact status = %q, want failed", got)
	}
}

func TestDialFailureReturnsContactToPending(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.telephonyAPI.placeErr = errors.New("provider 500")

	env.executor.dispatchCycle(context.Background())

	if got := env.campaignStore.contactStatus(t, 100); got != campaigns.ContactPending {
		t.Errorf("contact status = %q, want pending for a retry", got)
	}
}

func TestPlaceContactCallPersonalizesPrompt(t *testing.T) {
	env := newExecutorEnv(t, 1)
	env.addCampaign(1, campaigns.StatusRunning, campaigns.ContactPending)
	env.campaignStore.contacts[0].Name = "Sanne"

	env.executor.dispatchCycle(context.Background())

	if len(env.voiceAPI.requests) != 1 {
		t.Fatalf("created %d sessions, want 1", len(env.voiceAPI.requests))
	}
	req := env.voiceAPI.requests[0]
	if req.SystemPrompt != "Hi Sanne, this is a call." {
		t.Errorf("system prompt = %q, contact name not substituted", req.SystemPrompt)
	}
}

func TestPlaceDirectCall(t *testing.T) {
	env := newExecutorEnv(t, 1)
	gateway := env.executor.gateway

	record, err := gateway.PlaceDirectCall(context.Background(), DirectCallRequest{
		AgentID: "agent-1",
		To:      "+31612345678",
	})
	if err != nil {
		t.Fatalf("PlaceDirectCall: %v", err)
	}
	if record.CallID == "" {
		t.Error("record has no call id")
	}
	if record.SessionID == nil || *record.SessionID == "" {
		t.Error("record has no session id")
	}
	if record.CampaignID != nil {
		t.Error("direct call should not be attached to a campaign")
	}
	if record.FromNumber != "+3161111111" {
		t.Errorf("from = %q, want the agent from number", record.FromNumber)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	env := newExecutorEnv(t, 1)

	if err := env.executor.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := env.executor.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	if !env.executor.Status().Running {
		t.Error("Status.Running = false after Start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.executor.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if env.executor.Status().Running {
		t.Error("Status.Running = true after Stop")
	}

	// Stop on a stopped executor is a no-op.
	if err := env.executor.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
