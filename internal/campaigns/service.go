package campaigns

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"voicecampaign_backend/internal/events"
	"voicecampaign_backend/platform/apperr"
	"voicecampaign_backend/platform/logger"
	"voicecampaign_backend/platform/phone"
)

// AgentInfo is the minimal agent projection the campaign service needs.
type AgentInfo struct {
	ID         string
	Name       string
	FromNumber string
}

// AgentReader resolves agent references at campaign creation time.
type AgentReader interface {
	AgentInfo(ctx context.Context, agentID string) (AgentInfo, error)
}

// Service implements campaign use cases.
type Service struct {
	repo     *Repository
	agents   AgentReader
	eventBus events.Bus
	log      *logger.Logger
}

// NewService creates a new campaigns service.
func NewService(repo *Repository, agents AgentReader, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, agents: agents, eventBus: eventBus, log: log}
}

// CreateCampaignInput carries the fields needed to create a campaign.
type CreateCampaignInput struct {
	Name            string
	AssignedAgentID string
	FromNumber      string
	ScheduleAt      *time.Time
	Config          json.RawMessage
	FileName        string
}

// Create stores a new campaign. A schedule time puts it directly into
// scheduled, otherwise it starts as created and waits for a command.
func (s *Service) Create(ctx context.Context, input CreateCampaignInput) (Campaign, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Campaign{}, apperr.Validation("campaign name is required")
	}
	if input.AssignedAgentID == "" {
		return Campaign{}, apperr.Validation("assigned agent is required")
	}

	agent, err := s.agents.AgentInfo(ctx, input.AssignedAgentID)
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindValidation, "assigned agent not found", err)
	}

	fromNumber := phone.NormalizeE164(input.FromNumber)
	if fromNumber == "" {
		fromNumber = agent.FromNumber
	}

	status := StatusCreated
	if input.ScheduleAt != nil {
		status = StatusScheduled
	}

	config := input.Config
	if len(config) == 0 || !json.Valid(config) {
		config = json.RawMessage(`{}`)
	}

	campaign := Campaign{
		Name:              strings.TrimSpace(input.Name),
		AssignedAgentID:   &agent.ID,
		AssignedAgentName: agent.Name,
		FromNumber:        fromNumber,
		ScheduleAt:        input.ScheduleAt,
		Status:            status,
		Config:            config,
		FileName:          input.FileName,
	}

	created, err := s.repo.Create(ctx, campaign)
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "create campaign", err)
	}

	s.log.Info("campaign created", "campaign_id", created.ID, "name", created.Name, "status", created.Status)
	return created, nil
}

// Get retrieves one campaign.
func (s *Service) Get(ctx context.Context, id int64) (Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrCampaignNotFound) {
		return Campaign{}, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "get campaign", err)
	}
	return c, nil
}

// List returns all campaigns.
func (s *Service) List(ctx context.Context) ([]Campaign, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list campaigns", err)
	}
	return list, nil
}

// Update replaces a campaign's editable fields. Running campaigns keep
// executing with the updated configuration from the next cycle onward.
func (s *Service) Update(ctx context.Context, id int64, input CreateCampaignInput) (Campaign, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Campaign{}, err
	}

	if strings.TrimSpace(input.Name) != "" {
		existing.Name = strings.TrimSpace(input.Name)
	}
	if input.AssignedAgentID != "" {
		agent, err := s.agents.AgentInfo(ctx, input.AssignedAgentID)
		if err != nil {
			return Campaign{}, apperr.Wrap(apperr.KindValidation, "assigned agent not found", err)
		}
		existing.AssignedAgentID = &agent.ID
		existing.AssignedAgentName = agent.Name
	}
	if input.FromNumber != "" {
		existing.FromNumber = phone.NormalizeE164(input.FromNumber)
	}
	if len(input.Config) > 0 && json.Valid(input.Config) {
		existing.Config = input.Config
	}

	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "update campaign", err)
	}
	return updated, nil
}

// Delete removes a campaign and its contacts.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrCampaignNotFound) {
		return apperr.NotFound("campaign not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete campaign", err)
	}
	return nil
}

// validTransitions maps each commanded status to the statuses it may be
// entered from. Automatic transitions (scheduled to running on due time,
// running to completed on exhaustion) belong to the dialer, not here.
var validTransitions = map[string][]string{
	StatusRunning:   {StatusCreated, StatusScheduled, StatusPaused},
	StatusPaused:    {StatusRunning},
	StatusScheduled: {StatusCreated, StatusPaused},
	StatusCreated:   {StatusScheduled},
}

// SetStatus applies an externally commanded lifecycle transition.
func (s *Service) SetStatus(ctx context.Context, id int64, status string) (Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return Campaign{}, err
	}

	allowed, ok := validTransitions[status]
	if !ok {
		return Campaign{}, apperr.Validation("unknown campaign status: " + status)
	}
	permitted := false
	for _, from := range allowed {
		if campaign.Status == from {
			permitted = true
			break
		}
	}
	if !permitted {
		return Campaign{}, apperr.Conflict("cannot transition campaign from " + campaign.Status + " to " + status)
	}

	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "set campaign status", err)
	}

	if status == StatusRunning {
		s.eventBus.Publish(ctx, events.CampaignStarted{
			BaseEvent:  events.NewBaseEvent(),
			CampaignID: campaign.ID,
			Name:       campaign.Name,
		})
	}

	s.log.Info("campaign status changed", "campaign_id", id, "from", campaign.Status, "to", status)
	return s.Get(ctx, id)
}

// Schedule stamps a future start time on a campaign.
func (s *Service) Schedule(ctx context.Context, id int64, at time.Time) (Campaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return Campaign{}, err
	}
	if campaign.Status != StatusCreated && campaign.Status != StatusScheduled && campaign.Status != StatusPaused {
		return Campaign{}, apperr.Conflict("cannot schedule campaign in status " + campaign.Status)
	}

	if err := s.repo.SetSchedule(ctx, id, at); err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "schedule campaign", err)
	}
	return s.Get(ctx, id)
}

// ContactInput is one contact to add to a campaign.
type ContactInput struct {
	Name  string
	Phone string
	Extra json.RawMessage
}

// AddContacts bulk-inserts contacts, normalizing phone numbers and
// dropping entries without a usable number. Returns how many were added.
func (s *Service) AddContacts(ctx context.Context, campaignID int64, inputs []ContactInput) (int, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return 0, err
	}

	contacts := make([]Contact, 0, len(inputs))
	for _, input := range inputs {
		normalized := phone.NormalizeE164(input.Phone)
		if normalized == "" {
			continue
		}
		contacts = append(contacts, Contact{
			Name:  strings.TrimSpace(input.Name),
			Phone: normalized,
			Extra: input.Extra,
		})
	}
	if len(contacts) == 0 {
		return 0, apperr.Validation("no valid contacts to add")
	}

	inserted, err := s.repo.BulkInsertContacts(ctx, campaignID, contacts)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "add contacts", err)
	}

	s.log.Info("contacts added", "campaign_id", campaignID, "count", inserted)
	return inserted, nil
}

// ListContacts returns a campaign's contacts.
func (s *Service) ListContacts(ctx context.Context, campaignID int64) ([]Contact, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	contacts, err := s.repo.ListContacts(ctx, campaignID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list contacts", err)
	}
	return contacts, nil
}

// UpdateContact edits a contact's name and phone.
func (s *Service) UpdateContact(ctx context.Context, campaignID, contactID int64, name, phoneNumber string) (Contact, error) {
	contact, err := s.repo.GetContact(ctx, contactID)
	if errors.Is(err, ErrContactNotFound) {
		return Contact{}, apperr.NotFound("contact not found")
	}
	if err != nil {
		return Contact{}, apperr.Wrap(apperr.KindInternal, "get contact", err)
	}
	if contact.CampaignID != campaignID {
		return Contact{}, apperr.NotFound("contact not found")
	}

	if strings.TrimSpace(name) != "" {
		contact.Name = strings.TrimSpace(name)
	}
	if phoneNumber != "" {
		normalized := phone.NormalizeE164(phoneNumber)
		if normalized == "" {
			return Contact{}, apperr.Validation("invalid phone number")
		}
		contact.Phone = normalized
	}

	updated, err := s.repo.UpdateContact(ctx, contact)
	if err != nil {
		return Contact{}, apperr.Wrap(apperr.KindInternal, "update contact", err)
	}
	return updated, nil
}

// DeleteContact removes one contact.
func (s *Service) DeleteContact(ctx context.Context, campaignID, contactID int64) error {
	err := s.repo.DeleteContact(ctx, campaignID, contactID)
	if errors.Is(err, ErrContactNotFound) {
		return apperr.NotFound("contact not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete contact", err)
	}
	return nil
}

// Stats is the per-campaign status breakdown.
type Stats struct {
	CampaignID          int64          `json:"campaignId"`
	Status              string         `json:"status"`
	TotalContacts       int            `json:"totalContacts"`
	StatusCounts        map[string]int `json:"statusCounts"`
	ProgressPct         int            `json:"progressPct"`
	AnalysisProgressPct int            `json:"analysisProgressPct"`
}

// GetStats returns the live status breakdown for a campaign.
func (s *Service) GetStats(ctx context.Context, campaignID int64) (Stats, error) {
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return Stats{}, err
	}

	counts, err := s.repo.ContactStatusCounts(ctx, campaignID)
	if err != nil {
		return Stats{}, apperr.Wrap(apperr.KindInternal, "campaign stats", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return Stats{
		CampaignID:          campaign.ID,
		Status:              campaign.Status,
		TotalContacts:       total,
		StatusCounts:        counts,
		ProgressPct:         campaign.ProgressPct,
		AnalysisProgressPct: campaign.AnalysisProgressPct,
	}, nil
}

// NextContact returns the contact the dialer would pick next, or nil.
func (s *Service) NextContact(ctx context.Context, campaignID int64) (*Contact, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	contact, err := s.repo.NextPendingContact(ctx, campaignID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "next contact", err)
	}
	return contact, nil
}
