package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"voicecampaign_backend/platform/apperr"
	"voicecampaign_backend/platform/logger"
	"voicecampaign_backend/platform/phone"

	"github.com/google/uuid"
)

// Service implements agent use cases.
type Service struct {
	repo *Repository
	log  *logger.Logger
}

// NewService creates a new agents service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// CreateAgentInput carries the fields needed to create an agent.
type CreateAgentInput struct {
	Name            string
	SystemPrompt    string
	InitialMessages json.RawMessage
	Settings        json.RawMessage
	FromNumber      string
}

// Create stores a new agent with a generated identifier.
func (s *Service) Create(ctx context.Context, input CreateAgentInput) (Agent, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Agent{}, apperr.Validation("agent name is required")
	}
	if strings.TrimSpace(input.SystemPrompt) == "" {
		return Agent{}, apperr.Validation("system prompt is required")
	}

	agent := Agent{
		AgentID:         "agent_" + uuid.NewString(),
		Name:            strings.TrimSpace(input.Name),
		SystemPrompt:    input.SystemPrompt,
		InitialMessages: normalizeJSON(input.InitialMessages, "[]"),
		Settings:        normalizeJSON(input.Settings, "{}"),
		FromNumber:      phone.NormalizeE164(input.FromNumber),
	}

	created, err := s.repo.Create(ctx, agent)
	if err != nil {
		return Agent{}, apperr.Wrap(apperr.KindInternal, "create agent", err)
	}

	s.log.Info("agent created", "agent_id", created.AgentID, "name", created.Name)
	return created, nil
}

// Get retrieves one agent.
func (s *Service) Get(ctx context.Context, agentID string) (Agent, error) {
	agent, err := s.repo.Get(ctx, agentID)
	if errors.Is(err, ErrAgentNotFound) {
		return Agent{}, apperr.NotFound("agent not found")
	}
	if err != nil {
		return Agent{}, apperr.Wrap(apperr.KindInternal, "get agent", err)
	}
	return agent, nil
}

// List returns all agents.
func (s *Service) List(ctx context.Context) ([]Agent, error) {
	agents, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list agents", err)
	}
	return agents, nil
}

// Update replaces an agent's mutable fields.
func (s *Service) Update(ctx context.Context, agentID string, input CreateAgentInput) (Agent, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Agent{}, apperr.Validation("agent name is required")
	}

	agent := Agent{
		AgentID:         agentID,
		Name:            strings.TrimSpace(input.Name),
		SystemPrompt:    input.SystemPrompt,
		InitialMessages: normalizeJSON(input.InitialMessages, "[]"),
		Settings:        normalizeJSON(input.Settings, "{}"),
		FromNumber:      phone.NormalizeE164(input.FromNumber),
	}

	updated, err := s.repo.Update(ctx, agent)
	if errors.Is(err, ErrAgentNotFound) {
		return Agent{}, apperr.NotFound("agent not found")
	}
	if err != nil {
		return Agent{}, apperr.Wrap(apperr.KindInternal, "update agent", err)
	}
	return updated, nil
}

// Delete removes an agent.
func (s *Service) Delete(ctx context.Context, agentID string) error {
	err := s.repo.Delete(ctx, agentID)
	if errors.Is(err, ErrAgentNotFound) {
		return apperr.NotFound("agent not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete agent", err)
	}
	return nil
}

// normalizeJSON keeps stored JSON columns non-null and well-formed.
func normalizeJSON(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage(fallback)
	}
	return raw
}
