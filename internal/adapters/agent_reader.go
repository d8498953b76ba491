// Package adapters wires bounded contexts together through the narrow
// interfaces they declare, keeping the contexts themselves decoupled.
package adapters

import (
	"context"
	"fmt"

	"voicecampaign_backend/internal/agents"
	"voicecampaign_backend/internal/campaigns"
	"voicecampaign_backend/internal/dialer"
)

// AgentReader adapts the agents service to the projections the
// campaigns service and the dialer need.
type AgentReader struct {
	agents *agents.Service
}

// NewAgentReader creates a new agent reader adapter.
func NewAgentReader(svc *agents.Service) *AgentReader {
	return &AgentReader{agents: svc}
}

// AgentInfo implements campaigns.AgentReader.
func (a *AgentReader) AgentInfo(ctx context.Context, agentID string) (campaigns.AgentInfo, error) {
	agent, err := a.agents.Get(ctx, agentID)
	if err != nil {
		return campaigns.AgentInfo{}, fmt.Errorf("look up agent for campaign: %w", err)
	}
	return campaigns.AgentInfo{
		ID:         agent.AgentID,
		Name:       agent.Name,
		FromNumber: agent.FromNumber,
	}, nil
}

// AgentProfile implements dialer.AgentStore.
func (a *AgentReader) AgentProfile(ctx context.Context, agentID string) (dialer.AgentProfile, error) {
	agent, err := a.agents.Get(ctx, agentID)
	if err != nil {
		return dialer.AgentProfile{}, fmt.Errorf("look up agent for dialing: %w", err)
	}
	return dialer.AgentProfile{
		ID:              agent.AgentID,
		Name:            agent.Name,
		SystemPrompt:    agent.SystemPrompt,
		FromNumber:      agent.FromNumber,
		InitialMessages: agent.InitialMessages,
		Settings:        agent.Settings,
	}, nil
}

// Compile-time checks against both consumer interfaces.
var (
	_ campaigns.AgentReader = (*AgentReader)(nil)
	_ dialer.AgentStore     = (*AgentReader)(nil)
)
