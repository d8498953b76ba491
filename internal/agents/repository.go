// Package agents provides the AI agent bounded context: the stored
// prompt, voice, and call settings a campaign is executed with.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Agent is a stored voice AI agent configuration.
type Agent struct {
	AgentID         string          `json:"agentId"`
	Name            string          `json:"name"`
	SystemPrompt    string          `json:"systemPrompt"`
	InitialMessages json.RawMessage `json:"initialMessages"`
	Settings        json.RawMessage `json:"settings"`
	FromNumber      string          `json:"fromNumber"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Repository provides data access for agents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new agents repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const agentColumns = `agent_id, name, system_prompt, initial_messages, settings, from_number, created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(
		&a.AgentID, &a.Name, &a.SystemPrompt, &a.InitialMessages,
		&a.Settings, &a.FromNumber, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

// Create inserts a new agent.
func (r *Repository) Create(ctx context.Context, a Agent) (Agent, error) {
	return scanAgent(r.pool.QueryRow(ctx, `
		INSERT INTO agents (agent_id, name, system_prompt, initial_messages, settings, from_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+agentColumns+`
	`, a.AgentID, a.Name, a.SystemPrompt, a.InitialMessages, a.Settings, a.FromNumber))
}

// Get retrieves an agent by its identifier.
func (r *Repository) Get(ctx context.Context, agentID string) (Agent, error) {
	a, err := scanAgent(r.pool.QueryRow(ctx, `
		SELECT `+agentColumns+` FROM agents WHERE agent_id = $1
	`, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	return a, err
}

// List returns all agents ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+` FROM agents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Update replaces an agent's mutable fields.
func (r *Repository) Update(ctx context.Context, a Agent) (Agent, error) {
	updated, err := scanAgent(r.pool.QueryRow(ctx, `
		UPDATE agents
		SET name = $2, system_prompt = $3, initial_messages = $4, settings = $5, from_number = $6, updated_at = now()
		WHERE agent_id = $1
		RETURNING `+agentColumns+`
	`, a.AgentID, a.Name, a.SystemPrompt, a.InitialMessages, a.Settings, a.FromNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	return updated, err
}

// Delete removes an agent.
func (r *Repository) Delete(ctx context.Context, agentID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// ErrAgentNotFound is returned when no agent exists for the given id.
var ErrAgentNotFound = errors.New("agent not found")
