package askai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/google/uuid"
)

var (
	// ErrAgentNotFound indicates no agent exists with the given ID.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentUnauthorized indicates the agent belongs to another user.
	ErrAgentUnauthorized = errors.New("Unauthorized access to agent")
)

const agentsCollection = "agents"

// AgentStore persists user-created agent personas.
type AgentStore struct {
	docs docstore.Store
}

func NewAgentStore(docs docstore.Store) *AgentStore {
	return &AgentStore{docs: docs}
}

// Save persists an agent, assigning an ID when absent.
func (s *AgentStore) Save(ctx context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		agent.ID = "agt-" + uuid.New().String()[:8]
		agent.CreatedAt = time.Now().UTC()
	}

	agent.UpdatedAt = time.Now().UTC()

	return s.docs.Set(ctx, docstore.Join(agentsCollection, agent.ID), agent)
}

// Resolve returns the agent for a step, applying the default persona for
// DefaultAgentID and an ownership check for user-created agents.
func (s *AgentStore) Resolve(ctx context.Context, agentID, userID string) (models.Agent, error) {
	if agentID == models.DefaultAgentID {
		return models.DefaultAgent(), nil
	}

	var agent models.Agent

	err := s.docs.Get(ctx, docstore.Join(agentsCollection, agentID), &agent)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Agent{}, fmt.Errorf("agent %q: %w", agentID, ErrAgentNotFound)
	}

	if err != nil {
		return models.Agent{}, err
	}

	if agent.CreatorID != userID {
		return models.Agent{}, ErrAgentUnauthorized
	}

	return agent, nil
}
