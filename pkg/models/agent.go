package models

import "time"

// DefaultAgentID denotes the built-in assistant persona used when a step
// does not reference a user-created agent.
const DefaultAgentID = "0"

// Agent is an LLM persona: a name plus the instructions used to build the
// system prompt for ask-ai steps.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"         validate:"required"`
	Description  string    `json:"description"`
	Instructions string    `json:"instructions"`
	CreatorID    string    `json:"creator_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultAgent is the hardcoded persona behind DefaultAgentID.
func DefaultAgent() Agent {
	return Agent{
		ID:           DefaultAgentID,
		Name:         "Assistant",
		Description:  "General purpose assistant",
		Instructions: "You are a helpful human assistant. Answer concisely and follow the user's instructions.",
	}
}
