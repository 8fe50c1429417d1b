// Package askai runs an LLM prompt through a configured agent persona and
// returns the completion, optionally with a structured extraction.
package askai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowdeck-io/flowdeck/pkg/ai"
	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// NodeID identifies this node type in the registry.
const NodeID = "ASK_AI"

var errMissingPrompt = errors.New("missing 'prompt' in step configuration")

type props struct {
	AgentID      string
	Prompt       string
	Instructions string
	OutputSchema map[string]any
}

// Handler executes ASK_AI steps.
type Handler struct {
	client ai.Client
	agents *AgentStore
}

func NewHandler(client ai.Client, agents *AgentStore) *Handler {
	return &Handler{client: client, agents: agents}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Ask AI" }

func (h *Handler) Description() string {
	return "Sends a prompt to an agent persona and returns the completion."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{
				"type":        "string",
				"description": "Agent persona to answer as. \"0\" selects the built-in assistant.",
				"default":     models.DefaultAgentID,
			},
			"prompt": map[string]any{
				"type":        "string",
				"description": "The question or instruction. Supports mentions of earlier step outputs.",
			},
			"instructions": map[string]any{
				"type":        "string",
				"description": "Extra instructions appended to the agent's system prompt.",
			},
			"output_schema": map[string]any{
				"type":        "object",
				"description": "When set, the answer is also extracted as structured data matching this JSON schema.",
			},
		},
		"required":             []string{"prompt"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "agent_id", Type: "string", Required: false, Cloneable: false},
			{Name: "prompt", Type: "string", Required: true, Cloneable: true},
			{Name: "instructions", Type: "string", Required: false, Cloneable: true},
			{Name: "output_schema", Type: "object", Required: false, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "text", Type: "string", Description: "The model's answer."},
			{Name: "data", Type: "object", Description: "Structured extraction, when an output schema is set."},
			{Name: "agent", Type: "string", Description: "Name of the agent that answered."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	prompt, _ := data["prompt"].(string)
	if prompt == "" {
		return props{}, errMissingPrompt
	}

	p := props{Prompt: prompt}

	p.AgentID, _ = data["agent_id"].(string)
	if p.AgentID == "" {
		p.AgentID = models.DefaultAgentID
	}

	p.Instructions, _ = data["instructions"].(string)
	p.OutputSchema, _ = data["output_schema"].(map[string]any)

	return p, nil
}

func systemPrompt(agent models.Agent, instructions string) string {
	var b strings.Builder

	b.WriteString(agent.Instructions)

	if agent.Description != "" {
		b.WriteString("\nAbout you: ")
		b.WriteString(agent.Description)
	}

	if instructions != "" {
		b.WriteString("\nAdditional instructions: ")
		b.WriteString(instructions)
	}

	return b.String()
}

func (h *Handler) Run(
	ctx context.Context,
	execCtx models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "ask_ai_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	agent, err := h.agents.Resolve(ctx, p.AgentID, execCtx.UserID)
	if err != nil {
		return models.Failure(err), nil
	}

	system := systemPrompt(agent, p.Instructions)

	text, err := h.client.GenerateText(ctx, system, p.Prompt)
	if err != nil {
		return models.Failure(fmt.Errorf("completion failed: %w", err)), nil
	}

	payload := map[string]any{
		"text":  text,
		"agent": agent.Name,
	}

	if p.OutputSchema != nil {
		data, err := h.client.GenerateObject(ctx, system, p.Prompt, p.OutputSchema)
		if err != nil {
			return models.Failure(fmt.Errorf("structured extraction failed: %w", err)), nil
		}

		payload["data"] = data
	}

	logger.InfoContext(ctx, "Agent answered", "agent_id", agent.ID)

	return models.Succeed(payload), nil
}
