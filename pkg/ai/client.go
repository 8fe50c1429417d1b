// Package ai provides the LLM collaborator interface and the field
// augmenter that rewrites AI-enabled step props before execution.
package ai

import (
	"context"
	"errors"
)

// AssistantSystemPrompt is the fixed system prompt used when rewriting
// AI-enabled step fields.
const AssistantSystemPrompt = "You are a helpful human assistant. " +
	"Rewrite or answer the user's text directly, without preamble."

var (
	// ErrEmptyCompletion is returned when the model produces no text.
	ErrEmptyCompletion = errors.New("model returned an empty completion")
	// ErrInvalidObject is returned when structured output does not decode.
	ErrInvalidObject = errors.New("model returned invalid structured output")
)

// Client is the minimal LLM surface the engine consumes. Implementations
// wrap a concrete provider; the engine never sees provider types.
type Client interface {
	// GenerateText returns a completion for the given prompts.
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// GenerateObject returns structured data matching the given JSON
	// schema, decoded from the model's output.
	GenerateObject(ctx context.Context, systemPrompt, userPrompt string, schema map[string]any) (any, error)
}
