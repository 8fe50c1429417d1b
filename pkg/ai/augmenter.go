package ai

import (
	"context"
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// Augmenter rewrites AI-enabled step props through the LLM before the step
// executes.
type Augmenter struct {
	client Client
	logger *slog.Logger
}

func NewAugmenter(client Client, logger *slog.Logger) *Augmenter {
	return &Augmenter{
		client: client,
		logger: logger.With("module", "ai_augmenter"),
	}
}

// Augment replaces each AI-enabled string prop with LLM-generated text
// conditioned on the prop's resolved value as the user prompt. A failure on
// one field keeps that field's original value and does not abort the step.
func (a *Augmenter) Augment(ctx context.Context, step models.StepInstance, resolvedProps map[string]any) map[string]any {
	if len(step.AIEnabledFields) == 0 {
		return resolvedProps
	}

	augmented := make(map[string]any, len(resolvedProps))
	for k, v := range resolvedProps {
		augmented[k] = v
	}

	for _, field := range step.AIEnabledFields {
		literal, ok := augmented[field].(string)
		if !ok || literal == "" {
			continue
		}

		text, err := a.client.GenerateText(ctx, AssistantSystemPrompt, literal)
		if err != nil {
			a.logger.ErrorContext(ctx, "AI augmentation failed, keeping literal value",
				"step_id", step.ID, "field", field, "error", err)

			continue
		}

		augmented[field] = text
	}

	return augmented
}
