package flows

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/notify"
)

var (
	// ErrInvalidCallback indicates the callback body could not be decoded.
	ErrInvalidCallback = errors.New("invalid failure callback payload")
)

// FailureCallback is the payload the external scheduler posts when it gives
// up retrying an execution. body and sourceBody are base64-encoded JSON.
type FailureCallback struct {
	SourceMessageID string `json:"sourceMessageId" validate:"required"`
	Status          string `json:"status"`
	Retried         int    `json:"retried"`
	MaxRetries      int    `json:"maxRetries"`
	DlqID           string `json:"dlqId"`
	Body            string `json:"body"`
	SourceBody      string `json:"sourceBody"      validate:"required"`
}

// CallbackResult is returned to the scheduler on success.
type CallbackResult struct {
	Success     bool   `json:"success"`
	FlowID      string `json:"flowId"`
	ExecutionID string `json:"executionId"`
	DlqID       string `json:"dlqId"`
}

type callbackSource struct {
	FlowID      string `json:"flowId"`
	ExecutionID string `json:"executionId"`
	UserID      string `json:"userId"`
}

// CallbackService handles scheduler failure callbacks: the flow goes back
// to draft with the failure recorded, a failed FlowLog is written, and the
// owner is notified.
type CallbackService struct {
	repo     *Repository
	notifier *notify.Notifier
	logger   *slog.Logger
}

func NewCallbackService(repo *Repository, notifier *notify.Notifier, logger *slog.Logger) *CallbackService {
	return &CallbackService{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With("module", "failure_callback"),
	}
}

func decodeBase64JSON(encoded string, out any) error {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCallback, err)
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCallback, err)
	}

	return nil
}

// failureReason extracts a human-readable reason from the callback's body,
// falling back to the retry counters.
func failureReason(cb FailureCallback) string {
	if cb.Body != "" {
		var body map[string]any

		if err := decodeBase64JSON(cb.Body, &body); err == nil {
			if msg, ok := body["error"].(string); ok && msg != "" {
				return msg
			}
		}
	}

	return fmt.Sprintf("execution failed after %d of %d retries", cb.Retried, cb.MaxRetries)
}

// Process applies one failure callback.
func (s *CallbackService) Process(ctx context.Context, cb FailureCallback) (*CallbackResult, error) {
	var source callbackSource

	err := decodeBase64JSON(cb.SourceBody, &source)
	if err != nil {
		return nil, err
	}

	if source.FlowID == "" || source.ExecutionID == "" {
		return nil, fmt.Errorf("%w: missing flowId or executionId", ErrInvalidCallback)
	}

	reason := failureReason(cb)

	flow, err := s.repo.MarkFailed(ctx, source.FlowID, reason)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	err = s.repo.SaveLog(ctx, &models.FlowLog{
		ID:        source.ExecutionID,
		FlowID:    source.FlowID,
		Status:    models.FlowLogStatusFailed,
		StartTime: now,
		EndTime:   now,
		Error:     reason,
		CreatorID: source.UserID,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WarnContext(ctx, "Flow deactivated after scheduler gave up",
		"flow_id", source.FlowID, "execution_id", source.ExecutionID,
		"retried", cb.Retried, "dlq_id", cb.DlqID)

	if s.notifier != nil {
		s.notifier.FlowFailed(ctx, source.UserID, flow.Name, reason)
	}

	return &CallbackResult{
		Success:     true,
		FlowID:      source.FlowID,
		ExecutionID: source.ExecutionID,
		DlqID:       cb.DlqID,
	}, nil
}
