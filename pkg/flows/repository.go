// Package flows holds the flow repository, the execution runner and the
// failure-callback service.
package flows

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
	// ErrFlowNotFound indicates no flow exists with the given ID.
	ErrFlowNotFound = errors.New("flow not found")
	// ErrFlowUnauthorized indicates the flow belongs to another user.
	ErrFlowUnauthorized = errors.New("Unauthorized access to flow")
	// ErrFlowNotExecutable indicates the flow is missing a trigger or steps.
	ErrFlowNotExecutable = errors.New("flow is not executable")
)

const flowsCollection = "flows"

func flowPath(flowID string) string {
	return docstore.Join(flowsCollection, flowID)
}

func logPath(flowID, executionID string) string {
	return docstore.Join(flowsCollection, flowID, "logs", executionID)
}

func logsCollection(flowID string) string {
	return docstore.Join(flowsCollection, flowID, "logs")
}

// Repository persists flows and their execution logs.
type Repository struct {
	docs docstore.Store
}

func NewRepository(docs docstore.Store) *Repository {
	return &Repository{docs: docs}
}

// Save persists a flow, assigning an ID when absent.
func (r *Repository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.ID == "" {
		flow.ID = "flow-" + uuid.New().String()[:8]
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	return r.docs.Set(ctx, flowPath(flow.ID), flow)
}

// Get reads one flow.
func (r *Repository) Get(ctx context.Context, flowID string) (*models.Flow, error) {
	var flow models.Flow

	err := r.docs.Get(ctx, flowPath(flowID), &flow)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("flow %q: %w", flowID, ErrFlowNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &flow, nil
}

// List returns the flows owned by creatorID, or every flow when creatorID
// is empty (the activator uses this to register schedules).
func (r *Repository) List(ctx context.Context, creatorID string) ([]*models.Flow, error) {
	var filters map[string]any
	if creatorID != "" {
		filters = map[string]any{"creator_id": creatorID}
	}

	docs, err := r.docs.Query(ctx, flowsCollection, filters)
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0, len(docs))

	for _, doc := range docs {
		var flow models.Flow

		err := doc.Decode(&flow)
		if err != nil {
			return nil, err
		}

		flows = append(flows, &flow)
	}

	return flows, nil
}

// ListActive returns every flow with active status.
func (r *Repository) ListActive(ctx context.Context) ([]*models.Flow, error) {
	docs, err := r.docs.Query(ctx, flowsCollection, map[string]any{
		"status": int(models.FlowStatusActive),
	})
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0, len(docs))

	for _, doc := range docs {
		var flow models.Flow

		err := doc.Decode(&flow)
		if err != nil {
			return nil, err
		}

		flows = append(flows, &flow)
	}

	return flows, nil
}

// Delete removes a flow and its execution logs. Only the owner may delete.
func (r *Repository) Delete(ctx context.Context, flowID, callerID string) error {
	flow, err := r.Get(ctx, flowID)
	if err != nil {
		return err
	}

	if flow.CreatorID != callerID {
		return ErrFlowUnauthorized
	}

	logs, err := r.docs.Query(ctx, logsCollection(flowID), nil)
	if err != nil {
		return err
	}

	for _, doc := range logs {
		err := r.docs.Delete(ctx, docstore.Join(logsCollection(flowID), doc.ID))
		if err != nil {
			return err
		}
	}

	return r.docs.Delete(ctx, flowPath(flowID))
}

// MarkFailed moves a flow back to draft and records the failure reason.
// Used by the failure callback when the scheduler gives up on retries.
func (r *Repository) MarkFailed(ctx context.Context, flowID, reason string) (*models.Flow, error) {
	flow, err := r.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}

	flow.Status = models.FlowStatusDraft
	flow.LastError = reason

	err = r.Save(ctx, flow)
	if err != nil {
		return nil, err
	}

	return flow, nil
}

// SaveLog writes one execution's FlowLog entry.
func (r *Repository) SaveLog(ctx context.Context, flowLog *models.FlowLog) error {
	if flowLog.CreatedAt.IsZero() {
		flowLog.CreatedAt = time.Now().UTC()
	}

	return r.docs.Set(ctx, logPath(flowLog.FlowID, flowLog.ID), flowLog)
}

// Logs returns a flow's execution log entries.
func (r *Repository) Logs(ctx context.Context, flowID string) ([]*models.FlowLog, error) {
	docs, err := r.docs.Query(ctx, logsCollection(flowID), nil)
	if err != nil {
		return nil, err
	}

	logs := make([]*models.FlowLog, 0, len(docs))

	for _, doc := range docs {
		var flowLog models.FlowLog

		err := doc.Decode(&flowLog)
		if err != nil {
			return nil, err
		}

		logs = append(logs, &flowLog)
	}

	return logs, nil
}
