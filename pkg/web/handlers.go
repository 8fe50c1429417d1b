package web

import (
	"log/slog"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/eventbus"
	"github.com/flowdeck-io/flowdeck/pkg/events"
	"github.com/flowdeck-io/flowdeck/pkg/flows"
	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/registry"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	flows     *flows.Repository
	tables    *tables.Store
	callback  *flows.CallbackService
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	flowRepo *flows.Repository,
	tableStore *tables.Store,
	callback *flows.CallbackService,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		flows:     flowRepo,
		tables:    tableStore,
		callback:  callback,
		registry:  reg,
		publisher: publisher,
		validator: validator,
		logger:    logger.With("module", "web"),
	}
}

// userID extracts the caller identity set by the platform gateway. Every
// endpoint except the failure callback requires it.
func userID(c fiber.Ctx) string {
	return c.Get(UserIDHeader)
}

// --- Flows ---

func (h *APIHandlers) ListFlows(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	list, err := h.flows.List(c.Context(), uid)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"flows": list, "count": len(list)})
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.validateSteps(req.Trigger, req.Steps); err != nil {
		return badRequest(c, err.Error())
	}

	flow := &models.Flow{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Status:      models.FlowStatusDraft,
		CreatorID:   uid,
		Trigger:     req.Trigger,
		Steps:       req.Steps,
		Public:      req.Public,
	}

	if err := h.flows.Save(c.Context(), flow); err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	flow, err := h.flows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if flow.CreatorID != uid && !flow.Public {
		return forbidden(c, "Unauthorized access to flow")
	}

	return c.JSON(flow)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if flow.CreatorID != uid {
		return forbidden(c, "Unauthorized access to flow")
	}

	if req.Name != nil {
		flow.Name = *req.Name
	}

	if req.Description != nil {
		flow.Description = *req.Description
	}

	if req.Status != nil {
		flow.Status = *req.Status
	}

	if req.Trigger != nil {
		flow.Trigger = req.Trigger
	}

	if req.Steps != nil {
		flow.Steps = req.Steps
	}

	if req.Public != nil {
		flow.Public = *req.Public
	}

	if err := h.validateSteps(flow.Trigger, flow.Steps); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.flows.Save(c.Context(), flow); err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) DeleteFlow(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	if err := h.flows.Delete(c.Context(), c.Params("id"), uid); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ActivateFlow moves a flow from draft to active. Props of every step are
// validated against the node schemas so a broken flow never reaches the
// activator.
func (h *APIHandlers) ActivateFlow(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	flow, err := h.flows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if flow.CreatorID != uid {
		return forbidden(c, "Unauthorized access to flow")
	}

	if !flow.Executable() {
		return badRequest(c, flows.ErrFlowNotExecutable.Error())
	}

	if err := h.registry.ValidateProps(flow.Trigger.NodeID, flow.Trigger.PropsData); err != nil {
		return badRequest(c, err.Error())
	}

	for _, step := range flow.Steps {
		if err := h.registry.ValidateProps(step.NodeID, step.PropsData); err != nil {
			return badRequest(c, err.Error())
		}
	}

	flow.Status = models.FlowStatusActive
	flow.LastError = ""

	if err := h.flows.Save(c.Context(), flow); err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(flow)
}

// CloneFlow copies a public or owned flow into the caller's account. Props
// marked non-cloneable in the node catalog are stripped.
func (h *APIHandlers) CloneFlow(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	source, err := h.flows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if source.CreatorID != uid && !source.Public {
		return forbidden(c, "Unauthorized access to flow")
	}

	clone := source.Clone(uid, h.registry.Definitions())
	if err := h.flows.Save(c.Context(), clone); err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(clone)
}

func (h *APIHandlers) GetFlowLogs(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	flow, err := h.flows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if flow.CreatorID != uid {
		return forbidden(c, "Unauthorized access to flow")
	}

	logs, err := h.flows.Logs(c.Context(), flow.ID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"logs": logs, "count": len(logs)})
}

// RunFlow publishes a FlowTriggered event so a worker picks the flow up.
// The request body, if any, becomes the trigger data.
func (h *APIHandlers) RunFlow(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	flow, err := h.flows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if flow.CreatorID != uid {
		return forbidden(c, "Unauthorized access to flow")
	}

	if !flow.Executable() {
		return badRequest(c, flows.ErrFlowNotExecutable.Error())
	}

	var triggerData map[string]any
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&triggerData); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	event := events.FlowTriggered{
		BaseEvent:   events.NewBaseEvent(events.FlowTriggeredEvent, flow.ID),
		UserID:      uid,
		TriggerData: triggerData,
	}

	if err := h.publisher.Publish(c.Context(), flow.ID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"flow_id":  flow.ID,
		"event_id": event.ID,
	})
}

func (h *APIHandlers) validateSteps(trigger *models.StepInstance, steps []models.StepInstance) error {
	if trigger != nil {
		if _, err := h.registry.Get(trigger.NodeID); err != nil {
			return err
		}
	}

	for _, step := range steps {
		if _, err := h.registry.Get(step.NodeID); err != nil {
			return err
		}
	}

	return nil
}

// --- Tables ---

func (h *APIHandlers) CreateTable(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req CreateTableRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.TableVisibilityPrivate
	}

	table := &models.Table{
		Name:         req.Name,
		Fields:       req.Fields,
		CreatorID:    uid,
		Visibility:   visibility,
		AllowedUsers: req.AllowedUsers,
	}

	if err := h.tables.SaveTable(c.Context(), table); err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(table)
}

func (h *APIHandlers) ListTables(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	list, err := h.tables.ListTables(c.Context(), uid)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"tables": list, "count": len(list)})
}

func (h *APIHandlers) GetTable(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	table, err := h.tables.GetTable(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if !table.Readable(uid) {
		return forbidden(c, tables.ErrUnauthorized.Error())
	}

	return c.JSON(table)
}

func (h *APIHandlers) DeleteTable(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	if err := h.tables.DeleteTable(c.Context(), c.Params("id"), uid); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// --- Records ---

func (h *APIHandlers) CreateRecord(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req RecordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.tables.CreateRecord(c.Context(), c.Params("id"), uid, req.Fields)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

// ListRecords returns a table's records. Query string parameters become
// equality filters on field values.
func (h *APIHandlers) ListRecords(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	filters := make(map[string]any)
	for key, value := range c.Queries() {
		filters[key] = value
	}

	records, err := h.tables.QueryRecords(c.Context(), c.Params("id"), uid, filters)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"records": records, "count": len(records)})
}

func (h *APIHandlers) GetRecord(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	record, err := h.tables.GetRecord(c.Context(), c.Params("id"), uid, c.Params("recordId"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) UpdateRecord(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req RecordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	record, err := h.tables.UpdateRecord(c.Context(), c.Params("id"), uid, c.Params("recordId"), req.Fields)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) DeleteRecord(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	if err := h.tables.DeleteRecord(c.Context(), c.Params("id"), uid, c.Params("recordId")); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// --- Nodes ---

// ListNodes returns the node catalog: every registered node type with its
// definition and props schema.
func (h *APIHandlers) ListNodes(c fiber.Ctx) error {
	nodes := make([]fiber.Map, 0)

	for _, id := range h.registry.NodeIDs() {
		handler, err := h.registry.Get(id)
		if err != nil {
			continue
		}

		nodes = append(nodes, fiber.Map{
			"id":          handler.ID(),
			"name":        handler.Name(),
			"description": handler.Description(),
			"schema":      handler.Schema(),
			"definition":  handler.Definition(),
		})
	}

	return c.JSON(fiber.Map{"nodes": nodes, "count": len(nodes)})
}

// TestNode executes a single node in isolation with a synthetic execution
// context. Nothing is persisted to flow logs and failure notifications are
// suppressed.
func (h *APIHandlers) TestNode(c fiber.Ctx) error {
	uid := userID(c)
	if uid == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	var req TestNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	handler, err := h.registry.Get(req.NodeID)
	if err != nil {
		return handleDomainError(c, err)
	}

	executionID := "exec-" + uuid.New().String()[:8]
	execCtx := models.ExecutionContext{
		ID:     executionID,
		UserID: uid,
		IsTest: true,
	}

	step := models.StepInstance{
		NodeID:    req.NodeID,
		PropsData: req.PropsData,
	}
	if name, ok := req.NodeData["name"].(string); ok {
		step.Name = name
	}

	logger := h.logger.With("node_id", req.NodeID, "execution_id", executionID)

	started := time.Now()
	result, err := handler.Run(c.Context(), execCtx, step, nil, logger)
	elapsed := time.Since(started).Milliseconds()

	resp := TestNodeResponse{
		ExecutionID: executionID,
		DurationMs:  elapsed,
	}

	if err != nil {
		resp.Error = err.Error()

		return c.JSON(resp)
	}

	resp.Success = result.Success
	resp.Result = &result

	return c.JSON(resp)
}

// --- Callbacks ---

// FailureCallback receives the scheduler's dead-letter webhook for flow
// executions that exhausted their retries. It carries no user header; the
// flow owner is recovered from the callback body.
func (h *APIHandlers) FailureCallback(c fiber.Ctx) error {
	var cb flows.FailureCallback
	if err := c.Bind().JSON(&cb); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(cb); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.callback.Process(c.Context(), cb)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(result)
}
