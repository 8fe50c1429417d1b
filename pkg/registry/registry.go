// Package registry maps node type identifiers to their handlers. The map is
// populated once at startup; there is no runtime registration.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// NotFoundError is returned for node type identifiers that have no
// registered handler. Callers surface it before execution begins.
type NotFoundError struct {
	NodeID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node type '%s' not registered", e.NodeID)
}

// ValidationError reports step props that do not satisfy the node's schema.
type ValidationError struct {
	NodeID string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid props for node '%s': %s", e.NodeID, strings.Join(e.Issues, "; "))
}

type Registry struct {
	logger   *slog.Logger
	handlers map[string]protocol.Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("module", "registry"),
		handlers: make(map[string]protocol.Handler),
	}
}

// Register adds a handler. Called only during startup wiring; a duplicate
// node ID is a programming error.
func (r *Registry) Register(handler protocol.Handler) {
	id := handler.ID()
	if _, exists := r.handlers[id]; exists {
		panic("duplicate node handler registered: " + id)
	}

	r.handlers[id] = handler
	r.logger.Debug("Registered node handler", "node_id", id)
}

// Get returns the handler for the given node type, or a *NotFoundError.
func (r *Registry) Get(nodeID string) (protocol.Handler, error) {
	handler, ok := r.handlers[nodeID]
	if !ok {
		return nil, &NotFoundError{NodeID: nodeID}
	}

	return handler, nil
}

// NodeIDs returns all registered node type identifiers, sorted.
func (r *Registry) NodeIDs() []string {
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Definitions returns the static node catalog, keyed by node ID. Used for
// prop validation and for stripping non-cloneable props on flow clone.
func (r *Registry) Definitions() map[string]models.NodeDefinition {
	defs := make(map[string]models.NodeDefinition, len(r.handlers))
	for id, handler := range r.handlers {
		defs[id] = handler.Definition()
	}

	return defs
}

// ValidateProps checks step props against the node's JSON schema. Unknown
// node IDs return a *NotFoundError; schema violations a *ValidationError.
func (r *Registry) ValidateProps(nodeID string, props map[string]any) error {
	handler, err := r.Get(nodeID)
	if err != nil {
		return err
	}

	schema := handler.Schema()
	if schema == nil {
		return nil
	}

	if props == nil {
		props = map[string]any{}
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for node '%s': %w", nodeID, err)
	}

	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to marshal props for node '%s': %w", nodeID, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(propsJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed for node '%s': %w", nodeID, err)
	}

	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}

	return &ValidationError{NodeID: nodeID, Issues: issues}
}
