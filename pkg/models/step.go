package models

import "fmt"

// TriggerDataProp is the props key the runner injects the firing event's
// payload under before executing a trigger step.
const TriggerDataProp = "trigger_data"

// StepInstance is one configured unit of work inside a flow. PropsData holds
// literal values or mention references into earlier step results;
// AIEnabledFields names the props that are rewritten by the LLM before the
// step runs.
type StepInstance struct {
	ID              string         `json:"id"`
	NodeID          string         `json:"node_id"  validate:"required"`
	ParentNodeID    string         `json:"parent_node_id,omitempty"`
	Name            string         `json:"name"`
	PropsData       map[string]any `json:"props_data"`
	AIEnabledFields []string       `json:"ai_enabled_fields,omitempty"`
	Position        int            `json:"position"`
}

// ContinueOnError reports whether the flow should keep running after this
// step fails. Off by default; enabled per step via props.
func (s *StepInstance) ContinueOnError() bool {
	v, ok := s.PropsData["continue_on_error"]
	if !ok {
		return false
	}

	b, ok := v.(bool)

	return ok && b
}

func (s StepInstance) cloneStripped(catalog map[string]NodeDefinition) StepInstance {
	out := s
	out.PropsData = make(map[string]any, len(s.PropsData))

	def, known := catalog[s.NodeID]
	for key, value := range s.PropsData {
		if known && !def.Cloneable(key) {
			continue
		}

		out.PropsData[key] = value
	}

	return out
}

// TriggerRef builds the result key for a flow's trigger step.
func TriggerRef(nodeID string) string {
	return "trigger-" + nodeID
}

// StepRef builds the result key for the step at the given position.
func StepRef(index int, nodeID string) string {
	return fmt.Sprintf("step-%d-%s", index, nodeID)
}
