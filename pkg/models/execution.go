package models

// ExecutionResult is the uniform handler return value. Payload is keyed by
// field name and becomes addressable by later steps as
// "step-{index}-{node_id}[{field}]" or "trigger-{node_id}[{field}]".
type ExecutionResult struct {
	Success bool           `json:"success"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Failure builds a failed result from a domain error. Handlers return these
// for expected failures instead of propagating an error.
func Failure(err error) ExecutionResult {
	return ExecutionResult{Success: false, Error: err.Error()}
}

// Success builds a successful result with the given payload.
func Succeed(payload map[string]any) ExecutionResult {
	return ExecutionResult{Success: true, Payload: payload}
}

// ExecutionContext carries the identity of one flow execution through every
// handler invocation.
type ExecutionContext struct {
	ID      string                     `json:"id"`
	FlowID  string                     `json:"flow_id"`
	UserID  string                     `json:"user_id"`
	IsTest  bool                       `json:"is_test,omitempty"`
	Results map[string]ExecutionResult `json:"results,omitempty"`
}

// Record stores a completed step's result under its ref key.
func (c *ExecutionContext) Record(ref string, result ExecutionResult) {
	if c.Results == nil {
		c.Results = make(map[string]ExecutionResult)
	}

	c.Results[ref] = result
}
