package models

// PropSpec describes one configuration prop of a node type. Cloneable
// controls whether the value survives when a public flow is cloned by
// another user.
type PropSpec struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	Cloneable bool   `json:"cloneable"`
}

// OutputSpec describes one payload field a node produces, addressable by
// later steps through mentions.
type OutputSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// NodeDefinition is the static, compile-time description of a node type.
// It is exposed by each handler factory and never persisted.
type NodeDefinition struct {
	NodeID         string       `json:"node_id"`
	Props          []PropSpec   `json:"props"`
	ExpectedOutput []OutputSpec `json:"expected_output"`
}

// Cloneable reports whether the named prop survives flow cloning. Props not
// declared in the definition are kept.
func (d NodeDefinition) Cloneable(prop string) bool {
	for _, p := range d.Props {
		if p.Name == prop {
			return p.Cloneable
		}
	}

	return true
}

// RequiredProps returns the names of all required props.
func (d NodeDefinition) RequiredProps() []string {
	var required []string

	for _, p := range d.Props {
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return required
}
