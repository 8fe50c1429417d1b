package mention

import (
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		name   string
		dataID string
		ref    string
		field  string
		ok     bool
	}{
		{
			name:   "trigger ref",
			dataID: "trigger-EMAIL_TRIGGER[subject]",
			ref:    "trigger-EMAIL_TRIGGER",
			field:  "subject",
			ok:     true,
		},
		{
			name:   "step ref",
			dataID: "step-0-ASK_AI[text]",
			ref:    "step-0-ASK_AI",
			field:  "text",
			ok:     true,
		},
		{
			name:   "missing field brackets",
			dataID: "step-0-ASK_AI",
			ok:     false,
		},
		{
			name:   "bad prefix",
			dataID: "node-0-ASK_AI[text]",
			ok:     false,
		},
		{
			name:   "empty",
			dataID: "",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, field, ok := ParseRef(tt.dataID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ref, ref)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestResolve_NoMarkupUnchanged(t *testing.T) {
	assert.Equal(t, "plain text, nothing to do", Resolve("plain text, nothing to do", nil))
}

func TestResolve_MissingReferenceFailsOpen(t *testing.T) {
	text := `<span data-type="mention" data-id="step-0-FOO[bar]">x</span>`

	assert.Equal(t, "", Resolve(text, map[string]models.ExecutionResult{}))
}

func TestResolve_ReplacesMention(t *testing.T) {
	previous := map[string]models.ExecutionResult{
		"step-0-ASK_AI": {
			Success: true,
			Payload: map[string]any{"text": "hello from step one"},
		},
	}

	text := `Summary: <span data-type="mention" data-id="step-0-ASK_AI[text]">@ask ai</span>!`

	assert.Equal(t, "Summary: hello from step one!", Resolve(text, previous))
}

func TestResolve_TriggerRefAndNonStringPayload(t *testing.T) {
	previous := map[string]models.ExecutionResult{
		"trigger-SCHEDULE_TIME": {
			Success: true,
			Payload: map[string]any{"hour": 9, "tags": []any{"a", "b"}},
		},
	}

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "number stringified",
			text:     `at <span data-type="mention" data-id="trigger-SCHEDULE_TIME[hour]">h</span>h`,
			expected: "at 9h",
		},
		{
			name:     "slice marshalled",
			text:     `<span data-type="mention" data-id="trigger-SCHEDULE_TIME[tags]">t</span>`,
			expected: `["a","b"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.text, previous))
		})
	}
}

func TestResolve_MalformedDataIDLeftVerbatimThenStripped(t *testing.T) {
	// The span does not parse as a mention, so the replacement pass leaves
	// it alone; plain-text normalization still strips the tags around the
	// inner text.
	text := `<span data-type="mention" data-id="not-a-ref">inner</span>`

	assert.Equal(t, "inner", Resolve(text, nil))
}

func TestPlain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no markup",
			input:    "already plain",
			expected: "already plain",
		},
		{
			name:     "paragraphs become newlines",
			input:    "<p>first</p><p>second</p>",
			expected: "first\nsecond",
		},
		{
			name:     "br becomes newline",
			input:    "a<br>b<br/>c",
			expected: "a\nb\nc",
		},
		{
			name:     "entities decoded",
			input:    "fish &amp; chips &lt;3",
			expected: "fish & chips <3",
		},
		{
			name:     "inline tags stripped",
			input:    "<strong>bold</strong> and <em>italic</em>",
			expected: "bold and italic",
		},
		{
			name:     "blank lines collapsed and trimmed",
			input:    "<p></p><p>one</p><p></p><p></p><p>two</p>",
			expected: "one\ntwo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Plain(tt.input))
		})
	}
}

func TestResolveProps(t *testing.T) {
	previous := map[string]models.ExecutionResult{
		"step-0-WEB_FETCH": {
			Success: true,
			Payload: map[string]any{"body": "fetched"},
		},
	}

	props := map[string]any{
		"message": `got: <span data-type="mention" data-id="step-0-WEB_FETCH[body]">b</span>`,
		"count":   3,
		"flags":   map[string]any{"a": true},
	}

	resolved := ResolveProps(props, previous)

	assert.Equal(t, "got: fetched", resolved["message"])
	assert.Equal(t, 3, resolved["count"])
	assert.Equal(t, map[string]any{"a": true}, resolved["flags"])

	// input untouched
	assert.Contains(t, props["message"], "data-type")
}
