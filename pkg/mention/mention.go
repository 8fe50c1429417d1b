// Package mention resolves inter-step data references embedded in step
// configuration text and normalizes rich-text fragments to plain text.
//
// A mention is a markup span of the form
//
//	<span data-type="mention" data-id="{stepRef}[{field}]">...</span>
//
// where stepRef is "trigger-{node_id}" or "step-{index}-{node_id}". Each
// span is replaced with the referenced field of an earlier step's payload;
// missing references resolve to the empty string, never an error.
package mention

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"golang.org/x/net/html"
)

var (
	spanRe   = regexp.MustCompile(`(?s)<span[^>]*\bdata-type="mention"[^>]*>.*?</span>`)
	dataIDRe = regexp.MustCompile(`\bdata-id="([^"]*)"`)
	refRe    = regexp.MustCompile(`^(trigger-[^\[\]]+|step-\d+-[^\[\]]+)\[([^\[\]]+)\]$`)
)

// ParseRef splits a data-id value of the form "{stepRef}[{field}]".
func ParseRef(dataID string) (ref, field string, ok bool) {
	m := refRe.FindStringSubmatch(dataID)
	if m == nil {
		return "", "", false
	}

	return m[1], m[2], true
}

// Resolve replaces every mention span in text with the referenced value
// from previous step results, then normalizes the remainder to plain text.
// Spans whose data-id does not parse are left verbatim (fail-open); parsed
// references that point at nothing become the empty string.
func Resolve(text string, previous map[string]models.ExecutionResult) string {
	replaced := spanRe.ReplaceAllStringFunc(text, func(span string) string {
		idMatch := dataIDRe.FindStringSubmatch(span)
		if idMatch == nil {
			return span
		}

		ref, field, ok := ParseRef(idMatch[1])
		if !ok {
			return span
		}

		result, ok := previous[ref]
		if !ok || result.Payload == nil {
			return ""
		}

		value, ok := result.Payload[field]
		if !ok {
			return ""
		}

		return stringify(value)
	})

	return Plain(replaced)
}

// ResolveProps applies Resolve to every string-typed prop value. Non-string
// values pass through unchanged. The input map is not modified.
func ResolveProps(props map[string]any, previous map[string]models.ExecutionResult) map[string]any {
	resolved := make(map[string]any, len(props))

	for key, value := range props {
		if s, ok := value.(string); ok {
			resolved[key] = Resolve(s, previous)

			continue
		}

		resolved[key] = value
	}

	return resolved
}

// Plain normalizes a rich-text fragment: line breaks and block tags become
// newlines, entities are decoded, remaining tags are stripped, repeated
// blank lines are collapsed and the result is trimmed.
func Plain(input string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(input))

	var b strings.Builder

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapse(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				b.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if blockTag(string(name)) {
				b.WriteString("\n")
			}
		}
	}
}

var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "li": {}, "ul": {}, "ol": {}, "tr": {},
	"table": {}, "blockquote": {}, "pre": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

func blockTag(name string) bool {
	_, ok := blockTags[name]

	return ok
}

var blankLinesRe = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)

func collapse(s string) string {
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n"))
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
