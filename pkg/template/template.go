// Package template renders text/template expressions over step payloads.
// It backs the formatter node.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// RenderWithResults renders input against an execution's accumulated step
// results plus the execution identity.
func RenderWithResults(input string, execCtx *models.ExecutionContext, prev *models.ExecutionResult) (any, error) {
	data := map[string]any{
		"results": payloads(execCtx.Results),
		"execution": map[string]any{
			"id":      execCtx.ID,
			"flow_id": execCtx.FlowID,
		},
	}

	if prev != nil {
		data["prev"] = prev.Payload
	}

	return Render(input, data)
}

// Render parses and executes a template over data. JSON-looking output is
// decoded, numeric and boolean output coerced, everything else returned as
// a string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("format").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)

				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// Parse checks template syntax without executing.
func Parse(templateStr string) (*template.Template, error) {
	return template.New("format").Parse(templateStr)
}

func payloads(results map[string]models.ExecutionResult) map[string]any {
	out := make(map[string]any, len(results))
	for ref, result := range results {
		out[ref] = result.Payload
	}

	return out
}
