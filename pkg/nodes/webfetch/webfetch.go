// Package webfetch performs an HTTP request and shapes the response for
// downstream steps.
package webfetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/models"
)

// NodeID identifies this node type in the registry.
const NodeID = "WEB_FETCH"

const (
	defaultTimeoutSeconds = 30
	maxTimeoutSeconds     = 120
	maxResponseBytes      = 4 << 20
)

var (
	errMissingURL    = errors.New("missing or invalid 'url' in step configuration")
	errInvalidMethod = errors.New("invalid HTTP method")
	errInvalidFormat = errors.New("invalid 'response_format', expected json, text or blob")
)

type props struct {
	URL             string
	Method          string
	Headers         map[string]string
	Body            string
	Timeout         time.Duration
	FollowRedirects bool
	ResponseFormat  string
}

// Handler executes WEB_FETCH steps.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ID() string   { return NodeID }
func (h *Handler) Name() string { return "Web Fetch" }

func (h *Handler) Description() string {
	return "Fetches a URL and returns the response body, status and headers."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Absolute URL to fetch. Supports mentions of earlier step outputs.",
			},
			"method": map[string]any{
				"type":    "string",
				"default": http.MethodGet,
				"enum":    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "Request headers.",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body for POST/PUT/PATCH.",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Request timeout in seconds.",
				"default":     defaultTimeoutSeconds,
				"minimum":     1,
				"maximum":     maxTimeoutSeconds,
			},
			"follow_redirects": map[string]any{
				"type":    "boolean",
				"default": true,
			},
			"response_format": map[string]any{
				"type":    "string",
				"default": "json",
				"enum":    []string{"json", "text", "blob"},
			},
		},
		"required":             []string{"url"},
		"additionalProperties": false,
	}
}

func (h *Handler) Definition() models.NodeDefinition {
	return models.NodeDefinition{
		NodeID: NodeID,
		Props: []models.PropSpec{
			{Name: "url", Type: "string", Required: true, Cloneable: true},
			{Name: "method", Type: "string", Required: false, Cloneable: true},
			{Name: "headers", Type: "object", Required: false, Cloneable: false},
			{Name: "body", Type: "string", Required: false, Cloneable: true},
			{Name: "timeout", Type: "number", Required: false, Cloneable: true},
			{Name: "follow_redirects", Type: "boolean", Required: false, Cloneable: true},
			{Name: "response_format", Type: "string", Required: false, Cloneable: true},
		},
		ExpectedOutput: []models.OutputSpec{
			{Name: "status_code", Type: "number", Description: "HTTP status code of the final response."},
			{Name: "body", Type: "any", Description: "Decoded JSON, text, or base64 blob depending on response_format."},
			{Name: "headers", Type: "object", Description: "Response headers."},
		},
	}
}

func parseProps(data map[string]any) (props, error) {
	rawURL, _ := data["url"].(string)

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return props{}, errMissingURL
	}

	p := props{
		URL:             rawURL,
		Method:          http.MethodGet,
		Timeout:         defaultTimeoutSeconds * time.Second,
		FollowRedirects: true,
		ResponseFormat:  "json",
	}

	if method, ok := data["method"].(string); ok && method != "" {
		p.Method = strings.ToUpper(method)
		switch p.Method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead:
		default:
			return props{}, fmt.Errorf("%w: %s", errInvalidMethod, method)
		}
	}

	if headers, ok := data["headers"].(map[string]any); ok {
		p.Headers = make(map[string]string, len(headers))

		for k, v := range headers {
			if value, ok := v.(string); ok {
				p.Headers[k] = value
			}
		}
	}

	p.Body, _ = data["body"].(string)

	if seconds, ok := data["timeout"].(float64); ok && seconds >= 1 {
		if seconds > maxTimeoutSeconds {
			seconds = maxTimeoutSeconds
		}

		p.Timeout = time.Duration(seconds) * time.Second
	}

	if follow, ok := data["follow_redirects"].(bool); ok {
		p.FollowRedirects = follow
	}

	if format, ok := data["response_format"].(string); ok && format != "" {
		switch format {
		case "json", "text", "blob":
			p.ResponseFormat = format
		default:
			return props{}, fmt.Errorf("%w: %s", errInvalidFormat, format)
		}
	}

	return p, nil
}

func (h *Handler) Run(
	ctx context.Context,
	_ models.ExecutionContext,
	step models.StepInstance,
	_ *models.ExecutionResult,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("module", "web_fetch_node")

	p, err := parseProps(step.PropsData)
	if err != nil {
		return models.Failure(err), nil
	}

	var bodyReader io.Reader
	if p.Body != "" {
		bodyReader = strings.NewReader(p.Body)
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bodyReader)
	if err != nil {
		return models.Failure(fmt.Errorf("failed to create request: %w", err)), nil
	}

	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: p.Timeout}
	if !p.FollowRedirects {
		client.CheckRedirect = func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return models.Failure(fmt.Errorf("fetch failed: %w", err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.Failure(fmt.Errorf("failed to read response body: %w", err)), nil
	}

	body := decodeBody(ctx, raw, p.ResponseFormat, logger)

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	payload := map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     headers,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.WarnContext(ctx, "Fetch returned non-2xx status", "url", p.URL, "status", resp.StatusCode)

		return models.ExecutionResult{
			Success: false,
			Payload: payload,
			Error:   fmt.Sprintf("request returned status %d", resp.StatusCode),
		}, nil
	}

	logger.InfoContext(ctx, "Fetch completed", "url", p.URL, "status", resp.StatusCode)

	return models.Succeed(payload), nil
}

func decodeBody(ctx context.Context, raw []byte, format string, logger *slog.Logger) any {
	switch format {
	case "blob":
		return base64.StdEncoding.EncodeToString(raw)
	case "text":
		return string(raw)
	default:
		var decoded any

		err := json.Unmarshal(raw, &decoded)
		if err != nil {
			logger.WarnContext(ctx, "Response is not valid JSON, returning as text", "error", err)

			return string(raw)
		}

		return decoded
	}
}
