package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// CloudAPI is a WhatsApp Business Cloud API style client: one phone
// number ID, bearer token auth, JSON message payloads.
type CloudAPI struct {
	baseURL       string
	phoneNumberID string
	token         string
	httpClient    *http.Client
}

func NewCloudAPI(baseURL, phoneNumberID, token string) *CloudAPI {
	return &CloudAPI{
		baseURL:       baseURL,
		phoneNumberID: phoneNumberID,
		token:         token,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (c *CloudAPI) SendText(ctx context.Context, to, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text},
	}

	return c.post(ctx, payload)
}

func (c *CloudAPI) SendTemplate(ctx context.Context, to, templateName, templateID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name":     templateName,
			"language": map[string]any{"code": "en"},
			"components": []map[string]any{
				{
					"type":     "button",
					"sub_type": "quick_reply",
					"index":    "0",
					"parameters": []map[string]any{
						{"type": "payload", "payload": templateID},
					},
				},
			},
		},
	}

	return c.post(ctx, payload)
}

func (c *CloudAPI) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("whatsapp API returned status %d: %s", resp.StatusCode, string(msg))
	}

	return nil
}

// HTTPEmailSender posts JSON to a transactional email endpoint.
type HTTPEmailSender struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
}

func NewHTTPEmailSender(endpoint, apiKey, from string) *HTTPEmailSender {
	return &HTTPEmailSender{
		endpoint:   endpoint,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (s *HTTPEmailSender) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(map[string]any{
		"from":    s.from,
		"to":      to,
		"subject": subject,
		"html":    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("email API returned status %d: %s", resp.StatusCode, string(msg))
	}

	return nil
}
