package webfetch_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/flowdeck-io/flowdeck/pkg/models"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/webfetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, propsData map[string]any) models.ExecutionResult {
	t.Helper()

	handler := webfetch.NewHandler()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	step := models.StepInstance{ID: "s1", NodeID: webfetch.NodeID, PropsData: propsData}

	result, err := handler.Run(context.Background(), models.ExecutionContext{}, step, nil, logger)
	require.NoError(t, err)

	return result
}

func TestRunDecodesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"city":"London"}`))
	}))
	defer server.Close()

	result := run(t, map[string]any{"url": server.URL})

	assert.True(t, result.Success)
	assert.Equal(t, 200, result.Payload["status_code"])

	body, ok := result.Payload["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "London", body["city"])
}

func TestRunTextFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"decoded"}`))
	}))
	defer server.Close()

	result := run(t, map[string]any{"url": server.URL, "response_format": "text"})

	assert.True(t, result.Success)
	assert.Equal(t, `{"not":"decoded"}`, result.Payload["body"])
}

func TestRunNon2xxIsHandlerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	result := run(t, map[string]any{"url": server.URL})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "404")
	assert.Equal(t, 404, result.Payload["status_code"])
}

func TestRunNoRedirectFollow(t *testing.T) {
	var target *httptest.Server

	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/from" {
			http.Redirect(w, r, target.URL+"/to", http.StatusFound)

			return
		}

		_, _ = w.Write([]byte("landed"))
	}))
	defer target.Close()

	result := run(t, map[string]any{
		"url":              target.URL + "/from",
		"follow_redirects": false,
		"response_format":  "text",
	})

	assert.False(t, result.Success)
	assert.Equal(t, 302, result.Payload["status_code"])
}

func TestRunPostSendsBody(t *testing.T) {
	var received string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		received = string(buf)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	result := run(t, map[string]any{
		"url":             server.URL,
		"method":          "POST",
		"body":            `{"name":"Ada"}`,
		"response_format": "text",
	})

	assert.True(t, result.Success)
	assert.Equal(t, `{"name":"Ada"}`, received)
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name     string
		props    map[string]any
		contains string
	}{
		{name: "missing url", props: map[string]any{}, contains: "url"},
		{name: "relative url", props: map[string]any{"url": "/path"}, contains: "url"},
		{name: "bad method", props: map[string]any{"url": "http://x", "method": "TELEPORT"}, contains: "method"},
		{name: "bad format", props: map[string]any{"url": "http://x", "response_format": "xml"}, contains: "response_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, tt.props)

			assert.False(t, result.Success)
			assert.Contains(t, result.Error, tt.contains)
		})
	}
}
