package messaging_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWhatsApp(t *testing.T, now time.Time) (*messaging.WhatsApp, *messaging.RecorderAPI, docstore.Store) {
	t.Helper()

	api := &messaging.RecorderAPI{}
	docs := docstore.NewMemory()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	svc := messaging.NewWhatsApp(api, docs, logger).WithClock(func() time.Time { return now })

	return svc, api, docs
}

func TestWhatsAppSendDirectInsideWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, api, _ := newWhatsApp(t, now)
	ctx := context.Background()

	require.NoError(t, svc.RecordInbound(ctx, "+15550001111", now.Add(-23*time.Hour)))

	route, templateID, err := svc.Send(ctx, "+15550001111", "your report is ready")
	require.NoError(t, err)

	assert.Equal(t, messaging.RouteDirect, route)
	assert.Empty(t, templateID)
	require.Len(t, api.Messages, 1)
	assert.Equal(t, "your report is ready", api.Messages[0].Text)
	assert.Empty(t, api.Messages[0].TemplateName)
}

func TestWhatsAppSendTemplateWhenNoInbound(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, api, _ := newWhatsApp(t, now)

	route, templateID, err := svc.Send(context.Background(), "+15550001111", "your report is ready")
	require.NoError(t, err)

	assert.Equal(t, messaging.RouteTemplate, route)
	assert.NotEmpty(t, templateID)
	require.Len(t, api.Messages, 1)
	assert.Equal(t, messaging.FallbackTemplateName, api.Messages[0].TemplateName)
	assert.Equal(t, templateID, api.Messages[0].TemplateID)
}

func TestWhatsAppSendTemplateWhenWindowExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, api, _ := newWhatsApp(t, now)
	ctx := context.Background()

	require.NoError(t, svc.RecordInbound(ctx, "+15550001111", now.Add(-25*time.Hour)))

	route, _, err := svc.Send(ctx, "+15550001111", "hello again")
	require.NoError(t, err)

	assert.Equal(t, messaging.RouteTemplate, route)
	require.Len(t, api.Messages, 1)
	assert.Equal(t, messaging.FallbackTemplateName, api.Messages[0].TemplateName)
}

func TestWhatsAppTemplateParksOriginalText(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newWhatsApp(t, now)
	ctx := context.Background()

	_, templateID, err := svc.Send(ctx, "+15550001111", "the parked payload")
	require.NoError(t, err)

	text, err := svc.PendingText(ctx, templateID)
	require.NoError(t, err)
	assert.Equal(t, "the parked payload", text)
}

func TestWhatsAppPendingTextMissing(t *testing.T) {
	svc, _, _ := newWhatsApp(t, time.Now())

	_, err := svc.PendingText(context.Background(), "tpl-unknown")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestWhatsAppSendNoRecipient(t *testing.T) {
	svc, api, _ := newWhatsApp(t, time.Now())

	_, _, err := svc.Send(context.Background(), "", "text")
	assert.ErrorIs(t, err, messaging.ErrNoRecipient)
	assert.Empty(t, api.Messages)
}
