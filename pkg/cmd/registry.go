// Package cmd provides common initialization functions for the service
// binaries.
package cmd

import (
	"log/slog"

	"github.com/flowdeck-io/flowdeck/pkg/ai"
	"github.com/flowdeck-io/flowdeck/pkg/config"
	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/flowdeck-io/flowdeck/pkg/messaging"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/askai"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/calendar"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/email"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/emailtrigger"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/formatter"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/scheduleinterval"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/scheduletime"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/tablecreate"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/tabledelete"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/tableread"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/tableupdate"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/webfetch"
	"github.com/flowdeck-io/flowdeck/pkg/nodes/whatsapp"
	"github.com/flowdeck-io/flowdeck/pkg/notify"
	"github.com/flowdeck-io/flowdeck/pkg/registry"
	"github.com/flowdeck-io/flowdeck/pkg/tables"
)

// Collaborators bundles the shared services node handlers depend on.
type Collaborators struct {
	Docs     docstore.Store
	Tables   *tables.Store
	AI       ai.Client
	Agents   *askai.AgentStore
	WhatsApp *messaging.WhatsApp
	Email    messaging.EmailSender
	Calendar calendar.Provider
	Notifier *notify.Notifier
}

// NewCollaborators wires the shared services from configuration.
func NewCollaborators(databaseURL string, services config.ServiceConfig, logger *slog.Logger) Collaborators {
	docs := NewDocstore(databaseURL)

	whatsAppAPI := messaging.NewCloudAPI(
		services.WhatsApp.BaseURL,
		services.WhatsApp.PhoneNumberID,
		services.WhatsApp.Token,
	)

	whatsApp := messaging.NewWhatsApp(whatsAppAPI, docs, logger)
	email := messaging.NewHTTPEmailSender(
		services.Email.Endpoint,
		services.Email.APIKey,
		services.Email.From,
	)

	return Collaborators{
		Docs:   docs,
		Tables: tables.NewStore(docs, logger),
		AI: ai.NewHTTPClient(ai.HTTPClientConfig{
			BaseURL: services.AI.BaseURL,
			APIKey:  services.AI.APIKey,
			Model:   services.AI.Model,
		}),
		Agents:   askai.NewAgentStore(docs),
		WhatsApp: whatsApp,
		Email:    email,
		Calendar: calendar.NewStoreProvider(docs),
		Notifier: notify.NewNotifier(whatsApp, email, notify.NewDocstoreContacts(docs), logger),
	}
}

// NewRegistry builds the node registry with every native node type
// registered against the given collaborators.
func NewRegistry(c Collaborators, logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	// Triggers.
	reg.Register(scheduletime.NewHandler())
	reg.Register(scheduleinterval.NewHandler())
	reg.Register(emailtrigger.NewHandler())

	// Actions.
	reg.Register(whatsapp.NewHandler(c.WhatsApp))
	reg.Register(email.NewHandler(c.Email))
	reg.Register(tablecreate.NewHandler(c.Tables, c.AI))
	reg.Register(tableread.NewHandler(c.Tables))
	reg.Register(tableupdate.NewHandler(c.Tables))
	reg.Register(tabledelete.NewHandler(c.Tables))
	reg.Register(askai.NewHandler(c.AI, c.Agents))
	reg.Register(webfetch.NewHandler())
	reg.Register(formatter.NewHandler())
	reg.Register(calendar.NewHandler(c.Calendar))

	return reg
}
