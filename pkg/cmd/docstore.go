package cmd

import (
	"fmt"
	"strings"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
)

var supportedDocstoreProviders = []string{"memory", "redis"}

// NewDocstore creates a document store from a database URL. "memory://"
// selects the in-process store, "redis://..." the Redis-backed one.
func NewDocstore(databaseURL string) docstore.Store {
	provider := parseDocstoreProvider(databaseURL)

	switch provider {
	case "memory":
		return docstore.NewMemory()
	case "redis", "rediss":
		store, err := docstore.NewRedisFromURL(databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis document store: %w", err))
		}

		return store
	default:
		panic("Unsupported document store provider: " + provider +
			" (supported: " + strings.Join(supportedDocstoreProviders, ", ") + ")")
	}
}

func parseDocstoreProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return scheme
}
