package calendar

import (
	"context"
	"time"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
	"github.com/google/uuid"
)

const eventsCollection = "calendar_events"

type eventDoc struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoreProvider keeps events in the document store. It backs the built-in
// calendar; external provider integrations implement the same interface.
type StoreProvider struct {
	docs docstore.Store
}

func NewStoreProvider(docs docstore.Store) *StoreProvider {
	return &StoreProvider{docs: docs}
}

func (p *StoreProvider) CreateEvent(ctx context.Context, userID string, event Event) (string, error) {
	eventID := "evt-" + uuid.New().String()[:8]

	err := p.docs.Set(ctx, docstore.Join(eventsCollection, eventID), eventDoc{
		ID:          eventID,
		UserID:      userID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       event.Start,
		End:         event.End,
		Attendees:   event.Attendees,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	return eventID, nil
}

// Events returns a user's stored events.
func (p *StoreProvider) Events(ctx context.Context, userID string) ([]Event, error) {
	docs, err := p.docs.Query(ctx, eventsCollection, map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(docs))

	for _, doc := range docs {
		var stored eventDoc

		err := doc.Decode(&stored)
		if err != nil {
			return nil, err
		}

		events = append(events, Event{
			Title:       stored.Title,
			Description: stored.Description,
			Location:    stored.Location,
			Start:       stored.Start,
			End:         stored.End,
			Attendees:   stored.Attendees,
		})
	}

	return events, nil
}
