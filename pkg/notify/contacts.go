package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowdeck-io/flowdeck/pkg/docstore"
)

// ErrContactNotFound is returned for users with no stored contact details.
var ErrContactNotFound = errors.New("contact not found")

func contactPath(userID string) string {
	return docstore.Join("contacts", userID)
}

// DocstoreContacts resolves user contact details from the document store.
type DocstoreContacts struct {
	docs docstore.Store
}

func NewDocstoreContacts(docs docstore.Store) *DocstoreContacts {
	return &DocstoreContacts{docs: docs}
}

func (s *DocstoreContacts) Contact(ctx context.Context, userID string) (Contact, error) {
	var contact Contact

	err := s.docs.Get(ctx, contactPath(userID), &contact)
	if errors.Is(err, docstore.ErrNotFound) {
		return Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, userID)
	}

	if err != nil {
		return Contact{}, fmt.Errorf("failed to load contact %s: %w", userID, err)
	}

	contact.UserID = userID

	return contact, nil
}

// Save stores or replaces a user's contact details.
func (s *DocstoreContacts) Save(ctx context.Context, contact Contact) error {
	if contact.UserID == "" {
		return errors.New("contact user id is required")
	}

	return s.docs.Set(ctx, contactPath(contact.UserID), contact)
}
