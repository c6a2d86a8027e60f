// Package convert maps between domain models and wire messages.
package convert

import (
	"fmt"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/notekeeper/internal/api"
	model "github.com/and161185/notekeeper/internal/model"
)

// --- Note (server -> client) ---

// ToAPINote converts a domain note. Undecryptable content is flagged, never sent.
func ToAPINote(n model.Note) api.Note {
	out := api.Note{
		ID:        n.ID.String(),
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt.UTC(),
		UpdatedAt: n.UpdatedAt.UTC(),
	}
	if n.DecryptErr != nil {
		out.Content = model.ContentPlaceholder
		out.ContentUnavailable = true
	}
	return out
}

// ToAPINotes converts a slice; the result is never nil.
func ToAPINotes(ns []model.Note) []api.Note {
	out := make([]api.Note, 0, len(ns))
	for _, n := range ns {
		out = append(out, ToAPINote(n))
	}
	return out
}

// --- requests (client -> server) ---

// TitleOrDefault returns the requested title, or the default when the field was omitted.
// An explicitly empty title is kept so that validation rejects it.
func TitleOrDefault(title *string) string {
	if title == nil {
		return model.DefaultTitle
	}
	return *title
}

// NoteID parses a note id from the wire.
func NoteID(s string) (u.UUID, error) {
	var id u.UUID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return u.Nil, fmt.Errorf("invalid id: %w", err)
	}
	return id, nil
}
