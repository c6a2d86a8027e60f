package repository

import (
	"context"
	"time"

	"github.com/and161185/notekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// NoteRepository persists encrypted notes. Every lookup and mutation is scoped
// to an owner; a note of another owner behaves as if it did not exist.
type NoteRepository interface {
	// Insert stores a new note.
	Insert(ctx context.Context, n *model.StoredNote) error

	// ListByOwner returns the owner's notes, most recently updated first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.StoredNote, error)

	// GetByOwner returns one note or errs.ErrNotFound.
	GetByOwner(ctx context.Context, ownerID, noteID uuid.UUID) (*model.StoredNote, error)

	// Update atomically replaces title and content and bumps updated_at to at least at.
	Update(ctx context.Context, ownerID, noteID uuid.UUID, title string, content model.EncryptedBlob, at time.Time) (*model.StoredNote, error)

	// Delete removes the note or returns errs.ErrNotFound.
	Delete(ctx context.Context, ownerID, noteID uuid.UUID) error
}
