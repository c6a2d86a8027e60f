package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// NoteRepo implements NoteRepository using PostgreSQL.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }

const noteColumns = `id, user_id, title, encrypted_content, created_at, updated_at`

// lockNote takes the row lock for an owner's note inside tx.
const lockNote = `SELECT id FROM notes WHERE id=$1 AND user_id=$2 FOR UPDATE`

func scanNote(row pgx.Row) (*model.StoredNote, error) {
	var n model.StoredNote
	if err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.ContentEnc, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// Insert stores a new note row.
func (r *NoteRepo) Insert(ctx context.Context, n *model.StoredNote) error {
	const q = `
INSERT INTO notes (id, user_id, title, encrypted_content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	return r.db.withTx(ctx, "insert note", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, n.ID, n.OwnerID, n.Title, []byte(n.ContentEnc), n.CreatedAt, n.UpdatedAt)
		return errs.Persistence("insert note", err)
	})
}

// ListByOwner returns the owner's notes ordered by updated_at descending.
func (r *NoteRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.StoredNote, error) {
	const q = `
SELECT ` + noteColumns + `
FROM notes
WHERE user_id=$1
ORDER BY updated_at DESC, created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, errs.Persistence("list notes", err)
	}
	defer rows.Close()

	out := []model.StoredNote{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errs.Persistence("list notes", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("list notes", err)
	}
	return out, nil
}

// GetByOwner returns a single note of the owner.
func (r *NoteRepo) GetByOwner(ctx context.Context, ownerID, noteID uuid.UUID) (*model.StoredNote, error) {
	const q = `
SELECT ` + noteColumns + `
FROM notes WHERE id=$1 AND user_id=$2`
	n, err := scanNote(r.db.Pool.QueryRow(ctx, q, noteID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Persistence("get note", err)
	}
	return n, nil
}

// Update locks the owner's note and rewrites title and content in one statement.
// updated_at never moves backwards and always changes.
func (r *NoteRepo) Update(
	ctx context.Context, ownerID, noteID uuid.UUID, title string, content model.EncryptedBlob, at time.Time,
) (out *model.StoredNote, err error) {
	const upd = `
UPDATE notes
SET title=$3, encrypted_content=$4, updated_at=GREATEST($5, updated_at + interval '1 microsecond')
WHERE id=$1 AND user_id=$2
RETURNING ` + noteColumns
	err = r.db.withTx(ctx, "update note", func(tx pgx.Tx) error {
		if err := lock(ctx, tx, ownerID, noteID, "update note"); err != nil {
			return err
		}
		n, err := scanNote(tx.QueryRow(ctx, upd, noteID, ownerID, title, []byte(content), at))
		if err != nil {
			return errs.Persistence("update note", err)
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the owner's note.
func (r *NoteRepo) Delete(ctx context.Context, ownerID, noteID uuid.UUID) error {
	const del = `DELETE FROM notes WHERE id=$1 AND user_id=$2`
	return r.db.withTx(ctx, "delete note", func(tx pgx.Tx) error {
		if err := lock(ctx, tx, ownerID, noteID, "delete note"); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, del, noteID, ownerID)
		return errs.Persistence("delete note", err)
	})
}

func lock(ctx context.Context, tx pgx.Tx, ownerID, noteID uuid.UUID, op string) error {
	var id uuid.UUID
	if err := tx.QueryRow(ctx, lockNote, noteID, ownerID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return errs.Persistence(op, err)
	}
	return nil
}
