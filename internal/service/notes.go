package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/metrics"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/and161185/notekeeper/internal/repository"
)

// Limits on note fields, in characters.
const (
	MaxTitleLen   = 200
	MaxContentLen = 5000
)

// Cipher encrypts note content at the storage boundary.
// It is implemented by *notecipher.Cipher.
type Cipher interface {
	Encrypt(plaintext string) (model.EncryptedBlob, error)
	Decrypt(blob model.EncryptedBlob) (string, error)
}

// NoteService defines owner-scoped operations over encrypted notes.
type NoteService interface {
	// Create validates, encrypts and stores a new note.
	Create(ctx context.Context, ownerID uuid.UUID, title, content string) (model.Note, error)
	// List returns the owner's notes, most recently updated first.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Note, error)
	// Get returns one note of the owner.
	Get(ctx context.Context, ownerID, noteID uuid.UUID) (model.Note, error)
	// Update replaces title and content of the owner's note.
	Update(ctx context.Context, ownerID, noteID uuid.UUID, title, content string) (model.Note, error)
	// Delete removes the owner's note.
	Delete(ctx context.Context, ownerID, noteID uuid.UUID) error
}

type NoteServiceImpl struct {
	repo   repository.NoteRepository
	cipher Cipher
	log    *zap.Logger
	now    func() time.Time
}

// NewNoteService constructs NoteService. A nil logger discards output.
func NewNoteService(repo repository.NoteRepository, cipher Cipher, log *zap.Logger) *NoteServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &NoteServiceImpl{repo: repo, cipher: cipher, log: log, now: time.Now}
}

// validateNote checks both fields and reports every problem at once.
func validateNote(title, content string) error {
	var v errs.ValidationError
	checkText(&v, "title", title, MaxTitleLen)
	checkText(&v, "content", content, MaxContentLen)
	return v.OrNil()
}

func checkText(v *errs.ValidationError, field, s string, limit int) {
	switch {
	case !utf8.ValidString(s):
		v.Add(field, "must be valid UTF-8")
	case strings.ContainsRune(s, 0):
		v.Add(field, "must not contain NUL")
	case strings.TrimSpace(s) == "":
		v.Add(field, "must not be empty")
	case utf8.RuneCountInString(s) > limit:
		v.Add(field, "must be at most "+strconv.Itoa(limit)+" characters")
	}
}

// Create stores a note owned by ownerID. Both timestamps are set to now.
func (s *NoteServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, title, content string) (n model.Note, err error) {
	defer func() { observe("create", err) }()

	if ownerID == uuid.Nil {
		return model.Note{}, errs.ErrUnauthorized
	}
	if err := validateNote(title, content); err != nil {
		return model.Note{}, err
	}
	blob, err := s.cipher.Encrypt(content)
	if err != nil {
		return model.Note{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Note{}, err
	}
	now := s.timestamp()
	sn := &model.StoredNote{
		ID:         id,
		OwnerID:    ownerID,
		Title:      title,
		ContentEnc: blob,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, sn); err != nil {
		return model.Note{}, err
	}
	return model.Note{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// List decrypts every note of the owner. A note that fails to decrypt is
// returned with a placeholder and does not affect the others.
// An unauthenticated caller gets an empty list.
func (s *NoteServiceImpl) List(ctx context.Context, ownerID uuid.UUID) (out []model.Note, err error) {
	defer func() { observe("list", err) }()

	if ownerID == uuid.Nil {
		return []model.Note{}, nil
	}
	stored, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out = make([]model.Note, 0, len(stored))
	for i := range stored {
		out = append(out, s.open(&stored[i]))
	}
	return out, nil
}

// Get returns errs.ErrNotFound for missing notes and for notes of other owners alike.
func (s *NoteServiceImpl) Get(ctx context.Context, ownerID, noteID uuid.UUID) (n model.Note, err error) {
	defer func() { observe("get", err) }()

	if ownerID == uuid.Nil || noteID == uuid.Nil {
		return model.Note{}, errs.ErrNotFound
	}
	sn, err := s.repo.GetByOwner(ctx, ownerID, noteID)
	if err != nil {
		return model.Note{}, err
	}
	return s.open(sn), nil
}

// Update re-validates and re-encrypts; title and content change together or not at all.
func (s *NoteServiceImpl) Update(ctx context.Context, ownerID, noteID uuid.UUID, title, content string) (n model.Note, err error) {
	defer func() { observe("update", err) }()

	if err := validateNote(title, content); err != nil {
		return model.Note{}, err
	}
	if ownerID == uuid.Nil || noteID == uuid.Nil {
		return model.Note{}, errs.ErrNotFound
	}
	blob, err := s.cipher.Encrypt(content)
	if err != nil {
		return model.Note{}, err
	}
	sn, err := s.repo.Update(ctx, ownerID, noteID, title, blob, s.timestamp())
	if err != nil {
		return model.Note{}, err
	}
	return s.open(sn), nil
}

// Delete removes the note; the id stays invalid afterwards.
func (s *NoteServiceImpl) Delete(ctx context.Context, ownerID, noteID uuid.UUID) (err error) {
	defer func() { observe("delete", err) }()

	if ownerID == uuid.Nil || noteID == uuid.Nil {
		return errs.ErrNotFound
	}
	return s.repo.Delete(ctx, ownerID, noteID)
}

// timestamp is now at timestamptz precision, so a returned note matches later reads.
func (s *NoteServiceImpl) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// open decrypts a stored note, substituting the placeholder on failure.
func (s *NoteServiceImpl) open(sn *model.StoredNote) model.Note {
	n := model.Note{
		ID:        sn.ID,
		OwnerID:   sn.OwnerID,
		Title:     sn.Title,
		CreatedAt: sn.CreatedAt,
		UpdatedAt: sn.UpdatedAt,
	}
	content, err := s.cipher.Decrypt(sn.ContentEnc)
	if err != nil {
		metrics.DecryptFailures.Inc()
		s.log.Warn("note content could not be decrypted",
			zap.String("note_id", sn.ID.String()),
			zap.String("owner_id", sn.OwnerID.String()),
			zap.Error(err),
		)
		n.Content = model.ContentPlaceholder
		n.DecryptErr = err
		return n
	}
	n.Content = content
	return n
}

func observe(op string, err error) {
	metrics.NoteOperations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrValidation):
		return "invalid"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
