package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/notekeeper/internal/crypto/notecipher"
	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/and161185/notekeeper/internal/repository"
)

// memNotes mimics the owner scoping and ordering of the Postgres repository.
type memNotes struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.StoredNote

	insertErr error
	listErr   error
	updateErr error
}

var _ repository.NoteRepository = (*memNotes)(nil)

func newMemNotes() *memNotes { return &memNotes{byID: map[uuid.UUID]model.StoredNote{}} }

func (m *memNotes) Insert(_ context.Context, n *model.StoredNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.byID[n.ID] = *n
	return nil
}

func (m *memNotes) ListByOwner(_ context.Context, owner uuid.UUID) ([]model.StoredNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []model.StoredNote{}
	for _, n := range m.byID {
		if n.OwnerID == owner {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memNotes) GetByOwner(_ context.Context, owner, id uuid.UUID) (*model.StoredNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok || n.OwnerID != owner {
		return nil, errs.ErrNotFound
	}
	return &n, nil
}

func (m *memNotes) Update(_ context.Context, owner, id uuid.UUID, title string, content model.EncryptedBlob, at time.Time) (*model.StoredNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok || n.OwnerID != owner {
		return nil, errs.ErrNotFound
	}
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	n.Title = title
	n.ContentEnc = content
	if next := n.UpdatedAt.Add(time.Microsecond); at.Before(next) {
		at = next
	}
	n.UpdatedAt = at
	m.byID[id] = n
	return &n, nil
}

func (m *memNotes) Delete(_ context.Context, owner, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok || n.OwnerID != owner {
		return errs.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func newCipher(t *testing.T) *notecipher.Cipher {
	t.Helper()
	key := make([]byte, notecipher.KeySize)
	for i := range key {
		key[i] = byte(i + 1)
	}
	c, err := notecipher.New(key)
	require.NoError(t, err)
	return c
}

// fixedClock advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(step)
		return t
	}
}

func newNoteSvc(t *testing.T, repo repository.NoteRepository) *NoteServiceImpl {
	t.Helper()
	s := NewNoteService(repo, newCipher(t), zaptest.NewLogger(t))
	s.now = fixedClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), time.Second)
	return s
}

func TestNoteService_Scenario(t *testing.T) {
	ctx := context.Background()
	users := &fakeUsers{byName: map[string]*model.User{}}
	auth := NewAuthService(users, []byte("k"), time.Minute, nil, zaptest.NewLogger(t))

	alice, err := auth.CreateUser(ctx, "alice", "pw123456")
	require.NoError(t, err)
	_, err = auth.CreateUser(ctx, "alice", "pw123456")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	repo := newMemNotes()
	s := newNoteSvc(t, repo)

	created, err := s.Create(ctx, alice.ID, "Shopping", "milk, eggs")
	require.NoError(t, err)

	list, err := s.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Shopping", list[0].Title)
	require.Equal(t, "milk, eggs", list[0].Content)
	require.NoError(t, list[0].DecryptErr)

	// stored blob is not plaintext
	stored := repo.byID[created.ID]
	require.NotContains(t, string(stored.ContentEnc), "milk")

	_, err = s.Update(ctx, alice.ID, created.ID, "Shopping v2", "milk, eggs, bread")
	require.NoError(t, err)
	got, err := s.Get(ctx, alice.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Shopping v2", got.Title)
	require.Equal(t, "milk, eggs, bread", got.Content)
	require.True(t, got.UpdatedAt.After(got.CreatedAt))

	require.NoError(t, s.Delete(ctx, alice.ID, created.ID))
	_, err = s.Get(ctx, alice.ID, created.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, alice.ID, created.ID), errs.ErrNotFound)
}

func TestNoteService_AccessIsolation(t *testing.T) {
	ctx := context.Background()
	s := newNoteSvc(t, newMemNotes())
	a := uuid.Must(uuid.NewV4())
	b := uuid.Must(uuid.NewV4())

	n, err := s.Create(ctx, a, "mine", "secret")
	require.NoError(t, err)

	_, err = s.Get(ctx, b, n.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Update(ctx, b, n.ID, "stolen", "x")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, b, n.ID), errs.ErrNotFound)

	list, err := s.List(ctx, b)
	require.NoError(t, err)
	require.Empty(t, list)

	// a's note untouched
	got, err := s.Get(ctx, a, n.ID)
	require.NoError(t, err)
	require.Equal(t, "mine", got.Title)
	require.Equal(t, "secret", got.Content)
}

func TestNoteService_OrderingAndEditMovesToFront(t *testing.T) {
	ctx := context.Background()
	s := newNoteSvc(t, newMemNotes())
	owner := uuid.Must(uuid.NewV4())

	first, err := s.Create(ctx, owner, "first", "1")
	require.NoError(t, err)
	_, err = s.Create(ctx, owner, "second", "2")
	require.NoError(t, err)
	_, err = s.Create(ctx, owner, "third", "3")
	require.NoError(t, err)

	titles := func() []string {
		list, err := s.List(ctx, owner)
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for i, n := range list {
			if i > 0 {
				require.False(t, n.UpdatedAt.After(list[i-1].UpdatedAt))
			}
			out = append(out, n.Title)
		}
		return out
	}
	require.Equal(t, []string{"third", "second", "first"}, titles())

	_, err = s.Update(ctx, owner, first.ID, "first", "edited")
	require.NoError(t, err)
	require.Equal(t, []string{"first", "third", "second"}, titles())
}

func TestNoteService_EditWithFrozenClockStillMovesForward(t *testing.T) {
	ctx := context.Background()
	s := newNoteSvc(t, newMemNotes())
	frozen := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return frozen }
	owner := uuid.Must(uuid.NewV4())

	n, err := s.Create(ctx, owner, "t", "c")
	require.NoError(t, err)
	upd, err := s.Update(ctx, owner, n.ID, "t2", "c2")
	require.NoError(t, err)
	require.True(t, upd.UpdatedAt.After(n.UpdatedAt))
}

func TestNoteService_TimestampsMatchStoragePrecision(t *testing.T) {
	ctx := context.Background()
	s := newNoteSvc(t, newMemNotes())
	s.now = fixedClock(time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.UTC), time.Second)
	owner := uuid.Must(uuid.NewV4())

	n, err := s.Create(ctx, owner, "t", "c")
	require.NoError(t, err)
	require.Equal(t, 123456000, n.CreatedAt.Nanosecond())
	require.True(t, n.CreatedAt.Equal(n.UpdatedAt))

	got, err := s.Get(ctx, owner, n.ID)
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(n.CreatedAt))

	upd, err := s.Update(ctx, owner, n.ID, "t2", "c2")
	require.NoError(t, err)
	require.Zero(t, upd.UpdatedAt.Nanosecond()%1000)
}

func TestNoteService_Validation(t *testing.T) {
	ctx := context.Background()
	repo := newMemNotes()
	s := newNoteSvc(t, repo)
	owner := uuid.Must(uuid.NewV4())

	_, err := s.Create(ctx, owner, "", "")
	require.ErrorIs(t, err, errs.ErrValidation)
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 2)
	require.Equal(t, "title", ve.Fields[0].Field)
	require.Equal(t, "content", ve.Fields[1].Field)

	_, err = s.Create(ctx, owner, "   ", "ok")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Create(ctx, owner, strings.Repeat("t", MaxTitleLen+1), "ok")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Create(ctx, owner, "ok", strings.Repeat("c", MaxContentLen+1))
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Create(ctx, owner, "ok", "bad \xff utf8")
	require.ErrorIs(t, err, errs.ErrValidation)

	// postgres text columns reject NUL
	_, err = s.Create(ctx, owner, "a\x00b", "ok")
	require.ErrorIs(t, err, errs.ErrValidation)
	require.True(t, errors.As(err, &ve))
	require.Equal(t, []errs.FieldError{{Field: "title", Message: "must not contain NUL"}}, ve.Fields)
	_, err = s.Create(ctx, owner, "ok", "x\x00")
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Error(t, validateNote("\x00", "\x00"))

	// limits count characters, not bytes
	_, err = s.Create(ctx, owner, strings.Repeat("ё", MaxTitleLen), strings.Repeat("日", MaxContentLen))
	require.NoError(t, err)

	require.Len(t, repo.byID, 1)

	n, err := s.Create(ctx, owner, "x", "y")
	require.NoError(t, err)
	_, err = s.Update(ctx, owner, n.ID, "", "y")
	require.ErrorIs(t, err, errs.ErrValidation)
	got, err := s.Get(ctx, owner, n.ID)
	require.NoError(t, err)
	require.Equal(t, "x", got.Title)
}

func TestNoteService_Unauthenticated(t *testing.T) {
	ctx := context.Background()
	s := newNoteSvc(t, newMemNotes())

	list, err := s.List(ctx, uuid.Nil)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	_, err = s.Create(ctx, uuid.Nil, "t", "c")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	id := uuid.Must(uuid.NewV4())
	_, err = s.Get(ctx, uuid.Nil, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Update(ctx, uuid.Nil, id, "t", "c")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, uuid.Nil, id), errs.ErrNotFound)
}

func TestNoteService_DecryptFailureIsPerNote(t *testing.T) {
	ctx := context.Background()
	repo := newMemNotes()
	s := newNoteSvc(t, repo)
	owner := uuid.Must(uuid.NewV4())

	good, err := s.Create(ctx, owner, "good", "readable")
	require.NoError(t, err)
	bad, err := s.Create(ctx, owner, "bad", "will be corrupted")
	require.NoError(t, err)

	sn := repo.byID[bad.ID]
	sn.ContentEnc = append(model.EncryptedBlob(nil), sn.ContentEnc...)
	sn.ContentEnc[len(sn.ContentEnc)-1] ^= 0x01
	repo.byID[bad.ID] = sn

	list, err := s.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, n := range list {
		switch n.ID {
		case good.ID:
			require.Equal(t, "readable", n.Content)
			require.NoError(t, n.DecryptErr)
		case bad.ID:
			require.Equal(t, model.ContentPlaceholder, n.Content)
			require.ErrorIs(t, n.DecryptErr, errs.ErrDecryptionFailed)
			require.Equal(t, "bad", n.Title)
		}
	}

	got, err := s.Get(ctx, owner, bad.ID)
	require.NoError(t, err)
	require.Equal(t, model.ContentPlaceholder, got.Content)

	// a fresh edit makes it readable again
	fixed, err := s.Update(ctx, owner, bad.ID, "bad", "rewritten")
	require.NoError(t, err)
	require.Equal(t, "rewritten", fixed.Content)
	require.NoError(t, fixed.DecryptErr)
}

func TestNoteService_RepoErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	repo := newMemNotes()
	s := newNoteSvc(t, repo)
	owner := uuid.Must(uuid.NewV4())

	boom := errs.Persistence("insert note", errors.New("disk"))
	repo.insertErr = boom
	_, err := s.Create(ctx, owner, "t", "c")
	require.ErrorIs(t, err, errs.ErrPersistence)
	repo.insertErr = nil

	n, err := s.Create(ctx, owner, "t", "c")
	require.NoError(t, err)

	repo.updateErr = errs.Persistence("update note", errors.New("deadlock"))
	_, err = s.Update(ctx, owner, n.ID, "t2", "c2")
	require.ErrorIs(t, err, errs.ErrPersistence)
	got, err := s.Get(ctx, owner, n.ID)
	require.NoError(t, err)
	require.Equal(t, "t", got.Title)
	require.Equal(t, "c", got.Content)

	repo.listErr = errors.New("down")
	_, err = s.List(ctx, owner)
	require.Error(t, err)
}

func TestNoteService_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	s := newNoteSvc(t, newMemNotes())
	owner := uuid.Must(uuid.NewV4())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, owner, "t", "c")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := s.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 16)
}

func TestResultLabel(t *testing.T) {
	require.Equal(t, "ok", resultLabel(nil))
	require.Equal(t, "invalid", resultLabel(validateNote("", "x")))
	require.Equal(t, "not_found", resultLabel(errs.ErrNotFound))
	require.Equal(t, "unauthorized", resultLabel(errs.ErrUnauthorized))
	require.Equal(t, "error", resultLabel(errors.New("x")))
}
