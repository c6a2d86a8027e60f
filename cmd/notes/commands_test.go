package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/and161185/notekeeper/internal/api"
)

/************ fake server ************/

type fakeNotes struct {
	api.UnimplementedNotesServer

	mu    sync.Mutex
	users map[string]string
	notes map[string]api.Note
	owner map[string]string
	seq   int
	clock time.Time
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{
		users: map[string]string{},
		notes: map[string]api.Note{},
		owner: map[string]string{},
		clock: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeNotes) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeNotes) caller(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get("authorization") {
		for u := range f.users {
			if v == "Bearer tok-"+u {
				return u, nil
			}
		}
	}
	return "", status.Error(codes.Unauthenticated, "unauthenticated")
}

func (f *fakeNotes) Register(_ context.Context, in *api.RegisterRequest) (*api.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[in.Username]; ok {
		return nil, status.Error(codes.AlreadyExists, "username taken")
	}
	f.users[in.Username] = in.Password
	return &api.RegisterResponse{UserID: "uid-" + in.Username}, nil
}

func (f *fakeNotes) Login(_ context.Context, in *api.LoginRequest) (*api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.users[in.Username]; !ok || p != in.Password {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return &api.LoginResponse{
		AccessToken: "tok-" + in.Username,
		ExpiresAt:   time.Now().Add(time.Hour).UTC(),
		UserID:      "uid-" + in.Username,
	}, nil
}

func (f *fakeNotes) CreateNote(ctx context.Context, in *api.CreateNoteRequest) (*api.CreateNoteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.caller(ctx)
	if err != nil {
		return nil, err
	}
	title := "Untitled note"
	if in.Title != nil {
		title = *in.Title
	}
	f.seq++
	now := f.tick()
	n := api.Note{ID: "n" + strconv.Itoa(f.seq), Title: title, Content: in.Content, CreatedAt: now, UpdatedAt: now}
	f.notes[n.ID] = n
	f.owner[n.ID] = u
	return &api.CreateNoteResponse{Note: n}, nil
}

func (f *fakeNotes) ListNotes(ctx context.Context, _ *api.ListNotesRequest) (*api.ListNotesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, err := f.caller(ctx)
	if err != nil {
		return nil, err
	}
	out := []api.Note{}
	for id, n := range f.notes {
		if f.owner[id] == u {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return &api.ListNotesResponse{Notes: out}, nil
}

func (f *fakeNotes) find(ctx context.Context, id string) (api.Note, error) {
	u, err := f.caller(ctx)
	if err != nil {
		return api.Note{}, err
	}
	n, ok := f.notes[id]
	if !ok || f.owner[id] != u {
		return api.Note{}, status.Error(codes.NotFound, "not found")
	}
	return n, nil
}

func (f *fakeNotes) GetNote(ctx context.Context, in *api.GetNoteRequest) (*api.GetNoteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.find(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	return &api.GetNoteResponse{Note: n}, nil
}

func (f *fakeNotes) UpdateNote(ctx context.Context, in *api.UpdateNoteRequest) (*api.UpdateNoteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.find(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	n.Title = "Untitled note"
	if in.Title != nil {
		n.Title = *in.Title
	}
	n.Content = in.Content
	n.ContentUnavailable = false
	n.UpdatedAt = f.tick()
	f.notes[n.ID] = n
	return &api.UpdateNoteResponse{Note: n}, nil
}

func (f *fakeNotes) DeleteNote(ctx context.Context, in *api.DeleteNoteRequest) (*api.DeleteNoteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.find(ctx, in.ID); err != nil {
		return nil, err
	}
	delete(f.notes, in.ID)
	delete(f.owner, in.ID)
	return &api.DeleteNoteResponse{}, nil
}

/************ harness ************/

type harness struct {
	srv *fakeNotes
	app *app
}

func startCLI(t *testing.T) *harness {
	t.Helper()
	_ = withTmpConfig(t)
	noColor(t)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	srv := newFakeNotes()
	api.RegisterNotesServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	a := &app{now: time.Now}
	a.connect = func(_ context.Context, bearer string) (*grpc.ClientConn, error) {
		opts := []grpc.DialOption{
			grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
		if bearer != "" {
			opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, plaintext: true}))
		}
		return grpc.NewClient("passthrough:///bufnet", opts...)
	}
	return &harness{srv: srv, app: a}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := h.app.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewBufferString("piped content"))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func (h *harness) notes(t *testing.T) []api.Note {
	t.Helper()
	out, err := h.run(t, "list", "--json")
	require.NoError(t, err)
	var got []api.Note
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	return got
}

/************ tests ************/

func TestCLI_Lifecycle(t *testing.T) {
	h := startCLI(t)

	out, err := h.run(t, "register", "-u", "alice", "-p", "pw")
	require.NoError(t, err)
	require.Contains(t, out, "registered alice (uid-alice)")

	_, err = h.run(t, "register", "-u", "alice", "-p", "pw")
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	out, err = h.run(t, "login", "-u", "alice", "-p", "pw")
	require.NoError(t, err)
	require.Contains(t, out, "logged in as alice")
	fi, err := os.Stat(tokenPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	_, err = h.run(t, "add", "--title", "groceries", "--content", "milk")
	require.NoError(t, err)
	_, err = h.run(t, "add", "--content", "no title")
	require.NoError(t, err)

	notes := h.notes(t)
	require.Len(t, notes, 2)
	require.Equal(t, "Untitled note", notes[0].Title)
	require.Equal(t, "groceries", notes[1].Title)
	groceries := notes[1].ID

	out, err = h.run(t, "show", groceries)
	require.NoError(t, err)
	require.Contains(t, out, "groceries\n")
	require.Contains(t, out, "\nmilk\n")

	// content kept, title changed; the edited note moves to the front
	_, err = h.run(t, "edit", groceries, "--title", "shopping")
	require.NoError(t, err)
	notes = h.notes(t)
	require.Equal(t, groceries, notes[0].ID)
	require.Equal(t, "shopping", notes[0].Title)
	require.Equal(t, "milk", notes[0].Content)

	// title kept, content from stdin
	_, err = h.run(t, "edit", groceries, "--file", "-")
	require.NoError(t, err)
	out, err = h.run(t, "show", groceries, "--json")
	require.NoError(t, err)
	var n api.Note
	require.NoError(t, json.Unmarshal([]byte(out), &n))
	require.Equal(t, "shopping", n.Title)
	require.Equal(t, "piped content", n.Content)

	out, err = h.run(t, "rm", groceries)
	require.NoError(t, err)
	require.Contains(t, out, "deleted "+groceries)
	require.Len(t, h.notes(t), 1)

	_, err = h.run(t, "show", groceries)
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.run(t, "logout")
	require.NoError(t, err)
	_, err = h.run(t, "list")
	require.ErrorIs(t, err, errNoToken)
}

func TestCLI_AddFromFile(t *testing.T) {
	h := startCLI(t)
	_, err := h.run(t, "register", "-u", "bob", "-p", "pw")
	require.NoError(t, err)
	_, err = h.run(t, "login", "-u", "bob", "-p", "pw")
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "n.txt")
	require.NoError(t, os.WriteFile(p, []byte("file body"), 0o600))
	out, err := h.run(t, "add", "-f", p, "--json")
	require.NoError(t, err)
	var n api.Note
	require.NoError(t, json.Unmarshal([]byte(out), &n))
	require.Equal(t, "file body", n.Content)
}

func TestCLI_InputErrors(t *testing.T) {
	h := startCLI(t)

	_, err := h.run(t, "login", "-u", "ghost", "-p", "nope")
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.run(t, "add", "--title", "x")
	require.ErrorContains(t, err, "need --content or --file")

	_, err = h.run(t, "add", "--content", "a", "--file", "b")
	require.Error(t, err)

	_, err = h.run(t, "edit", "n1")
	require.ErrorContains(t, err, "nothing to change")

	_, err = h.run(t, "show")
	require.Error(t, err)

	_, err = h.run(t, "login", "-u", "alice")
	require.Error(t, err)

	// no token saved
	_, err = h.run(t, "add", "--content", "x")
	require.ErrorIs(t, err, errNoToken)
}

func TestCLI_EditUnreadableNeedsContent(t *testing.T) {
	h := startCLI(t)
	_, err := h.run(t, "register", "-u", "carol", "-p", "pw")
	require.NoError(t, err)
	_, err = h.run(t, "login", "-u", "carol", "-p", "pw")
	require.NoError(t, err)
	_, err = h.run(t, "add", "--title", "old", "--content", "x")
	require.NoError(t, err)

	h.srv.mu.Lock()
	n := h.srv.notes["n1"]
	n.Content, n.ContentUnavailable = "[content could not be decrypted]", true
	h.srv.notes["n1"] = n
	h.srv.mu.Unlock()

	out, err := h.run(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "old (unreadable)")

	_, err = h.run(t, "edit", "n1", "--title", "new")
	require.ErrorContains(t, err, "unreadable")

	_, err = h.run(t, "edit", "n1", "--content", "fresh")
	require.NoError(t, err)
	require.False(t, h.notes(t)[0].ContentUnavailable)
}

func TestCLI_Version(t *testing.T) {
	h := startCLI(t)
	out, err := h.run(t, "version")
	require.NoError(t, err)
	require.Equal(t, "notes dev (unknown)\n", out)
}
