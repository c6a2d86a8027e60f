// Package grpcserver exposes the notekeeper gRPC API handlers.
package grpcserver

import (
	"context"
	"net"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/notekeeper/internal/api"
	"github.com/and161185/notekeeper/internal/convert"
	"github.com/and161185/notekeeper/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	api.UnimplementedNotesServer
	auth  service.AuthService
	notes service.NoteService
	log   *zap.Logger
}

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, notes service.NoteService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, notes: notes, log: log}
}

// fail logs unexpected errors and converts err to a status.
func (s *Server) fail(op string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.log.Error(op, zap.Error(err))
	}
	return st
}

// owner returns the authenticated user, or uuid.Nil; the service decides what Nil means.
func owner(ctx context.Context) uuid.UUID {
	id, err := OwnerFromContext(ctx)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// remoteIP returns the peer host without port so all connections of a client share limiter state.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	u, err := s.auth.CreateUser(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.fail("register", err)
	}
	return &api.RegisterResponse{UserID: u.ID.String()}, nil
}

// Login authenticates a user and returns an access token.
func (s *Server) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	tok, u, err := s.auth.Login(ctx, req.Username, req.Password, remoteIP(ctx))
	if err != nil {
		return nil, s.fail("login", err)
	}
	return &api.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt.UTC(),
		UserID:      u.ID.String(),
	}, nil
}

// --- Notes ---

// CreateNote adds a note for the caller.
func (s *Server) CreateNote(ctx context.Context, req *api.CreateNoteRequest) (*api.CreateNoteResponse, error) {
	n, err := s.notes.Create(ctx, owner(ctx), convert.TitleOrDefault(req.Title), req.Content)
	if err != nil {
		return nil, s.fail("create note", err)
	}
	return &api.CreateNoteResponse{Note: convert.ToAPINote(n)}, nil
}

// ListNotes returns the caller's notes, most recently updated first.
func (s *Server) ListNotes(ctx context.Context, _ *api.ListNotesRequest) (*api.ListNotesResponse, error) {
	ns, err := s.notes.List(ctx, owner(ctx))
	if err != nil {
		return nil, s.fail("list notes", err)
	}
	return &api.ListNotesResponse{Notes: convert.ToAPINotes(ns)}, nil
}

// GetNote returns one of the caller's notes.
func (s *Server) GetNote(ctx context.Context, req *api.GetNoteRequest) (*api.GetNoteResponse, error) {
	id, err := convert.NoteID(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad id")
	}
	n, err := s.notes.Get(ctx, owner(ctx), id)
	if err != nil {
		return nil, s.fail("get note", err)
	}
	return &api.GetNoteResponse{Note: convert.ToAPINote(n)}, nil
}

// UpdateNote replaces title and content of one of the caller's notes.
func (s *Server) UpdateNote(ctx context.Context, req *api.UpdateNoteRequest) (*api.UpdateNoteResponse, error) {
	id, err := convert.NoteID(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad id")
	}
	n, err := s.notes.Update(ctx, owner(ctx), id, convert.TitleOrDefault(req.Title), req.Content)
	if err != nil {
		return nil, s.fail("update note", err)
	}
	return &api.UpdateNoteResponse{Note: convert.ToAPINote(n)}, nil
}

// DeleteNote removes one of the caller's notes.
func (s *Server) DeleteNote(ctx context.Context, req *api.DeleteNoteRequest) (*api.DeleteNoteResponse, error) {
	id, err := convert.NoteID(req.ID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad id")
	}
	if err := s.notes.Delete(ctx, owner(ctx), id); err != nil {
		return nil, s.fail("delete note", err)
	}
	return &api.DeleteNoteResponse{}, nil
}
