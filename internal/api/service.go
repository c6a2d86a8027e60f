package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "notekeeper.v1.Notes"

// Full method names.
const (
	MethodRegister   = "/" + ServiceName + "/Register"
	MethodLogin      = "/" + ServiceName + "/Login"
	MethodCreateNote = "/" + ServiceName + "/CreateNote"
	MethodListNotes  = "/" + ServiceName + "/ListNotes"
	MethodGetNote    = "/" + ServiceName + "/GetNote"
	MethodUpdateNote = "/" + ServiceName + "/UpdateNote"
	MethodDeleteNote = "/" + ServiceName + "/DeleteNote"
)

// PublicMethods do not require a bearer token.
var PublicMethods = map[string]bool{
	MethodRegister: true,
	MethodLogin:    true,
}

// NotesServer is the server API for the Notes service.
type NotesServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	CreateNote(context.Context, *CreateNoteRequest) (*CreateNoteResponse, error)
	ListNotes(context.Context, *ListNotesRequest) (*ListNotesResponse, error)
	GetNote(context.Context, *GetNoteRequest) (*GetNoteResponse, error)
	UpdateNote(context.Context, *UpdateNoteRequest) (*UpdateNoteResponse, error)
	DeleteNote(context.Context, *DeleteNoteRequest) (*DeleteNoteResponse, error)
}

// UnimplementedNotesServer can be embedded to keep servers forward compatible.
type UnimplementedNotesServer struct{}

func (UnimplementedNotesServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedNotesServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedNotesServer) CreateNote(context.Context, *CreateNoteRequest) (*CreateNoteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateNote not implemented")
}
func (UnimplementedNotesServer) ListNotes(context.Context, *ListNotesRequest) (*ListNotesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListNotes not implemented")
}
func (UnimplementedNotesServer) GetNote(context.Context, *GetNoteRequest) (*GetNoteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetNote not implemented")
}
func (UnimplementedNotesServer) UpdateNote(context.Context, *UpdateNoteRequest) (*UpdateNoteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateNote not implemented")
}
func (UnimplementedNotesServer) DeleteNote(context.Context, *DeleteNoteRequest) (*DeleteNoteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteNote not implemented")
}

// RegisterNotesServer attaches srv to s.
func RegisterNotesServer(s grpc.ServiceRegistrar, srv NotesServer) {
	s.RegisterService(&NotesServiceDesc, srv)
}

// unary builds a MethodDesc handler that decodes Req and dispatches to call.
func unary[Req any, Resp any](method string, call func(NotesServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NotesServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(NotesServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// NotesServiceDesc describes the Notes service for grpc.Server.
var NotesServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotesServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(MethodRegister, NotesServer.Register)},
		{MethodName: "Login", Handler: unary(MethodLogin, NotesServer.Login)},
		{MethodName: "CreateNote", Handler: unary(MethodCreateNote, NotesServer.CreateNote)},
		{MethodName: "ListNotes", Handler: unary(MethodListNotes, NotesServer.ListNotes)},
		{MethodName: "GetNote", Handler: unary(MethodGetNote, NotesServer.GetNote)},
		{MethodName: "UpdateNote", Handler: unary(MethodUpdateNote, NotesServer.UpdateNote)},
		{MethodName: "DeleteNote", Handler: unary(MethodDeleteNote, NotesServer.DeleteNote)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notekeeper/v1/notes",
}
