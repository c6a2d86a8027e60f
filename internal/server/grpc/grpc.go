package grpcserver

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/notekeeper/internal/api"
)

// Options configures NewGRPCServer.
type Options struct {
	// ServerOptions are passed to grpc.NewServer, e.g. grpc.Creds.
	ServerOptions []grpc.ServerOption
	// Reflection enables server reflection (dev only). Notes messages are JSON
	// and have no file descriptor, so reflection clients can list
	// notekeeper.v1.Notes but only resolve the health service.
	Reflection bool
}

// NewGRPCServer builds a grpc.Server serving app with the standard interceptor
// chain and the health service. The returned health server starts SERVING.
func NewGRPCServer(app *Server, auth Authenticator, log *zap.Logger, o Options) (*grpc.Server, *health.Server) {
	if log == nil {
		log = zap.NewNop()
	}
	public := map[string]bool{healthpb.Health_Check_FullMethodName: true}
	for m := range api.PublicMethods {
		public[m] = true
	}
	opts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
			MetricsUnary(),
			AuthUnary(auth, public),
		),
	}, o.ServerOptions...)

	s := grpc.NewServer(opts...)
	api.RegisterNotesServer(s, app)

	hs := health.NewServer()
	hs.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if o.Reflection {
		reflection.Register(s)
	}
	return s, hs
}
