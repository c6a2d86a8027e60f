package grpcserver

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/metrics"
	"github.com/and161185/notekeeper/internal/service"
)

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		// metadata only, never payloads
		log.Info("grpc",
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remote),
		)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// MetricsUnary counts requests and observes their duration.
func MetricsUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		metrics.RPCDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		metrics.RPCRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

var _ Authenticator = (service.AuthService)(nil)

// AuthUnary requires a valid bearer token on every method not listed in public
// and stores the token's user in the context.
func AuthUnary(auth Authenticator, public map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if public[info.FullMethod] {
			return next(ctx, req)
		}
		tok, ok := bearerTokenFromMD(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}
		id, err := auth.Authenticate(ctx, tok)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return next(withOwner(ctx, id), req)
	}
}

type ownerKey struct{}

// withOwner stores the authenticated owner in ctx.
func withOwner(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey{}, id)
}

// OwnerFromContext returns the owner put there by AuthUnary.
// A missing or nil owner is errs.ErrUnauthorized.
func OwnerFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(ownerKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}

func bearerTokenFromMD(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}
