// Command notekeeper-server starts the notekeeper gRPC server.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/notekeeper/internal/config"
	"github.com/and161185/notekeeper/internal/crypto/notecipher"
	"github.com/and161185/notekeeper/internal/keystore"
	"github.com/and161185/notekeeper/internal/limiter"
	"github.com/and161185/notekeeper/internal/migrate"
	"github.com/and161185/notekeeper/internal/repository/postgres"
	grpcserver "github.com/and161185/notekeeper/internal/server/grpc"
	httpserver "github.com/and161185/notekeeper/internal/server/http"
	"github.com/and161185/notekeeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, loads the encryption key and serves gRPC.
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// newLogger builds a production logger at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// keyBackend selects where the encryption key is kept.
func keyBackend(ctx context.Context, k config.KeyConfig) (keystore.Backend, error) {
	switch k.Backend {
	case config.KeyBackendS3:
		b, err := keystore.NewS3Backend(ctx, keystore.S3Config{
			Bucket:    k.S3.Bucket,
			Object:    k.S3.Object,
			Region:    k.S3.Region,
			Endpoint:  k.S3.Endpoint,
			AccessKey: k.S3.AccessKey,
			SecretKey: k.S3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.KeyBackendFile:
		return &keystore.FileBackend{Path: k.File}, nil
	default:
		return nil, fmt.Errorf("unknown key backend %q", k.Backend)
	}
}

// serverOptions returns TLS credentials, or nothing in dev mode.
func serverOptions(s config.ServerConfig, log *zap.Logger) ([]grpc.ServerOption, error) {
	if s.Dev {
		log.Warn("dev mode: serving plaintext gRPC with reflection")
		return nil, nil
	}
	creds, err := credentials.NewServerTLSFromFile(s.TLSCert, s.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}
	return []grpc.ServerOption{grpc.Creds(creds)}, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// The key comes first: without it no note can be read or written.
	backend, err := keyBackend(ctx, cfg.Key)
	if err != nil {
		return err
	}
	key, err := keystore.New(backend, notecipher.KeySize, logger).Key(ctx)
	if err != nil {
		return err
	}
	cipher, err := notecipher.New(key)
	clear(key)
	if err != nil {
		return err
	}

	if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool: %w", err)
	}
	defer db.Close()

	// Repositories and services
	userRepo := postgres.NewUserRepo(db)
	noteRepo := postgres.NewNoteRepo(db)
	lim := limiter.NewPG(db.Pool, limiter.Policy{
		Window:   cfg.Auth.LoginWindow,
		MaxFails: cfg.Auth.LoginMaxFails,
		BlockFor: cfg.Auth.LoginBlockFor,
	})
	authSvc := service.NewAuthService(userRepo, cfg.Auth.JWTKey, cfg.Auth.AccessTTL, lim, logger)
	noteSvc := service.NewNoteService(noteRepo, cipher, logger)

	opts, err := serverOptions(cfg.Server, logger)
	if err != nil {
		return err
	}
	gs, hs := grpcserver.NewGRPCServer(grpcserver.New(authSvc, noteSvc, logger), authSvc, logger, grpcserver.Options{
		ServerOptions: opts,
		Reflection:    cfg.Server.Dev,
	})

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", cfg.Server.Addr), zap.Bool("tls", !cfg.Server.Dev))
		return gs.Serve(lis)
	})
	g.Go(func() error {
		return httpserver.New(cfg.Server.HTTPAddr, httpserver.NewRouter(db, logger), logger).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		hs.Shutdown()
		// graceful shutdown
		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			gs.Stop()
		}
		return nil
	})
	return g.Wait()
}
