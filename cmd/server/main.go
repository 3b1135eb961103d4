// Command registry-server runs the vehicle registry gRPC and HTTP servers.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/address"
	"github.com/and161185/car-registry/internal/cache"
	"github.com/and161185/car-registry/internal/config"
	"github.com/and161185/car-registry/internal/crypto"
	"github.com/and161185/car-registry/internal/events"
	"github.com/and161185/car-registry/internal/limiter"
	"github.com/and161185/car-registry/internal/logging"
	"github.com/and161185/car-registry/internal/metrics"
	"github.com/and161185/car-registry/internal/migrate"
	"github.com/and161185/car-registry/internal/registry"
	"github.com/and161185/car-registry/internal/repository"
	"github.com/and161185/car-registry/internal/repository/memory"
	"github.com/and161185/car-registry/internal/repository/postgres"
	"github.com/and161185/car-registry/internal/repository/sqlite"
	grpcserver "github.com/and161185/car-registry/internal/server/grpc"
	httpserver "github.com/and161185/car-registry/internal/server/http"
	"github.com/and161185/car-registry/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

// main parses configuration and serves until SIGINT or SIGTERM.
func main() {
	flags := config.NewFlags(flag.CommandLine)
	flag.Parse()

	if flags.Version {
		fmt.Printf("registry-server %s (%s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load(flags.ConfigFile, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("grpc", cfg.Server.GRPCAddr),
		zap.String("http", cfg.Server.HTTPAddr),
		zap.String("db", cfg.Database.Type),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, pg, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	govKeys, err := cfg.Registry.GovernmentPubkeys()
	if err != nil {
		return err
	}
	deriver := address.New(cfg.Registry.ProgramID)
	machine := registry.New(registry.Config{
		InspectionPassThreshold: cfg.Registry.InspectionPassThreshold,
		GovernmentKeys:          govKeys,
	}, deriver)

	opts := []service.Option{
		service.WithMetrics(metrics.New(reg)),
		service.WithInspectionValidity(cfg.Registry.InspectionValidity),
		service.WithLimiter(newLimiter(cfg.Limiter, pg)),
	}

	if cfg.Redis.URL != "" {
		rc, err := cache.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rc.Close()
		opts = append(opts, service.WithCache(cache.NewRedis(rc, cfg.Redis.TTL)))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))
	}

	svc := service.NewRegistryService(store, machine, logger, opts...)

	gs, err := newGRPCServer(cfg, logger, svc)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	var hs *http.Server
	if cfg.Server.HTTPAddr != "" {
		hs = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           httpserver.New(svc, deriver, logger, reg).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening (grpc)", zap.String("addr", cfg.Server.GRPCAddr), zap.Bool("tls", cfg.Server.TLSCert != ""))
		return gs.Serve(lis)
	})
	if hs != nil {
		g.Go(func() error {
			logger.Info("listening (http)", zap.String("addr", hs.Addr))
			if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdown(gs, hs)
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, *postgres.DB, error) {
	switch cfg.Type {
	case "postgres":
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return postgres.NewStore(db), db, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return memory.New(), nil, nil
	}
}

// newLimiter keeps failure counters in postgres when that is the store, in memory otherwise.
func newLimiter(cfg config.LimiterConfig, pg *postgres.DB) limiter.Limiter {
	if !cfg.Enabled {
		return limiter.Nop{}
	}
	p := limiter.Policy{Window: cfg.Window, MaxFails: cfg.MaxFailures, BlockFor: cfg.BlockFor}
	if pg != nil {
		return limiter.NewPG(pg.Pool, p)
	}
	return limiter.NewMemory(p)
}

func newGRPCServer(cfg *config.Config, logger *zap.Logger, svc service.RegistryService) (*grpc.Server, error) {
	verifier := crypto.Verifier{MaxAge: cfg.Registry.ProofMaxAge, Leeway: cfg.Registry.ProofLeeway}
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(verifier, grpcserver.PublicMethods...),
		),
	}
	if cfg.Server.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("load TLS cert/key: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	} else {
		logger.Warn("gRPC listening without TLS")
	}

	s := grpc.NewServer(opts...)
	registryv1.RegisterRegistryServer(s, grpcserver.New(svc))

	hs := health.NewServer()
	hs.SetServingStatus(registryv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Server.Dev {
		reflection.Register(s)
	}
	return s, nil
}

func shutdown(gs *grpc.Server, hs *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if hs != nil {
		_ = hs.Shutdown(ctx)
	}
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		gs.Stop()
	}
}
