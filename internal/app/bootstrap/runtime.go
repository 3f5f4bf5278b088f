package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/identity-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/identity-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/identity-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/identity-service/internal/adapters/http"
	"github.com/viralforge/identity-service/internal/adapters/memory"
	metricsadapter "github.com/viralforge/identity-service/internal/adapters/metrics"
	"github.com/viralforge/identity-service/internal/adapters/postgres"
	"github.com/viralforge/identity-service/internal/adapters/security"
	"github.com/viralforge/identity-service/internal/application"
	"github.com/viralforge/identity-service/internal/ports"
)

type eventPublisher interface {
	ports.EventPublisher
	Close() error
}

// storage is the set of stores selected by storage.driver and storage.refresh_store.
type storage struct {
	accounts     ports.AccountRepository
	roles        ports.RoleRepository
	accountRoles ports.AccountRoleRepository
	sessions     ports.RefreshSessionRepository
	outbox       ports.OutboxRepository
	uow          ports.UnitOfWork
	readiness    map[string]httpadapter.ReadinessCheck
	cleanups     []func()
}

func (s *storage) close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping identity service",
		"operation", "bootstrap",
		"outcome", "start",
		"config", cfg.String(),
	)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost, cfg.Argon2)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	tokenSigner, err := security.NewJWTSigner(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}
	metrics := metricsadapter.NewPrometheus("identity")

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			RefreshSessionTTL:       cfg.RefreshSessionTTL,
			UnifyCredentialFailures: cfg.UnifyCredentialFailures,
		},
		Accounts:      store.accounts,
		Roles:         store.roles,
		AccountRoles:  store.accountRoles,
		Sessions:      store.sessions,
		UnitOfWork:    store.uow,
		Hasher:        hasher,
		TokenSigner:   tokenSigner,
		RefreshTokens: security.NewRefreshTokenGenerator(),
		Metrics:       metrics,
	})

	trustedProxies, err := httpadapter.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		store.close()
		return nil, err
	}
	router := httpadapter.NewRouter(httpadapter.NewHandler(svc, store.readiness), httpadapter.RouterOptions{
		Metrics: metrics,
		RateLimit: httpadapter.RateLimitConfig{
			PerSecond: cfg.RateLimitPerSecond,
			Burst:     cfg.RateLimitBurst,
		},
		TrustedProxies: trustedProxies,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcadapter.UnaryLoggingInterceptor))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewIdentityInternalServer(svc))

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		store.close()
		return nil, err
	}
	outbox := eventadapter.NewOutboxWorker(logger, store.outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			_ = publisher.Close()
			store.close()
		},
	}, nil
}

func openStorage(ctx context.Context, cfg Config) (*storage, error) {
	store := &storage{readiness: map[string]httpadapter.ReadinessCheck{}}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		repos := memory.NewRepositories()
		store.accounts = repos.Accounts
		store.roles = repos.Roles
		store.accountRoles = repos.AccountRoles
		store.sessions = repos.Sessions
		store.outbox = repos.Outbox
		store.uow = repos.UnitOfWork
	default:
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		store.cleanups = append(store.cleanups, func() { _ = sqlDB.Close() })
		if err := postgres.RunMigrations(ctx, db); err != nil {
			store.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		repos := postgres.NewRepositories(db)
		store.accounts = repos.Accounts
		store.roles = repos.Roles
		store.accountRoles = repos.AccountRoles
		store.sessions = repos.Sessions
		store.outbox = repos.Outbox
		store.uow = repos.UnitOfWork
		store.readiness["postgres"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	}

	if cfg.RefreshStore == RefreshStoreRedis {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			store.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store.cleanups = append(store.cleanups, func() { _ = redisClient.Close() })
		store.sessions = cacheadapter.NewRedisRefreshSessionStore(redisClient, cfg.RefreshSessionTTL)
		store.readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return store, nil
}

func newPublisher(cfg Config, logger *slog.Logger) (eventPublisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return eventadapter.NewLoggingPublisher(logger), nil
	}
	publisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopics)
	if err != nil {
		return nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return publisher, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 3)
	go func() {
		r.logger.Info("http server started", "operation", "serve_http", "outcome", "start", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "operation", "serve_grpc", "outcome", "start", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	// The in-memory outbox is only visible to this process, so the relay runs here.
	if r.cfg.StorageDriver == StorageDriverMemory {
		go func() {
			if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("outbox worker: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received", "operation", "shutdown", "outcome", "start")
	case err := <-errCh:
		r.logger.Error("server failure", "operation", "serve", "outcome", "failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	if r.cfg.StorageDriver == StorageDriverMemory {
		r.cleanupFn(ctx)
		return errors.New("outbox worker requires postgres storage; the api process relays in-memory events itself")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started", "operation", "run_worker", "outcome", "start")
	err := r.outbox.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
