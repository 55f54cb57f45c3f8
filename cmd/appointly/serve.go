package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	v1 "github.com/dmehra2102/prod-golang-projects/appointly/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/config"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/appointly/internal/service"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/appointly/pkg/tracer"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before serving")
	return cmd
}

// repositories is the storage backend selected by STORAGE_DRIVER.
type repositories struct {
	users        service.UserRepository
	providers    provider.Repository
	appointments appointment.Repository
	audit        service.AuditRepository
	ready        func(ctx context.Context) error
	close        func() error
}

func openStorage(cfg *config.Config, migrate bool, log *zap.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := memory.NewStore()
		log.Warn("using in-memory storage; data is lost on restart")
		return &repositories{
			users:        store.Users(),
			providers:    store.Providers(),
			appointments: store.Appointments(),
			audit:        store.Audit(),
			close:        func() error { return nil },
		}, nil

	case config.StorageDriverPostgres:
		db, err := database.Connect(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := database.Migrate(db, log); err != nil {
				_ = sqlDB.Close()
				return nil, err
			}
		}
		return &repositories{
			users:        postgres.NewUserRepository(db),
			providers:    postgres.NewProviderRepository(db),
			appointments: postgres.NewAppointmentRepository(db),
			audit:        postgres.NewAuditRepository(db),
			ready:        sqlDB.PingContext,
			close:        sqlDB.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// newLocker picks the Redis lock when Redis is configured so replicas share
// provider locks; otherwise locking is in-process.
func newLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) (lock.Locker, func() error, error) {
	if !cfg.Redis.Enabled() {
		return lock.NewLocal(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	log.Info("using redis provider locks", zap.String("addr", cfg.Redis.Addr))
	return lock.NewRedis(client, lock.RedisOptions{
		TTL:           cfg.Lock.TTL,
		RetryInterval: cfg.Lock.RetryInterval,
	}, log.Named("lock")), client.Close, nil
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log = log.With(
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}

	repos, err := openStorage(cfg, migrate, log)
	if err != nil {
		return err
	}
	defer func() { _ = repos.close() }()

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLocker() }()

	m := metrics.NewCollector("appointly")
	jwtManager := auth.NewJWTManager(cfg.JWT)

	auditSvc := service.NewAuditService(repos.audit, m, log.Named("audit"))
	authSvc := service.NewAuthService(repos.users, repos.providers, jwtManager, cfg.Auth, auditSvc, m, log.Named("auth"))
	providerSvc := service.NewProviderService(repos.providers, repos.users, auditSvc, m, log.Named("providers"))
	appointmentSvc := service.NewAppointmentService(
		repos.appointments, repos.providers, locker, auditSvc, m,
		service.SchedulingOptionsFromConfig(cfg.Scheduling, cfg.Lock),
		log.Named("appointments"),
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := v1.NewRouter(v1.RouterDeps{
		Config:       cfg,
		Log:          log,
		Metrics:      m,
		JWT:          jwtManager,
		Auth:         authSvc,
		Providers:    providerSvc,
		Appointments: appointmentSvc,
		Ready:        repos.ready,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("redis_locks", cfg.Redis.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	// Drain queued audit entries after in-flight requests finish.
	auditSvc.Shutdown()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
