package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/leakcoach/internal/adapters/http/api"
	"github.com/okian/leakcoach/internal/adapters/http/swagger"
	"github.com/okian/leakcoach/internal/adapters/repository"
	service "github.com/okian/leakcoach/internal/app"
	"github.com/okian/leakcoach/internal/config"
	"github.com/okian/leakcoach/internal/jobs"
	"github.com/okian/leakcoach/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger format depends on config, so report on stderr.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	storeOpts := []repository.Option{repository.WithMaxOpenConns(cfg.DBMaxOpenConns)}
	if !cfg.DBMigrate {
		storeOpts = append(storeOpts, repository.WithoutMigrations())
	}
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN, storeOpts...)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.String("driver", cfg.DBDriver), logger.Error(err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(context.Background(), "store close failed", logger.Error(err))
		}
	}()

	svc := service.New(store,
		service.WithLogger(logger.Named("service")),
		service.WithDueLimit(cfg.DueLimit),
		service.WithRefillWorkers(cfg.RefillWorkers),
	)

	sched := jobs.New(jobs.WithLogger(logger.Named("jobs")), jobs.WithRunTimeout(cfg.JobTimeout()))
	if cfg.RefillEnabled {
		if err := sched.AddRefill(cfg.RefillCron, svc); err != nil {
			log.Error(ctx, "invalid refill schedule", logger.Error(err))
			return 1
		}
	}
	if err := sched.AddDueGauge(cfg.DueGaugeInterval(), store); err != nil {
		log.Error(ctx, "failed to schedule due gauge", logger.Error(err))
		return 1
	}
	if err := sched.AddSystemMetrics(systemMetricsInterval); err != nil {
		log.Error(ctx, "failed to schedule system metrics", logger.Error(err))
		return 1
	}
	sched.Start(ctx)
	defer sched.Stop()

	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc,
		api.WithLogger(logger.Named("http")),
		api.WithPinger(store),
	).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("driver", cfg.DBDriver),
			logger.Bool("refill", cfg.RefillEnabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server...")
	case err := <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return code
}
