package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/clickrank/internal/adapters/http/api"
	"github.com/okian/clickrank/internal/adapters/http/identity"
	"github.com/okian/clickrank/internal/adapters/http/swagger"
	"github.com/okian/clickrank/internal/adapters/mq/queue"
	"github.com/okian/clickrank/internal/adapters/mq/worker"
	"github.com/okian/clickrank/internal/adapters/repository"
	service "github.com/okian/clickrank/internal/app"
	"github.com/okian/clickrank/internal/config"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/okian/clickrank/pkg/metrics"
)

// HTTP server timeout constants. WriteTimeout stays zero so /events and /ws
// streams are not cut off.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> dotenv -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "clickrank stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// application holds the wired components and their shutdown order.
type application struct {
	handler    http.Handler
	svc        *service.Service
	hub        *api.StreamHub
	queue      *queue.InMemoryQueue
	dispatcher *worker.Dispatcher
}

// build wires the store, service, count stream and HTTP routes from cfg.
func build(ctx context.Context, cfg *config.Config) (*application, error) {
	store, err := repository.NewRedisStore(cfg.RedisURL,
		repository.WithKeyPrefix(cfg.KeyPrefix),
		repository.WithDialTimeout(cfg.RedisDialTimeout()),
		repository.WithMaxRetries(cfg.RedisMaxRetries),
		repository.WithPoolSize(cfg.RedisPoolSize),
	)
	if err != nil {
		return nil, err
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.StreamQueueSize))
	svc := service.New(store,
		service.WithLeaderboardLimit(cfg.LeaderboardLimit),
		service.WithLeaderboardPool(cfg.LeaderboardPool),
		service.WithObserver(q),
	)
	hub := api.NewStreamHub(svc, api.WithHeartbeat(cfg.StreamHeartbeat()))
	dispatcher := worker.NewDispatcher(q, hub)

	ids := identity.NewResolver(
		identity.WithCookieName(cfg.CookieName),
		identity.WithMaxAge(cfg.CookieMaxAge()),
		identity.WithSecure(cfg.CookieSecure),
	)
	server := api.NewServer(svc,
		api.WithBasePath(cfg.BasePath),
		api.WithIdentity(ids),
		api.WithStreamHub(hub),
	)

	r := mux.NewRouter()
	api.NewHealthHandler(svc).Register(r)
	swagger.Register(ctx, r)
	server.Register(ctx, r)

	return &application{
		handler:    api.TrimTrailingSlash(r),
		svc:        svc,
		hub:        hub,
		queue:      q,
		dispatcher: dispatcher,
	}, nil
}

// shutdown stops streams, drains the dispatcher and releases the store.
func (a *application) shutdown(ctx context.Context) {
	l := logger.Get()
	a.hub.Close()
	if err := a.queue.Close(); err != nil {
		l.Warn(ctx, "queue close failed", logger.Error(err))
	}
	if err := a.dispatcher.Shutdown(ctx); err != nil {
		l.Warn(ctx, "dispatcher shutdown failed", logger.Error(err))
	}
	a.svc.Stop()
}

func run(ctx context.Context, cfg *config.Config) error {
	l := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	app, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	if err := app.svc.Start(ctx); err != nil {
		return err
	}

	go app.dispatcher.Run(ctx)
	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, app.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.handler,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("base_path", cfg.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	l.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Open streams never finish on their own; end them before Shutdown waits.
	app.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	app.shutdown(shutdownCtx)

	l.Info(ctx, "server stopped")
	return serveErr
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the count and leaderboard gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.RefreshMetrics(ctx); err != nil {
				logger.Get().Debug(ctx, "metrics refresh failed", logger.Error(err))
			}
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
