package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"staffdesk/internal/domain/approval"
	"staffdesk/internal/domain/audit"
	"staffdesk/internal/domain/auth"
	"staffdesk/internal/domain/core"
	"staffdesk/internal/domain/leave"
	"staffdesk/internal/domain/performance"
	"staffdesk/internal/platform/config"
	"staffdesk/internal/platform/db"
	"staffdesk/internal/platform/metrics"
	"staffdesk/internal/transport/http/api"
	audithandler "staffdesk/internal/transport/http/handlers/audit"
	authhandler "staffdesk/internal/transport/http/handlers/auth"
	corehandler "staffdesk/internal/transport/http/handlers/core"
	leavehandler "staffdesk/internal/transport/http/handlers/leave"
	performancehandler "staffdesk/internal/transport/http/handlers/performance"
	"staffdesk/internal/transport/http/middleware"
)

const loginAttemptsPerMinute = 10

type App struct {
	Config  config.Config
	DB      *db.Pool
	Router  http.Handler
	Metrics *metrics.Collector

	closers []io.Closer
}

// New connects to the database, applies migrations and seed data when
// enabled, and assembles the router.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool, Metrics: metrics.New()}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	limiter, err := app.newLimiter(ctx, cfg.RateLimitPerMinute)
	if err != nil {
		app.Close()
		return nil, err
	}
	loginLimiter, err := app.newLimiter(ctx, loginAttemptsPerMinute)
	if err != nil {
		app.Close()
		return nil, err
	}

	directory := core.NewService(core.NewStore(pool))
	resolver := approval.NewResolver(directory)
	auditStore := audit.NewStore(pool)
	recorder := audit.NewRecorder(app.auditSink(auditStore))

	authService := auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.TokenTTL)
	leaveService := leave.NewService(leave.NewStore(pool), directory, resolver, recorder, app.Metrics)
	appraisalService := performance.NewService(performance.NewStore(pool), directory, resolver, recorder, app.Metrics)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(app.Metrics))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authService)
		r.With(middleware.RateLimit(loginLimiter, middleware.WithKeyFunc(middleware.AuthEmailOrIPKey("email")))).
			Post("/auth/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Use(middleware.RateLimit(limiter, middleware.MutationsOnly()))

			corehandler.NewHandler(directory, resolver, authService, recorder).RegisterRoutes(r)
			leavehandler.NewHandler(leaveService, authService).RegisterRoutes(r)
			performancehandler.NewHandler(appraisalService, authService).RegisterRoutes(r)
			audithandler.NewHandler(auditStore, authService).RegisterRoutes(r)

			if cfg.MetricsEnabled {
				r.With(middleware.RequirePermission(auth.PermSystemAdmin, authService)).
					Get("/metrics", app.handleMetrics)
			}
		})
	})

	if info, err := os.Stat(cfg.FrontendDir); err == nil && info.IsDir() {
		router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})
	}

	app.Router = router
	return app, nil
}

func (a *App) auditSink(store *audit.Store) audit.Sink {
	if len(a.Config.AuditKafkaBrokers) == 0 {
		return store
	}
	kafkaSink := audit.NewKafkaSink(a.Config.AuditKafkaBrokers, a.Config.AuditKafkaTopic)
	a.closers = append(a.closers, kafkaSink)
	slog.Info("audit kafka sink enabled", "topic", a.Config.AuditKafkaTopic, "brokers", len(a.Config.AuditKafkaBrokers))
	return audit.Fanout{store, kafkaSink}
}

// newLimiter returns a Redis-backed limiter when REDIS_ADDR is set so
// replicas share one budget; otherwise limits are per process.
func (a *App) newLimiter(ctx context.Context, perMinute int) (middleware.Limiter, error) {
	if a.Config.RedisAddr == "" {
		return middleware.NewMemoryLimiter(perMinute, time.Minute), nil
	}
	client := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.closers = append(a.closers, client)
	return middleware.NewRedisLimiter(client, perMinute, time.Minute), nil
}

func (a *App) handleMetrics(w http.ResponseWriter, r *http.Request) {
	api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("staffdesk listening", "addr", a.Config.Addr, "env", a.Config.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
	a.closers = nil
	if a.DB != nil {
		a.DB.Close()
	}
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, filepath.Clean("/"+r.URL.Path))
	_, err := os.Stat(path)
	if err == nil {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}

	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
