package app

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

	"golang.org/x/sync/errgroup"

	httpapi "github.com/aussiebroadwan/crm/internal/auth/http"
	"github.com/aussiebroadwan/crm/internal/auth/metrics"
	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/internal/auth/store"
	"github.com/aussiebroadwan/crm/internal/auth/store/drivers/mysql"
	"github.com/aussiebroadwan/crm/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
	"github.com/aussiebroadwan/crm/pkg/httpx"
	"github.com/aussiebroadwan/crm/pkg/slogx"
)

// BuildVersion is set at build time via ldflags.
var BuildVersion = "v0.1.0"

// MetricsNamespace prefixes every Prometheus series.
const MetricsNamespace = "crm"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	auth         service.Authenticator
	audit        *service.Auditor
	housekeeping *service.HousekeepingService
	metrics      *metrics.Provider

	loginLimiter *httpx.RateLimiter
	apiLimiter   *httpx.RateLimiter

	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the service logger from config.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "crm-auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// OpenStore connects to the configured database. Migrations are not
// applied.
func OpenStore(cfg Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "mysql":
		return mysql.NewStore(mysql.Config{
			DSN:                cfg.DBConnectionString,
			MaxOpenConnections: cfg.DBMaxOpenConns,
			MaxIdleConnections: cfg.DBMaxIdleConns,
			ConnMaxLifetime:    5 * time.Minute,
		})
	case "sqlite", "":
		return sqlite.NewStore(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DatabaseFile))
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, NewLogger(cfg))
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// drains in-flight requests within the grace period.
func (app *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return app.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.housekeeping.Start()
	defer app.housekeeping.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("auth service starting",
			slog.String("addr", ln.Addr().String()),
			slog.String("version", BuildVersion),
		)
		if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down auth service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
		defer cancel()

		if err := app.server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("graceful server shutdown failed", slog.Any("error", err))
			_ = app.server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the database. Call it after Run returns.
func (app *Application) Close() error {
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", slog.Any("error", err))
		return err
	}
	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", slog.String("driver", app.cfg.DBDriver))
	return nil
}

func (app *Application) initServices() error {
	codecs, signer, err := BuildCodecs(app.cfg, app.logger)
	if err != nil {
		return err
	}

	ledger := service.NewSessionLedger(app.db)
	app.audit = service.NewAuditor(app.db, app.cfg.AuditRetention)

	auth, err := service.NewAuthService(app.db, codecs, ledger,
		service.NewLoginGuard(app.db, app.cfg.LockoutThreshold),
		app.audit,
		service.AuthOptions{
			Issuer: app.cfg.Issuer,
			Lifetimes: service.LifetimePolicy{
				Staff:   app.cfg.AccessTTL,
				Manager: app.cfg.ManagerAccessTTL,
				Refresh: app.cfg.RefreshTTL,
			},
			RotateRefreshTokens: app.cfg.RotateRefreshTokens,
		},
	)
	if err != nil {
		return err
	}
	app.auth = auth

	if app.cfg.MetricsEnabled {
		app.metrics = metrics.NewProvider(MetricsNamespace)
		app.auth = service.NewAuthenticatorWithMetrics(auth, app.metrics)
	}

	app.loginLimiter = httpx.NewRateLimiter(httpx.RateLimitConfig{
		RequestsPerWindow: app.cfg.LoginRateRequests,
		Window:            app.cfg.LoginRateWindow,
		Burst:             app.cfg.LoginRateRequests,
	})
	app.apiLimiter = httpx.NewRateLimiter(httpx.ModerateLimit)

	app.housekeeping = service.NewHousekeepingService(ledger, app.audit, app.logger,
		app.cfg.HousekeepingInterval,
		app.loginLimiter, app.apiLimiter,
	)

	app.router = httpapi.NewRouter(app.auth, signer, BuildVersion, app.db, app.logger)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	app.router.Audit = app.audit
	app.router.LoginLimiter = app.loginLimiter
	app.router.APILimiter = app.apiLimiter
	app.router.Metrics = app.metrics
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
