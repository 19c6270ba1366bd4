// Package app wires the model store, discovery database, semantic services
// and HTTP router from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"cubesql/internal/api"
	"cubesql/internal/config"
	internaldb "cubesql/internal/db"
	"cubesql/internal/db/repository"
	"cubesql/internal/discovery"
	"cubesql/internal/domain"
	"cubesql/internal/middleware"
	"cubesql/internal/service/semantic"
)

// limiterIdle is how long a client may stay silent before its limiter is dropped.
const limiterIdle = 10 * time.Minute

// Deps holds what main() provides.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Clock  clock.Clock // nil selects the wall clock
}

// App holds the fully-wired application.
type App struct {
	Store     *internaldb.Store
	Warehouse *discovery.Adapter // nil when discovery is not configured
	Registry  *semantic.Registry
	Service   *semantic.Service
	Scheduler *semantic.Scheduler
	Limiter   *middleware.RateLimiter

	cfg    *config.Config
	logger *slog.Logger
}

// New opens the model store and the optional warehouse and wires the services.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := internaldb.Open(cfg.ModelDBPath, 0)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	a := &App{Store: store, cfg: cfg, logger: logger}

	var discover domain.SchemaDiscoverer
	if cfg.DiscoveryEnabled() {
		wh, err := discovery.Open(discovery.Driver(cfg.DiscoveryDriver), cfg.DiscoveryDSN, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
		a.Warehouse = wh
		discover = wh
	}

	models := repository.NewModelRepo(store.Write)
	a.Registry = semantic.NewRegistry(models, discover, logger)
	a.Service = semantic.NewService(models, a.Registry, deps.Clock)
	a.Limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})

	a.Scheduler = semantic.NewScheduler(logger)
	if err := a.Scheduler.Schedule("limiter-sweep", "@every 5m", func() {
		if n := a.Limiter.Sweep(limiterIdle); n > 0 {
			logger.Debug("dropped idle rate limiters", "count", n)
		}
	}); err != nil {
		_ = a.Close()
		return nil, err
	}
	if cfg.SchemaRefreshCron != "" {
		if err := a.Scheduler.ScheduleRefresh(a.Registry, cfg.SchemaRefreshCron); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	if v, err := internaldb.SchemaVersion(store.Write); err == nil {
		logger.DebugContext(ctx, "model store ready", "path", cfg.ModelDBPath, "schema_version", v)
	}
	return a, nil
}

// Executor returns the warehouse as a query executor, or nil.
func (a *App) Executor() domain.QueryExecutor {
	if a.Warehouse == nil {
		return nil
	}
	return a.Warehouse
}

// Handler returns the HTTP handler of the API.
func (a *App) Handler() http.Handler {
	h := api.NewHandler(a.Service, a.Executor(), a.logger)
	return api.NewRouter(h, api.RouterOptions{
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimiter:        a.Limiter,
		Logger:             a.logger,
	})
}

// Close releases the warehouse and the model store.
func (a *App) Close() error {
	var errs []error
	if a.Warehouse != nil {
		errs = append(errs, a.Warehouse.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
