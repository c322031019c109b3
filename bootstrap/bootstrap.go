// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/artpar/eventdsl/adapters/clock"
	"github.com/artpar/eventdsl/adapters/filesystem"
	apihttp "github.com/artpar/eventdsl/adapters/http"
	"github.com/artpar/eventdsl/adapters/idgen"
	"github.com/artpar/eventdsl/adapters/metrics"
	"github.com/artpar/eventdsl/adapters/sqlite"
	"github.com/artpar/eventdsl/app"
	"github.com/artpar/eventdsl/config"
	"github.com/artpar/eventdsl/core/events"
	"github.com/artpar/eventdsl/core/openapi"
	"github.com/artpar/eventdsl/core/runtime"
	"github.com/artpar/eventdsl/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	DB         *sqlite.DB // nil unless store.driver is sqlite
	Store      *sqlite.DeclarationStore
	HTTPServer *http.Server
	Metrics    *metrics.Collector // nil unless metrics are enabled
	Bus        *events.Bus
	Registry   *runtime.Registry
	Catalog    *app.CatalogService
	OpenAPI    *openapi.Service

	watcher *filesystem.Watcher
	holder  *config.Holder
}

// New creates and initializes the application from cfg.
func New(cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Logging, os.Stdout)
	return newApp(cfg, logger)
}

// NewFromFile loads the configuration at path, falling back to EVENTDSL_*
// environment variables when path does not exist. A loaded file is watched
// and reloaded on change or SIGHUP.
func NewFromFile(path string) (*App, error) {
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Logging, os.Stdout)

	var holder *config.Holder
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			holder, err = config.NewHolder(path, logger)
			if err != nil {
				return nil, err
			}
			cfg = holder.Get()
		}
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return nil, err
	}
	if holder != nil {
		a.holder = holder
		holder.OnChange(a.applyConfig)
	}
	return a, nil
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	logger.Info().Msg("initializing eventdsl")

	a := &App{
		Logger: logger,
		Config: cfg,
		Bus:    events.NewBus(logger),
	}
	RegisterHooks(a.Bus, logger)

	loc, err := cfg.Calendar.Location()
	if err != nil {
		return nil, fmt.Errorf("calendar location: %w", err)
	}
	clk := clock.In(loc)

	var observer ports.Metrics = metrics.Nop{}
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		observer = a.Metrics
		logger.Info().Msg("prometheus metrics enabled")
	}

	a.OpenAPI = openapi.NewService(a.openAPITypes, logger)
	a.Bus.Subscribe("type.*", func(ctx context.Context, e events.Event) error {
		a.OpenAPI.InvalidateCache()
		return nil
	})

	a.Registry = runtime.NewRegistry(
		runtime.WithLogger(logger),
		runtime.WithMetrics(observer),
		runtime.WithBus(a.Bus),
		runtime.WithClock(clk),
		runtime.WithLocation(loc),
	)

	ctx := context.Background()
	sources := []ports.DeclarationSource{filesystem.Dir{Path: cfg.Types.Dir}}
	if cfg.Store.Driver == "sqlite" {
		if err := a.initStore(ctx, clk); err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		sources = append(sources, a.Store)
	}

	a.Catalog = app.NewCatalogService(sources, a.Registry, observer, a.Bus, clk, logger, app.CatalogConfig{
		Strict:          cfg.Types.Strict,
		RefreshInterval: cfg.Types.RefreshInterval,
	})
	if err := a.Catalog.Start(ctx); err != nil {
		if cfg.Types.Strict {
			a.close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		a.Logger.Warn().Err(err).Msg("failed to load catalog, continuing with empty catalog")
	}

	if cfg.Types.Watch {
		a.watcher = filesystem.NewWatcher(cfg.Types.Dir, cfg.Types.Debounce, a.reloadCatalog, logger)
	}

	a.initHTTPServer()
	return a, nil
}

func (a *App) initStore(ctx context.Context, clk ports.Clock) error {
	db, err := sqlite.Open(ctx, a.Config.Store.DSN)
	if err != nil {
		return err
	}
	a.DB = db
	a.Store = sqlite.NewDeclarationStore(db, idgen.Revision{}, clk)
	a.Logger.Info().Str("dsn", a.Config.Store.DSN).Msg("declaration store initialized")
	return nil
}

func (a *App) initHTTPServer() {
	router := apihttp.NewRouter(a.Registry, a.Logger, apihttp.RouterConfig{
		Metrics: a.Metrics,
		Catalog: a.Catalog,
		OpenAPI: a.OpenAPI,
		Timeout: a.Config.Server.WriteTimeout,
	})

	a.HTTPServer = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

func (a *App) openAPITypes() []openapi.Type {
	runtimes := a.Registry.Runtimes()
	types := make([]openapi.Type, len(runtimes))
	for i, rt := range runtimes {
		types[i] = rt
	}
	return types
}

func (a *App) reloadCatalog(ctx context.Context) {
	if err := a.Catalog.Reload(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("catalog reload after file change failed")
	}
}

// applyConfig applies the reloadable fields of cfg.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Types.Strict != a.Config.Types.Strict {
		a.Catalog.SetStrict(cfg.Types.Strict)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.reloadCatalog(ctx)
	}
	a.Config = cfg
}

// ReloadConfig reloads the configuration file and applies its reloadable
// fields. It fails when the app was not created from a file.
func (a *App) ReloadConfig() error {
	if a.holder == nil {
		return errors.New("no configuration file loaded")
	}
	return a.holder.Reload()
}

// Start starts the background watchers without serving HTTP.
func (a *App) Start(ctx context.Context) error {
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("watch types: %w", err)
		}
	}
	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to watch config file")
		}
		a.holder.WatchSignals()
	}
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Int("types", a.Registry.Len()).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.close()
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) close() {
	if a.holder != nil {
		a.holder.Stop()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.Catalog != nil {
		a.Catalog.Stop()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
}

// NewLogger creates a logger for cfg and sets the global level. The "auto"
// format writes console output when out is a terminal and JSON otherwise.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if useConsole(cfg.Format, out) {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func useConsole(format string, out io.Writer) bool {
	switch format {
	case "console":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
