package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"paydash/internal/config"
	apierrors "paydash/internal/errors"
	"paydash/internal/exporter"
	"paydash/internal/infrastructure"
	customMiddleware "paydash/internal/middleware"
	"paydash/internal/services"
	"paydash/internal/source"
	handlers "paydash/internal/transport/http"
	ws "paydash/internal/websocket"
)

// AppName is reported in logs and health responses.
const AppName = "paydash"

// Options adjusts how the application is assembled. Zero values select the
// production wiring.
type Options struct {
	Version string
	// Sources replaces the chain built from Config.Source.
	Sources []source.Source
	// HTTPClient is used by remote sources.
	HTTPClient *http.Client
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.LedgerMetrics

	Loader        *source.Loader
	WebSocketHub  *ws.Hub
	LedgerService *services.LedgerService
	HealthService *services.HealthService
	Refresher     *services.Refresher

	Router *chi.Mux
	Server *http.Server

	version string
}

// New wires every component from cfg. Nothing is started.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, apierrors.NewConfigError("configuration is required", nil)
	}
	logger = infrastructure.WithComponent(logger, "app")
	if opts.Version == "" {
		opts.Version = cfg.Telemetry.ServiceVersion
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewLedgerMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger metrics: %w", err)
	}

	sources := opts.Sources
	if len(sources) == 0 {
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: cfg.Source.FetchTimeout}
		}
		sources, err = source.FromConfig(cfg.Source, client, logger)
		if err != nil {
			return nil, apierrors.NewConfigError("invalid source order", err)
		}
	}

	loader := source.NewLoader(sources, source.LoaderOptions{
		CacheTTL:     cfg.Source.CacheTTL,
		FetchTimeout: cfg.Source.FetchTimeout,
		FetchRPS:     cfg.Source.FetchRPS,
		Metrics:      metrics,
		Tracer:       providers.Tracer,
		Logger:       logger,
	})

	hub := ws.NewHub(logger, metrics)
	ledgerService := services.NewLedgerService(loader, exporter.NewCSVWriter(cfg.Export, logger), hub, metrics, logger)

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		Loader:        loader,
		WebSocketHub:  hub,
		LedgerService: ledgerService,
		HealthService: services.NewHealthService(opts.Version, ledgerService, hub, logger),
		Refresher:     services.NewRefresher(ledgerService, cfg.Refresh, logger),
		version:       opts.Version,
	}
	a.setupRouter()
	a.createServer()

	logger.Info("Application assembled",
		slog.String("name", AppName),
		slog.String("version", opts.Version),
		slog.Any("sources", loader.Sources()),
		slog.Duration("cache_ttl", cfg.Source.CacheTTL))

	return a, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// The websocket route stays outside the wrapping middleware so the
	// connection can be hijacked.
	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.Server.AllowedOrigins, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Tracing(a.OTelProviders.Tracer))
		r.Use(customMiddleware.StructuredLogger(a.Logger, a.Metrics))
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{AllowedOrigins: a.Config.Server.AllowedOrigins}))
		if rl := a.Config.Server.RateLimit; rl.Enabled && rl.RPS > 0 {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}

		health := handlers.NewHealthHandler(a.HealthService, a.Logger)
		ledger := handlers.NewLedgerHandler(a.LedgerService, a.Logger, errorHandler)

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Mount("/health", health.Routes())
			r.Get("/version", health.Version)
			r.Mount("/ledger", ledger.Routes())
			r.Mount("/sources", ledger.SourceRoutes())
		})
	})

	// Set last so every mounted subrouter inherits them.
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// StartBackground starts the websocket hub, the refresher and a first load.
func (a *Application) StartBackground(ctx context.Context) error {
	a.WebSocketHub.Start()

	if a.Config.Refresh.Enabled {
		if err := a.Refresher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start refresher: %w", err)
		}
	}

	go a.warmUp(ctx)
	return nil
}

// warmUp loads the ledger once so the first request is served from cache.
func (a *Application) warmUp(ctx context.Context) {
	ctx, cancel := context.WithTimeout(infrastructure.EnsureTraceID(ctx), 2*a.Config.Source.FetchTimeout)
	defer cancel()

	snap, err := a.LedgerService.Current(ctx)
	if err != nil {
		a.Logger.WarnContext(ctx, "initial ledger load failed", slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "initial ledger load complete",
		slog.String("source", snap.Source),
		slog.Int("rows", snap.Rows))
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts
// everything down.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.StartBackground(ctx); err != nil {
		ln.Close()
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.Server.Serve(ln)
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", ln.Addr().String()),
		slog.String("version", a.version),
		slog.Bool("refresh_enabled", a.Config.Refresh.Enabled),
		slog.Duration("refresh_interval", a.Refresher.Interval()))

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutdown requested")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Stop gracefully stops the server and every background component.
func (a *Application) Stop(ctx context.Context) error {
	start := time.Now()
	var errs []error

	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	a.Refresher.Stop()
	a.WebSocketHub.Stop()
	a.Loader.Close()

	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete", slog.Duration("duration", time.Since(start)))
	return errors.Join(errs...)
}

// Close releases resources of an application that was never served.
func (a *Application) Close(ctx context.Context) error {
	a.Loader.Close()
	return a.OTelProviders.Shutdown(ctx)
}
