package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/webapp"
	"github.com/goliatone/go-datainsight/internal/config"
	"github.com/goliatone/go-datainsight/internal/logging"
	"github.com/goliatone/go-datainsight/internal/metrics"
	"github.com/goliatone/go-datainsight/pkg/backend"
	"github.com/goliatone/go-datainsight/pkg/session"
)

const (
	bodyLimit     = 32 << 20
	chartCacheTTL = 10 * time.Minute
	evictEvery    = 5 * time.Minute
	shutdownGrace = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("insight-server stopped")
	}
}

func run() error {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New(nil)
	client, err := newBackend(cfg.Backend, recorder)
	if err != nil {
		return err
	}

	store, err := session.NewStore(ctx, cfg.Session, cfg.Server.SessionTTL)
	if err != nil {
		return err
	}
	defer store.Close()

	authz, err := insight.NewCasbinAuthorizer("")
	if err != nil {
		return err
	}
	renderer, err := insight.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	telemetry := insight.MultiTelemetry{insight.LogTelemetry{}, recorder}
	charts := insight.NewChartCache(chartCacheTTL)
	defer charts.Close()
	controller := insight.NewController(insight.Options{
		Telemetry:   telemetry,
		DateLayout:  cfg.Dashboard.DateLayout,
		MapPolicy:   insight.MapPolicy(cfg.Dashboard.MapPolicy),
		TextColumns: cfg.Editor.TextColumns,
		Report: insight.ReportOptions{
			Title: cfg.Report.Title,
			Brand: cfg.Report.Brand,
		},
		MapRenderer: insight.NewEChartsMapRenderer(
			insight.WithMapCache(charts),
			insight.WithMapTheme(cfg.Dashboard.ChartTheme),
		),
	})

	app := fiber.New(fiber.Config{
		AppName:               "DataInsight",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          webapp.ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	server, err := webapp.Register(app, webapp.Config{
		Sessions:     store,
		Backend:      client,
		Controller:   controller,
		Guard:        insight.NewGuard(authz),
		Renderer:     renderer,
		Telemetry:    telemetry,
		Metrics:      recorder.Handler(),
		MetricsToken: cfg.Server.MetricsToken,
		CookieName:   cfg.Server.CookieName,
		CookieSecure: cfg.Server.CookieSecure,
		SessionTTL:   cfg.Server.SessionTTL,
		LoginLimit: webapp.LoginLimit{
			Burst: cfg.Server.LoginBurst,
			Every: cfg.Server.LoginEvery,
		},
	})
	if err != nil {
		return err
	}

	go evictIdle(ctx, server, cfg.Server.SessionTTL)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", cfg.Server.Addr).
			Str("backend", cfg.Backend.Mode).
			Str("session_store", cfg.Session.Store).
			Msg("insight-server listening")
		errCh <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownGrace); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newBackend(cfg config.BackendConfig, observer backend.Observer) (backend.Client, error) {
	if cfg.Mode == "mock" {
		logging.Warn().Msg("using the in-process mock backend")
		return backend.NewMockClient()
	}
	return backend.NewHTTPClient(backend.HTTPConfig{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout,
		Breaker: backend.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
		},
		Observer: observer,
	})
}

// evictIdle drops workspaces and login throttling state nobody has touched
// for ttl.
func evictIdle(ctx context.Context, server *webapp.Server, ttl time.Duration) {
	ticker := time.NewTicker(evictEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := server.Workspaces().Evict(ttl); n > 0 {
				logging.Debug().Int("evicted", n).Msg("idle workspaces dropped")
			}
			server.PruneLimiter(ttl)
		}
	}
}
