// Package webapp mounts the DataInsight pages, form actions and progress
// streams on a fiber app.
package webapp

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/commands"
	"github.com/goliatone/go-datainsight/components/insight/queries"
	"github.com/goliatone/go-datainsight/pkg/backend"
	"github.com/goliatone/go-datainsight/pkg/session"
)

const (
	defaultCookieName    = "datainsight_session"
	defaultSessionTTL    = 12 * time.Hour
	defaultStreamTimeout = 2 * time.Minute
)

// Config wires the web layer with the dashboard core.
type Config struct {
	Sessions   session.Store
	Backend    backend.Client
	Controller *insight.Controller
	Workspaces *insight.WorkspaceRegistry
	Guard      *insight.Guard
	Renderer   insight.Renderer
	Hub        *insight.ProgressHub
	InFlight   *insight.InFlight
	Telemetry  commands.Telemetry
	// Metrics, when set, is served at /metrics to admins and to scrapers
	// presenting MetricsToken as a bearer token.
	Metrics      http.Handler
	MetricsToken string
	// PDF and XLSX default to the fpdf and excelize writers.
	PDF  insight.ReportWriter
	XLSX insight.ReportWriter

	// LoginLimit throttles sign-in attempts per address. The zero value
	// uses DefaultLoginLimit; a negative Burst disables throttling.
	LoginLimit LoginLimit

	CookieName    string
	CookieSecure  bool
	SessionTTL    time.Duration
	StreamTimeout time.Duration
}

// Server holds the handlers. Build it with Register.
type Server struct {
	cfg     Config
	limiter *loginLimiter

	login      *commands.LoginCommand
	logout     *commands.LogoutCommand
	profile    *commands.UpdateProfileCommand
	upload     *commands.UploadCommand
	reload     *commands.ReloadCommand
	sort       *commands.SortCommand
	saveRow    *commands.SaveRowCommand
	createUser *commands.CreateUserCommand
	deleteUser *commands.DeleteUserCommand
	alert      *commands.SendAlertCommand

	dashboard *queries.DashboardQuery
	editRow   *queries.EditRowQuery
	users     *queries.UsersQuery
}

// Register mounts every route on app.
func Register(app *fiber.App, cfg Config) (*Server, error) {
	if app == nil {
		return nil, errors.New("webapp: app is required")
	}
	if cfg.Sessions == nil || cfg.Backend == nil || cfg.Controller == nil || cfg.Renderer == nil {
		return nil, errors.New("webapp: sessions, backend, controller and renderer are required")
	}
	cfg = withDefaults(cfg)
	s := newServer(cfg)

	app.Use(requestid.New(requestid.Config{ContextKey: requestIDLocal}))
	app.Use(s.accessLog)

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   http.FS(insight.Assets()),
		MaxAge: 86400,
	}))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.Metrics != nil {
		app.Get("/metrics", s.authorizeMetrics, adaptor.HTTPHandler(cfg.Metrics))
	}

	app.Use(s.loadSession)
	app.Use(s.guard)

	// Pages and the JSON view go through go-router on the same app. Form
	// actions, downloads and progress streams need cookies, redirects and
	// connection hijacking, so they stay fiber handlers.
	adapter := router.NewFiberAdapter(func(*fiber.App) *fiber.App { return app })
	s.mountPages(adapter.Router())
	if adapter.WrappedRouter() != app {
		return nil, errors.New("webapp: router adapter does not wrap the app")
	}

	app.Get("/", func(c *fiber.Ctx) error { return c.Redirect(insight.LoginPath, fiber.StatusSeeOther) })
	app.Get("/login", s.showLogin)
	app.Post("/login", s.throttleLogin, s.submitLogin)
	app.Post("/logout", s.submitLogout)

	app.Post("/dashboard/reload", s.submitReload)
	app.Post("/dashboard/sort/:column", s.submitSort)
	app.Post("/files/upload", s.submitUpload)
	app.Get("/uploads/:id/events", s.streamEvents)
	app.Get("/uploads/:id/ws", s.requireUpgrade, s.streamSocket())

	app.Get("/editor/rows/:index", s.showEditRow)
	app.Post("/editor/rows/:index", s.submitEditRow)

	app.Get("/reports/export.pdf", s.exportWith(cfg.PDF))
	app.Get("/reports/export.xlsx", s.exportWith(cfg.XLSX))

	app.Post("/users", s.requireManageUsers, s.submitCreateUser)
	app.Post("/users/:id/delete", s.requireManageUsers, s.submitDeleteUser)

	app.Post("/profile", s.submitProfile)
	app.Post("/alerts", s.submitAlert)
	return s, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Workspaces == nil {
		cfg.Workspaces = insight.NewWorkspaceRegistry()
	}
	if cfg.Guard == nil {
		authz, err := insight.NewCasbinAuthorizer("")
		if err == nil {
			cfg.Guard = insight.NewGuard(authz)
		} else {
			cfg.Guard = insight.NewGuard(nil)
		}
	}
	if cfg.Hub == nil {
		cfg.Hub = insight.NewProgressHub()
	}
	if cfg.InFlight == nil {
		cfg.InFlight = insight.NewInFlight()
	}
	if cfg.PDF == nil {
		cfg.PDF = insight.NewPDFReportWriter()
	}
	if cfg.XLSX == nil {
		cfg.XLSX = insight.NewXLSXReportWriter()
	}
	if cfg.LoginLimit == (LoginLimit{}) {
		cfg.LoginLimit = DefaultLoginLimit
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	return cfg
}

func newServer(cfg Config) *Server {
	client := cfg.Backend
	return &Server{
		cfg:        cfg,
		limiter:    newLoginLimiter(cfg.LoginLimit),
		login:      commands.NewLoginCommand(client, cfg.Workspaces, cfg.InFlight, cfg.Telemetry),
		logout:     commands.NewLogoutCommand(cfg.Workspaces, cfg.Telemetry),
		profile:    commands.NewUpdateProfileCommand(client, cfg.InFlight, cfg.Telemetry),
		upload:     commands.NewUploadCommand(client, cfg.Controller, cfg.Hub, cfg.InFlight, cfg.Telemetry),
		reload:     commands.NewReloadCommand(client, cfg.Controller, cfg.InFlight, cfg.Telemetry),
		sort:       commands.NewSortCommand(cfg.Controller),
		saveRow:    commands.NewSaveRowCommand(cfg.Controller),
		createUser: commands.NewCreateUserCommand(client, cfg.InFlight, cfg.Telemetry),
		deleteUser: commands.NewDeleteUserCommand(client, cfg.InFlight, cfg.Telemetry),
		alert:      commands.NewSendAlertCommand(client, cfg.InFlight, cfg.Telemetry),
		dashboard:  queries.NewDashboardQuery(cfg.Controller),
		editRow:    queries.NewEditRowQuery(cfg.Controller),
		users:      queries.NewUsersQuery(client),
	}
}

// Workspaces exposes the registry so the caller can run idle eviction.
func (s *Server) Workspaces() *insight.WorkspaceRegistry {
	return s.cfg.Workspaces
}
