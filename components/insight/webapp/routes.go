package webapp

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/queries"
	"github.com/goliatone/go-datainsight/pkg/session"
)

// pageLoader gathers the template data of a routed page.
type pageLoader func(ctx router.Context, sess *session.Session) (fiber.Map, error)

// mountPages registers the read-only pages and the JSON view on a go-router
// router. Session and guard middleware already ran on the wrapped fiber app,
// so handlers find the session in the request locals.
func (s *Server) mountPages(r router.Router[*fiber.App]) {
	r.Get(insight.HomePath, s.routedPage(insight.HomePath, "dashboard.html", "Dashboard", s.dashboardData))
	r.Get(editorPath, s.routedPage(editorPath, "editor.html", "Data Editor", s.viewData))
	r.Get(reportsPath, s.routedPage(reportsPath, "reports.html", "Reports", s.viewData))
	r.Get(usersPath, s.routedPage(usersPath, "users.html", "Users", s.usersData))
	r.Get(profilePath, s.routedPage(profilePath, "profile.html", "Profile", nil))
	r.Get(alertsPath, s.routedPage(alertsPath, "alerts.html", "Alerts", nil))

	api := r.Group("/api")
	api.Get("/view", router.WrapHandler(s.apiView))
}

func (s *Server) routedPage(path, name, title string, load pageLoader) router.HandlerFunc {
	return router.WrapHandler(func(ctx router.Context) error {
		sess := routedSession(ctx)
		var data fiber.Map
		if load != nil {
			var err error
			if data, err = load(ctx, sess); err != nil {
				return err
			}
		}
		present, _ := strconv.ParseBool(ctx.Query("present"))
		html, err := s.renderPage(ctx.Context(), sess, path, present, name, title, data)
		if err != nil {
			return err
		}
		ctx.SetHeader(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return ctx.Send([]byte(html))
	})
}

func (s *Server) dashboardData(ctx router.Context, sess *session.Session) (fiber.Map, error) {
	view, err := s.currentView(ctx.Context(), sess)
	if err != nil {
		return nil, err
	}
	return fiber.Map{"view": view, "upload_id": uuid.NewString()}, nil
}

func (s *Server) viewData(ctx router.Context, sess *session.Session) (fiber.Map, error) {
	view, err := s.currentView(ctx.Context(), sess)
	if err != nil {
		return nil, err
	}
	return fiber.Map{"view": view}, nil
}

// usersData lists accounts. A failed listing still renders the page with the
// error as a banner.
func (s *Server) usersData(ctx router.Context, sess *session.Session) (fiber.Map, error) {
	rows, err := s.users.Query(ctx.Context(), queries.UsersRequest{Token: sess.Token})
	if err != nil {
		sess.SetFlash("error", insight.Describe(err))
	}
	return fiber.Map{"users": rows}, nil
}

// apiView serves the dashboard view model as JSON.
func (s *Server) apiView(ctx router.Context) error {
	sess := routedSession(ctx)
	view, err := s.currentView(ctx.Context(), sess)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, fiber.Map{
		"viewer": viewerOf(sess),
		"sort":   s.workspaceOf(sess).Sort(),
		"view":   view,
	})
}

func routedSession(ctx router.Context) *session.Session {
	if sess, ok := ctx.Locals(sessionLocal).(*session.Session); ok {
		return sess
	}
	return session.New()
}
