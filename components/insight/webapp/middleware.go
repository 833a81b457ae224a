package webapp

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/internal/logging"
	"github.com/goliatone/go-datainsight/pkg/session"
)

const (
	requestIDLocal = "requestid"
	sessionLocal   = "session"
)

// accessLog binds the request id to the user context and logs each request.
func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	ctx := c.UserContext()
	if rid, ok := c.Locals(requestIDLocal).(string); ok {
		ctx = logging.ContextWithRequestID(ctx, rid)
		c.SetUserContext(ctx)
	}
	err := c.Next()
	status := c.Response().StatusCode()
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	}
	logging.Ctx(c.UserContext()).Info().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("http request")
	return err
}

// loadSession resolves the cookie into a session, creating one when absent,
// and persists it after the handler ran. A handler that swaps the session for
// a rotated one gets the new id written back to the cookie.
func (s *Server) loadSession(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var sess *session.Session
	if id := c.Cookies(s.cfg.CookieName); id != "" {
		found, err := s.cfg.Sessions.Get(ctx, id)
		switch {
		case err == nil:
			sess = found
		case !errors.Is(err, session.ErrNotFound):
			logging.Ctx(ctx).Warn().Err(err).Msg("session lookup failed")
		}
	}
	if sess == nil {
		sess = session.New()
	}
	c.SetUserContext(logging.ContextWithSessionID(ctx, sess.ID))
	c.Locals(sessionLocal, sess)
	s.setCookie(c, sess.ID)

	err := c.Next()
	current := sessionOf(c)
	if current.ID != sess.ID {
		s.setCookie(c, current.ID)
	}
	if saveErr := s.cfg.Sessions.Save(c.UserContext(), current); saveErr != nil {
		logging.Ctx(c.UserContext()).Error().Err(saveErr).Msg("session save failed")
	}
	return err
}

// rotateSession moves the signed-in identity onto a fresh id and forgets the
// old one.
func (s *Server) rotateSession(c *fiber.Ctx) {
	old := sessionOf(c)
	fresh := old.Rotate()
	if err := s.cfg.Sessions.Delete(c.UserContext(), old.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		logging.Ctx(c.UserContext()).Warn().Err(err).Msg("old session not deleted")
	}
	s.cfg.Workspaces.Drop(old.ID)
	c.SetUserContext(logging.ContextWithSessionID(c.UserContext(), fresh.ID))
	c.Locals(sessionLocal, fresh)
}

func (s *Server) setCookie(c *fiber.Ctx, id string) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.CookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(s.cfg.SessionTTL),
		HTTPOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// authorizeMetrics lets scrapers holding the metrics token and signed-in
// admins read /metrics. It runs before sessions load, so scrapes never create
// sessions.
func (s *Server) authorizeMetrics(c *fiber.Ctx) error {
	if token := s.cfg.MetricsToken; token != "" {
		given := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) == 1 {
			return c.Next()
		}
	}
	if id := c.Cookies(s.cfg.CookieName); id != "" {
		sess, err := s.cfg.Sessions.Get(c.UserContext(), id)
		if err == nil && s.cfg.Guard.Can(viewerOf(sess), "ops.metrics", "view") {
			return c.Next()
		}
	}
	return fiber.ErrUnauthorized
}

// guard applies the page-load access check.
func (s *Server) guard(c *fiber.Ctx) error {
	decision := s.cfg.Guard.Check(c.Path(), viewerOf(sessionOf(c)))
	switch {
	case decision.Redirect != "":
		return c.Redirect(decision.Redirect, decision.Status)
	case !decision.Allow:
		return s.errorPage(c, decision.Status, "You do not have access to this section.")
	}
	return c.Next()
}

func (s *Server) requireManageUsers(c *fiber.Ctx) error {
	if !s.cfg.Guard.Can(viewerOf(sessionOf(c)), "nav.users", "manage") {
		return s.errorPage(c, fiber.StatusForbidden, "You do not have access to this section.")
	}
	return c.Next()
}

func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

func sessionOf(c *fiber.Ctx) *session.Session {
	if sess, ok := c.Locals(sessionLocal).(*session.Session); ok {
		return sess
	}
	return session.New()
}

func viewerOf(sess *session.Session) insight.Viewer {
	return insight.Viewer{
		Username:      sess.Username,
		Role:          sess.Role,
		Authenticated: sess.Authenticated(),
	}
}
