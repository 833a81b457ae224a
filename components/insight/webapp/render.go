package webapp

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/internal/logging"
	"github.com/goliatone/go-datainsight/pkg/session"
)

// page renders a template with the shared layout data: viewer, sidebar,
// presentation flag and the pending flash.
func (s *Server) page(c *fiber.Ctx, status int, name, title string, data fiber.Map) error {
	html, err := s.renderPage(c.UserContext(), sessionOf(c), c.Path(), c.QueryBool("present"), name, title, data)
	if err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Status(status).SendString(html)
}

func (s *Server) renderPage(ctx context.Context, sess *session.Session, path string, present bool, name, title string, data fiber.Map) (string, error) {
	viewer := viewerOf(sess)
	ctxData := map[string]any{
		"title":   title,
		"viewer":  viewer,
		"nav":     s.cfg.Guard.Navigation(viewer, path),
		"present": present,
		"flash":   session.Flash{},
	}
	if flash := sess.PopFlash(); flash != nil {
		ctxData["flash"] = *flash
	}
	for k, v := range data {
		ctxData[k] = v
	}
	html, err := s.cfg.Renderer.Render(name, ctxData)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("template", name).Msg("render failed")
		return "", fiber.NewError(fiber.StatusInternalServerError, "could not render page")
	}
	return html, nil
}

func (s *Server) errorPage(c *fiber.Ctx, status int, message string) error {
	return s.page(c, status, "error.html", "Error", fiber.Map{"status": status, "message": message})
}

// fail queues the error for the next page and redirects there. Empty-dataset
// no-ops are silent.
func (s *Server) fail(c *fiber.Ctx, err error, to string) error {
	kind := insight.Classify(err)
	if kind != insight.KindEmpty {
		sessionOf(c).SetFlash("error", insight.Describe(err))
	}
	if kind == insight.KindBusiness || kind == insight.KindNetwork {
		logging.Ctx(c.UserContext()).Warn().Err(err).Str("kind", kind.String()).Msg("action failed")
	}
	return c.Redirect(to, fiber.StatusSeeOther)
}

// statusFor maps an error kind onto the status of a re-rendered form.
func statusFor(err error) int {
	switch insight.Classify(err) {
	case insight.KindAuth:
		return fiber.StatusUnauthorized
	case insight.KindNetwork:
		return fiber.StatusServiceUnavailable
	case insight.KindValidation:
		return fiber.StatusUnprocessableEntity
	case insight.KindInFlight:
		return fiber.StatusConflict
	}
	return fiber.StatusBadRequest
}

// ErrorHandler renders fiber errors as JSON for API paths and plain text
// elsewhere. It never touches templates so it works before Register.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	logging.Ctx(c.UserContext()).Error().Err(err).Int("status", code).Msg("request failed")
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
	c.Type("txt", "utf-8")
	return c.Status(code).SendString(err.Error())
}
