package webapp

import (
	"context"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/commands"
	"github.com/goliatone/go-datainsight/components/insight/queries"
	"github.com/goliatone/go-datainsight/internal/logging"
	"github.com/goliatone/go-datainsight/pkg/session"
)

func (s *Server) workspace(c *fiber.Ctx) *insight.Workspace {
	return s.workspaceOf(sessionOf(c))
}

func (s *Server) workspaceOf(sess *session.Session) *insight.Workspace {
	return s.cfg.Workspaces.Get(sess.ID)
}

// currentView derives the workspace views, fetching the persisted dataset on
// first use. Fetch failures are logged only; the page renders empty.
func (s *Server) currentView(ctx context.Context, sess *session.Session) (insight.DashboardView, error) {
	ws := s.workspaceOf(sess)
	if !ws.Loaded() {
		err := s.reload.Execute(ctx, commands.ReloadInput{Session: sess, Workspace: ws})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("stored data not loaded")
		}
	}
	return s.dashboard.Query(ctx, queries.WorkspaceRequest{Workspace: ws})
}

func (s *Server) submitReload(c *fiber.Ctx) error {
	err := s.reload.Execute(c.UserContext(), commands.ReloadInput{Session: sessionOf(c), Workspace: s.workspace(c)})
	if err != nil {
		return s.fail(c, err, insight.HomePath)
	}
	return c.Redirect(insight.HomePath, fiber.StatusSeeOther)
}

func (s *Server) submitSort(c *fiber.Ctx) error {
	column, err := url.PathUnescape(c.Params("column"))
	if err != nil {
		column = c.Params("column")
	}
	if err := s.sort.Execute(c.UserContext(), commands.SortInput{Workspace: s.workspace(c), Column: column}); err != nil {
		return s.fail(c, err, insight.HomePath)
	}
	return c.Redirect(insight.HomePath, fiber.StatusSeeOther)
}

// submitUpload forwards the multipart file to the backend. Progress is
// published under the form's upload_id for the SSE and WebSocket streams.
func (s *Server) submitUpload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		sessionOf(c).SetFlash("error", "Select a file to upload.")
		return c.Redirect(insight.HomePath, fiber.StatusSeeOther)
	}
	file, err := header.Open()
	if err != nil {
		return s.fail(c, err, insight.HomePath)
	}
	defer file.Close()

	msg := &commands.UploadInput{
		Session:   sessionOf(c),
		Workspace: s.workspace(c),
		UploadID:  c.FormValue("upload_id"),
		FileName:  header.Filename,
		Body:      file,
	}
	if err := s.upload.Execute(c.UserContext(), msg); err != nil {
		return s.fail(c, err, insight.HomePath)
	}
	return c.Redirect(insight.HomePath, fiber.StatusSeeOther)
}
