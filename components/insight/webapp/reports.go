package webapp

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/components/insight"
)

const reportsPath = "/reports"

// exportWith downloads the report in the writer's format. An empty dataset
// answers 204 with no body.
func (s *Server) exportWith(writer insight.ReportWriter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := sessionOf(c)
		release, err := s.cfg.InFlight.Begin(sess.ID, insight.ActionExport)
		if err != nil {
			return s.fail(c, err, reportsPath)
		}
		defer release()

		var buf bytes.Buffer
		doc, ok, err := s.cfg.Controller.Export(c.UserContext(), s.workspace(c), writer, &buf)
		if err != nil {
			return s.fail(c, err, reportsPath)
		}
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		c.Attachment(doc.FileName(writer.Extension()))
		c.Set(fiber.HeaderContentType, writer.ContentType())
		return c.Send(buf.Bytes())
	}
}
