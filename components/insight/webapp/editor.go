package webapp

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/commands"
	"github.com/goliatone/go-datainsight/components/insight/queries"
)

const editorPath = "/editor"

func (s *Server) showEditRow(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return s.fail(c, insight.ErrRowOutOfRange, editorPath)
	}
	form, err := s.editRow.Query(c.UserContext(), queries.EditRowRequest{Workspace: s.workspace(c), Index: index})
	if err != nil {
		return s.fail(c, err, editorPath)
	}
	return s.page(c, fiber.StatusOK, "edit_row.html", "Edit record", fiber.Map{"form": form})
}

// submitEditRow pairs the repeated column and value fields of the form.
func (s *Server) submitEditRow(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return s.fail(c, insight.ErrRowOutOfRange, editorPath)
	}
	args := c.Request().PostArgs()
	columns := args.PeekMulti("column")
	values := args.PeekMulti("value")
	fields := make([]insight.EditField, 0, len(columns))
	for i, col := range columns {
		field := insight.EditField{Column: string(col)}
		if i < len(values) {
			field.Value = string(values[i])
		}
		fields = append(fields, field)
	}
	err = s.saveRow.Execute(c.UserContext(), commands.SaveRowInput{
		Session:   sessionOf(c),
		Workspace: s.workspace(c),
		Index:     index,
		Fields:    fields,
	})
	if err != nil {
		return s.fail(c, err, editorPath)
	}
	return c.Redirect(editorPath, fiber.StatusSeeOther)
}
