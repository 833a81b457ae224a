package webapp

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/commands"
)

func (s *Server) showLogin(c *fiber.Ctx) error {
	return s.page(c, fiber.StatusOK, "login.html", "Sign in", nil)
}

// submitLogin keeps credential and cold-start errors inline on the form.
func (s *Server) submitLogin(c *fiber.Ctx) error {
	msg := commands.LoginInput{
		Session:  sessionOf(c),
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
	}
	if err := s.login.Execute(c.UserContext(), msg); err != nil {
		return s.page(c, statusFor(err), "login.html", "Sign in", fiber.Map{
			"username": msg.Username,
			"error":    insight.Describe(err),
		})
	}
	s.rotateSession(c)
	return c.Redirect(insight.HomePath, fiber.StatusSeeOther)
}

func (s *Server) submitLogout(c *fiber.Ctx) error {
	if err := s.logout.Execute(c.UserContext(), commands.LogoutInput{Session: sessionOf(c)}); err != nil {
		return err
	}
	return c.Redirect(insight.LoginPath, fiber.StatusSeeOther)
}
