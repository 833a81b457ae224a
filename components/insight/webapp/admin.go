package webapp

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-datainsight/components/insight/commands"
)

const (
	usersPath   = "/users"
	profilePath = "/profile"
	alertsPath  = "/alerts"
)

func (s *Server) submitCreateUser(c *fiber.Ctx) error {
	err := s.createUser.Execute(c.UserContext(), commands.CreateUserInput{
		Session:  sessionOf(c),
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
		Role:     c.FormValue("role"),
	})
	if err != nil {
		return s.fail(c, err, usersPath)
	}
	return c.Redirect(usersPath, fiber.StatusSeeOther)
}

func (s *Server) submitDeleteUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		id = 0
	}
	if err := s.deleteUser.Execute(c.UserContext(), commands.DeleteUserInput{Session: sessionOf(c), UserID: id}); err != nil {
		return s.fail(c, err, usersPath)
	}
	return c.Redirect(usersPath, fiber.StatusSeeOther)
}

func (s *Server) submitProfile(c *fiber.Ctx) error {
	err := s.profile.Execute(c.UserContext(), commands.UpdateProfileInput{
		Session:         sessionOf(c),
		CurrentPassword: c.FormValue("current_password"),
		NewUsername:     c.FormValue("new_username"),
		NewPassword:     c.FormValue("new_password"),
	})
	if err != nil {
		return s.fail(c, err, profilePath)
	}
	return c.Redirect(profilePath, fiber.StatusSeeOther)
}

func (s *Server) submitAlert(c *fiber.Ctx) error {
	err := s.alert.Execute(c.UserContext(), commands.SendAlertInput{
		Session:   sessionOf(c),
		Recipient: c.FormValue("recipient"),
		Subject:   c.FormValue("subject"),
		Message:   c.FormValue("message"),
	})
	if err != nil {
		return s.fail(c, err, alertsPath)
	}
	return c.Redirect(alertsPath, fiber.StatusSeeOther)
}
