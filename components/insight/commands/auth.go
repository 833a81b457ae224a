package commands

import (
	"context"
	"errors"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/pkg/backend"
	"github.com/goliatone/go-datainsight/pkg/session"
)

// LoginInput carries the login form.
type LoginInput struct {
	Session  *session.Session `json:"-"`
	Username string           `json:"username" label:"Username" validate:"required"`
	Password string           `json:"password" label:"Password" validate:"required"`
}

type loginClient interface {
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
}

// LoginCommand authenticates against the backend and stores the token and
// role on the session. Any workspace left from a previous login is dropped.
type LoginCommand struct {
	client     loginClient
	workspaces *insight.WorkspaceRegistry
	inflight   *insight.InFlight
	telemetry  Telemetry
}

// NewLoginCommand creates the command.
func NewLoginCommand(client loginClient, workspaces *insight.WorkspaceRegistry, inflight *insight.InFlight, telemetry Telemetry) *LoginCommand {
	return &LoginCommand{client: client, workspaces: workspaces, inflight: inflight, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LoginInput] = (*LoginCommand)(nil)

// Execute logs the user in.
func (c *LoginCommand) Execute(ctx context.Context, msg LoginInput) error {
	if c.client == nil {
		return errors.New("login command requires client")
	}
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	msg.Username = strings.TrimSpace(msg.Username)
	if err := validateInput(msg); err != nil {
		return err
	}
	release, err := begin(c.inflight, msg.Session, insight.ActionLogin)
	if err != nil {
		return err
	}
	defer release()

	result, err := c.client.Login(ctx, msg.Username, msg.Password)
	if err != nil {
		c.telemetry.Record(ctx, "insight.auth.login_failed", map[string]any{"kind": insight.Classify(err).String()})
		return err
	}
	username := msg.Username
	if claims, err := backend.ParseClaims(result.Token); err == nil && claims.Subject != "" {
		username = claims.Subject
	}
	if c.workspaces != nil {
		c.workspaces.Drop(msg.Session.ID)
	}
	msg.Session.SignIn(result.Token, result.Role, username)
	c.telemetry.Record(ctx, "insight.auth.login", map[string]any{"role": result.Role})
	return nil
}

// LogoutInput identifies the session to sign out.
type LogoutInput struct {
	Session *session.Session `json:"-"`
}

// LogoutCommand clears the stored identity and the session workspace.
type LogoutCommand struct {
	workspaces *insight.WorkspaceRegistry
	telemetry  Telemetry
}

// NewLogoutCommand creates the command.
func NewLogoutCommand(workspaces *insight.WorkspaceRegistry, telemetry Telemetry) *LogoutCommand {
	return &LogoutCommand{workspaces: workspaces, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LogoutInput] = (*LogoutCommand)(nil)

// Execute signs the session out.
func (c *LogoutCommand) Execute(ctx context.Context, msg LogoutInput) error {
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	if c.workspaces != nil {
		c.workspaces.Drop(msg.Session.ID)
	}
	msg.Session.SignOut()
	c.telemetry.Record(ctx, "insight.auth.logout", nil)
	return nil
}

// UpdateProfileInput carries the profile form. Blank new values are left unchanged.
type UpdateProfileInput struct {
	Session         *session.Session `json:"-"`
	CurrentPassword string           `json:"current_password" label:"Current password" validate:"required"`
	NewUsername     string           `json:"new_username"`
	NewPassword     string           `json:"new_password"`
}

type profileClient interface {
	UpdateProfile(ctx context.Context, token string, update backend.ProfileUpdate) (backend.ProfileResult, error)
}

// UpdateProfileCommand changes the username and/or password. When the backend
// issues a new token it replaces the stored one.
type UpdateProfileCommand struct {
	client    profileClient
	inflight  *insight.InFlight
	telemetry Telemetry
}

// NewUpdateProfileCommand creates the command.
func NewUpdateProfileCommand(client profileClient, inflight *insight.InFlight, telemetry Telemetry) *UpdateProfileCommand {
	return &UpdateProfileCommand{client: client, inflight: inflight, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[UpdateProfileInput] = (*UpdateProfileCommand)(nil)

// Execute sends the update.
func (c *UpdateProfileCommand) Execute(ctx context.Context, msg UpdateProfileInput) error {
	if c.client == nil {
		return errors.New("profile command requires client")
	}
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	msg.NewUsername = strings.TrimSpace(msg.NewUsername)
	if err := validateInput(msg); err != nil {
		return err
	}
	release, err := begin(c.inflight, msg.Session, insight.ActionProfile)
	if err != nil {
		return err
	}
	defer release()

	result, err := c.client.UpdateProfile(ctx, msg.Session.Token, backend.ProfileUpdate{
		CurrentPassword: msg.CurrentPassword,
		NewUsername:     msg.NewUsername,
		NewPassword:     msg.NewPassword,
	})
	if err != nil {
		return err
	}
	if result.Token != "" {
		msg.Session.Token = result.Token
		if claims, err := backend.ParseClaims(result.Token); err == nil && claims.Subject != "" {
			msg.Session.Username = claims.Subject
		}
	} else if msg.NewUsername != "" {
		msg.Session.Username = msg.NewUsername
	}
	msg.Session.SetFlash("success", result.Message)
	c.telemetry.Record(ctx, "insight.profile.updated", map[string]any{
		"username_changed": msg.NewUsername != "",
		"password_changed": msg.NewPassword != "",
		"token_replaced":   result.Token != "",
	})
	return nil
}
