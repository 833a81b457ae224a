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

type userClient interface {
	CreateUser(ctx context.Context, token string, user backend.NewUser) (string, error)
	DeleteUser(ctx context.Context, token string, id int) (string, error)
}

// CreateUserInput carries the new-user form. A blank role means "user".
type CreateUserInput struct {
	Session  *session.Session `json:"-"`
	Username string           `json:"username" label:"Username" validate:"required"`
	Password string           `json:"password" label:"Password" validate:"required"`
	Role     string           `json:"role" label:"Role" validate:"omitempty,oneof=admin user"`
}

// CreateUserCommand creates a backend account.
type CreateUserCommand struct {
	client    userClient
	inflight  *insight.InFlight
	telemetry Telemetry
}

// NewCreateUserCommand creates the command.
func NewCreateUserCommand(client userClient, inflight *insight.InFlight, telemetry Telemetry) *CreateUserCommand {
	return &CreateUserCommand{client: client, inflight: inflight, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[CreateUserInput] = (*CreateUserCommand)(nil)

// Execute creates the account.
func (c *CreateUserCommand) Execute(ctx context.Context, msg CreateUserInput) error {
	if c.client == nil {
		return errors.New("create user command requires client")
	}
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	msg.Username = strings.TrimSpace(msg.Username)
	msg.Role = strings.ToLower(strings.TrimSpace(msg.Role))
	if err := validateInput(msg); err != nil {
		return err
	}
	if msg.Role == "" {
		msg.Role = "user"
	}
	release, err := begin(c.inflight, msg.Session, insight.ActionCreateUser)
	if err != nil {
		return err
	}
	defer release()

	message, err := c.client.CreateUser(ctx, msg.Session.Token, backend.NewUser{
		Username: msg.Username,
		Password: msg.Password,
		Role:     msg.Role,
	})
	if err != nil {
		return err
	}
	msg.Session.SetFlash("success", message)
	c.telemetry.Record(ctx, "insight.user.created", map[string]any{"role": msg.Role})
	return nil
}

// DeleteUserInput names the account to delete.
type DeleteUserInput struct {
	Session *session.Session `json:"-"`
	UserID  int              `json:"user_id" label:"User" validate:"gt=0"`
}

// DeleteUserCommand deletes a backend account.
type DeleteUserCommand struct {
	client    userClient
	inflight  *insight.InFlight
	telemetry Telemetry
}

// NewDeleteUserCommand creates the command.
func NewDeleteUserCommand(client userClient, inflight *insight.InFlight, telemetry Telemetry) *DeleteUserCommand {
	return &DeleteUserCommand{client: client, inflight: inflight, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[DeleteUserInput] = (*DeleteUserCommand)(nil)

// Execute deletes the account.
func (c *DeleteUserCommand) Execute(ctx context.Context, msg DeleteUserInput) error {
	if c.client == nil {
		return errors.New("delete user command requires client")
	}
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	if err := validateInput(msg); err != nil {
		return err
	}
	release, err := begin(c.inflight, msg.Session, insight.ActionDeleteUser)
	if err != nil {
		return err
	}
	defer release()

	message, err := c.client.DeleteUser(ctx, msg.Session.Token, msg.UserID)
	if err != nil {
		return err
	}
	msg.Session.SetFlash("success", message)
	c.telemetry.Record(ctx, "insight.user.deleted", map[string]any{"user_id": msg.UserID})
	return nil
}
