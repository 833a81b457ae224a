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

// SendAlertInput carries the alert form.
type SendAlertInput struct {
	Session   *session.Session `json:"-"`
	Recipient string           `json:"recipient" label:"Recipient" validate:"required,email"`
	Subject   string           `json:"subject" label:"Subject" validate:"required"`
	Message   string           `json:"message" label:"Message" validate:"required"`
}

type alertClient interface {
	SendAlert(ctx context.Context, token string, alert backend.Alert) (string, error)
}

// SendAlertCommand asks the backend to e-mail an alert.
type SendAlertCommand struct {
	client    alertClient
	inflight  *insight.InFlight
	telemetry Telemetry
}

// NewSendAlertCommand creates the command.
func NewSendAlertCommand(client alertClient, inflight *insight.InFlight, telemetry Telemetry) *SendAlertCommand {
	return &SendAlertCommand{client: client, inflight: inflight, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SendAlertInput] = (*SendAlertCommand)(nil)

// Execute sends the alert.
func (c *SendAlertCommand) Execute(ctx context.Context, msg SendAlertInput) error {
	if c.client == nil {
		return errors.New("alert command requires client")
	}
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	msg.Recipient = strings.TrimSpace(msg.Recipient)
	msg.Subject = strings.TrimSpace(msg.Subject)
	if err := validateInput(msg); err != nil {
		return err
	}
	release, err := begin(c.inflight, msg.Session, insight.ActionAlert)
	if err != nil {
		return err
	}
	defer release()

	message, err := c.client.SendAlert(ctx, msg.Session.Token, backend.Alert{
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Message:   msg.Message,
	})
	if err != nil {
		return err
	}
	msg.Session.SetFlash("success", message)
	c.telemetry.Record(ctx, "insight.alert.sent", nil)
	return nil
}
