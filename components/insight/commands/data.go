package commands

import (
	"context"
	"errors"
	"io"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/pkg/backend"
	"github.com/goliatone/go-datainsight/pkg/session"
	"github.com/google/uuid"
)

type dataClient interface {
	Upload(ctx context.Context, token string, upload backend.Upload) (backend.UploadResult, error)
	FetchData(ctx context.Context, token string) (insight.Dataset, error)
}

// UploadInput carries one file upload. UploadID names the progress stream;
// a blank id gets a generated one written back to the field.
type UploadInput struct {
	Session   *session.Session   `json:"-"`
	Workspace *insight.Workspace `json:"-"`
	UploadID  string             `json:"upload_id"`
	FileName  string             `json:"file_name" label:"File" validate:"required"`
	Body      io.Reader          `json:"-"`
}

// UploadCommand sends a file to the backend, publishes its progress and loads
// the returned rows into the workspace.
type UploadCommand struct {
	client     dataClient
	controller *insight.Controller
	hub        *insight.ProgressHub
	inflight   *insight.InFlight
	telemetry  Telemetry
}

// NewUploadCommand creates the command. A nil hub disables progress events.
func NewUploadCommand(client dataClient, controller *insight.Controller, hub *insight.ProgressHub, inflight *insight.InFlight, telemetry Telemetry) *UploadCommand {
	return &UploadCommand{
		client:     client,
		controller: controller,
		hub:        hub,
		inflight:   inflight,
		telemetry:  normalizeTelemetry(telemetry),
	}
}

var _ gocommand.Commander[*UploadInput] = (*UploadCommand)(nil)

// Execute uploads the file.
func (c *UploadCommand) Execute(ctx context.Context, msg *UploadInput) error {
	if c.client == nil || c.controller == nil {
		return errors.New("upload command requires client and controller")
	}
	if msg == nil {
		return errNoSession
	}
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	if msg.Workspace == nil || msg.Body == nil {
		return errors.New("upload command requires workspace and body")
	}
	if err := validateInput(msg); err != nil {
		return err
	}
	release, err := begin(c.inflight, msg.Session, insight.ActionUpload)
	if err != nil {
		return err
	}
	defer release()

	if strings.TrimSpace(msg.UploadID) == "" {
		msg.UploadID = uuid.NewString()
	}
	c.publish(insight.ProgressEvent{UploadID: msg.UploadID, Phase: insight.PhaseUploading})

	upload := backend.Upload{FileName: msg.FileName, Body: msg.Body}
	if c.hub != nil {
		upload.Progress = c.hub.Reporter(msg.UploadID)
	}
	result, err := c.client.Upload(ctx, msg.Session.Token, upload)
	if err != nil {
		c.publish(insight.ProgressEvent{UploadID: msg.UploadID, Phase: insight.PhaseFailed, Message: insight.Describe(err)})
		c.telemetry.Record(ctx, "insight.upload.failed", map[string]any{"kind": insight.Classify(err).String()})
		return err
	}

	c.publish(insight.ProgressEvent{UploadID: msg.UploadID, Phase: insight.PhaseProcessing})
	c.controller.Load(ctx, msg.Workspace, result.Dataset)
	c.publish(insight.ProgressEvent{UploadID: msg.UploadID, Phase: insight.PhaseDone, Message: result.Message})

	msg.Session.SetFlash("success", result.Message)
	c.telemetry.Record(ctx, "insight.upload.completed", map[string]any{
		"file": msg.FileName,
		"rows": result.Dataset.Len(),
	})
	return nil
}

func (c *UploadCommand) publish(event insight.ProgressEvent) {
	if c.hub != nil {
		c.hub.Publish(event)
	}
}

// ReloadInput identifies the workspace to refresh from the persisted dataset.
type ReloadInput struct {
	Session   *session.Session   `json:"-"`
	Workspace *insight.Workspace `json:"-"`
}

// ReloadCommand fetches the dataset the backend kept from the last upload. An
// empty answer leaves an already loaded workspace alone.
type ReloadCommand struct {
	client     dataClient
	controller *insight.Controller
	inflight   *insight.InFlight
	telemetry  Telemetry
}

// NewReloadCommand creates the command.
func NewReloadCommand(client dataClient, controller *insight.Controller, inflight *insight.InFlight, telemetry Telemetry) *ReloadCommand {
	return &ReloadCommand{client: client, controller: controller, inflight: inflight, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ReloadInput] = (*ReloadCommand)(nil)

// Execute fetches and loads the stored dataset.
func (c *ReloadCommand) Execute(ctx context.Context, msg ReloadInput) error {
	if c.client == nil || c.controller == nil {
		return errors.New("reload command requires client and controller")
	}
	if err := requireSession(msg.Session); err != nil {
		return err
	}
	if msg.Workspace == nil {
		return errors.New("reload command requires workspace")
	}
	release, err := begin(c.inflight, msg.Session, insight.ActionReload)
	if err != nil {
		return err
	}
	defer release()

	ds, err := c.client.FetchData(ctx, msg.Session.Token)
	if err != nil {
		return err
	}
	if ds.Empty() && msg.Workspace.Loaded() {
		return nil
	}
	c.controller.Load(ctx, msg.Workspace, ds)
	c.telemetry.Record(ctx, "insight.dataset.reloaded", map[string]any{"rows": ds.Len()})
	return nil
}

// SortInput is a header click.
type SortInput struct {
	Workspace *insight.Workspace `json:"-"`
	Column    string             `json:"column" label:"Column" validate:"required"`
}

// SortCommand toggles the table sort.
type SortCommand struct {
	controller *insight.Controller
}

// NewSortCommand creates the command.
func NewSortCommand(controller *insight.Controller) *SortCommand {
	return &SortCommand{controller: controller}
}

var _ gocommand.Commander[SortInput] = (*SortCommand)(nil)

// Execute applies the toggle.
func (c *SortCommand) Execute(ctx context.Context, msg SortInput) error {
	if c.controller == nil || msg.Workspace == nil {
		return errors.New("sort command requires controller and workspace")
	}
	if err := validateInput(msg); err != nil {
		return err
	}
	_, err := c.controller.ToggleSort(ctx, msg.Workspace, msg.Column)
	return err
}

// SaveRowInput is a submitted edit form.
type SaveRowInput struct {
	Session   *session.Session    `json:"-"`
	Workspace *insight.Workspace  `json:"-"`
	Index     int                 `json:"index" label:"Row" validate:"gte=0"`
	Fields    []insight.EditField `json:"fields"`
}

// SaveRowCommand replaces a row and re-derives every view.
type SaveRowCommand struct {
	controller *insight.Controller
}

// NewSaveRowCommand creates the command.
func NewSaveRowCommand(controller *insight.Controller) *SaveRowCommand {
	return &SaveRowCommand{controller: controller}
}

var _ gocommand.Commander[SaveRowInput] = (*SaveRowCommand)(nil)

// Execute saves the row.
func (c *SaveRowCommand) Execute(ctx context.Context, msg SaveRowInput) error {
	if c.controller == nil || msg.Workspace == nil {
		return errors.New("save row command requires controller and workspace")
	}
	if err := validateInput(msg); err != nil {
		return err
	}
	if _, err := c.controller.SaveRow(ctx, msg.Workspace, msg.Index, msg.Fields); err != nil {
		return err
	}
	if msg.Session != nil {
		msg.Session.SetFlash("success", "Row updated")
	}
	return nil
}
