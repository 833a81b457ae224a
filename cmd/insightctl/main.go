package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/components/insight/commands"
	"github.com/goliatone/go-datainsight/internal/logging"
	"github.com/goliatone/go-datainsight/pkg/backend"
	"github.com/goliatone/go-datainsight/pkg/session"
)

type cli struct {
	Globals

	Login   loginCmd   `cmd:"" help:"Sign in and store the access token locally."`
	Logout  logoutCmd  `cmd:"" help:"Forget the stored access token."`
	Whoami  whoamiCmd  `cmd:"" help:"Show the signed-in user and token expiry."`
	Upload  uploadCmd  `cmd:"" help:"Upload a CSV or XLSX file and print the resulting KPIs."`
	Table   tableCmd   `cmd:"" help:"Print the first rows of the current dataset."`
	KPIs    kpisCmd    `cmd:"" name:"kpis" help:"Print the KPI cards for the current dataset."`
	Export  exportCmd  `cmd:"" help:"Export the executive report as PDF or XLSX."`
	Data    dataCmd    `cmd:"" help:"Dump the current dataset as YAML or JSON."`
	Users   usersCmd   `cmd:"" help:"Manage backend accounts (admin only)."`
	Profile profileCmd `cmd:"" help:"Change the signed-in username or password."`
	Alert   alertCmd   `cmd:"" help:"Send an e-mail alert through the backend."`
}

// Globals are the flags shared by every subcommand.
type Globals struct {
	BackendURL  string        `name:"backend-url" env:"INSIGHT_BACKEND_URL" default:"http://localhost:5000" help:"Backend base URL."`
	Mode        string        `name:"mode" env:"INSIGHT_BACKEND_MODE" enum:"http,mock" default:"http" help:"Backend mode (http or an in-process mock whose state lasts one invocation)."`
	Timeout     time.Duration `env:"INSIGHT_BACKEND_TIMEOUT" default:"90s" help:"Backend request timeout."`
	SessionFile string        `name:"session-file" type:"path" env:"INSIGHT_SESSION_FILE" help:"Where the access token is kept (defaults to the user config dir)."`
	LogLevel    string        `name:"log-level" env:"LOG_LEVEL" default:"warn" help:"Log level."`

	Client backend.Client `kong:"-"`
	Out    io.Writer      `kong:"-"`
}

func main() {
	var app cli
	ctx := kong.Parse(&app,
		kong.Name("insightctl"),
		kong.Description("Terminal client for the DataInsight analytics backend."),
		kong.UsageOnError(),
		kong.Bind(&app.Globals),
	)
	logCfg := logging.DefaultConfig()
	logCfg.Level = app.LogLevel
	logCfg.Format = "console"
	logging.Init(logCfg)

	err := ctx.Run(context.Background())
	if msg := insight.Describe(err); msg != "" {
		err = errors.New(msg)
	}
	ctx.FatalIfErrorf(err)
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) client() (backend.Client, error) {
	if g.Client != nil {
		return g.Client, nil
	}
	var (
		client backend.Client
		err    error
	)
	switch g.Mode {
	case "mock":
		client, err = backend.NewMockClient()
	default:
		client, err = backend.NewHTTPClient(backend.HTTPConfig{BaseURL: g.BackendURL, Timeout: g.Timeout})
	}
	if err != nil {
		return nil, err
	}
	g.Client = client
	return client, nil
}

func (g *Globals) storage() (*session.LocalStorage, error) {
	path := g.SessionFile
	if path == "" {
		def, err := session.DefaultLocalPath()
		if err != nil {
			return nil, err
		}
		path = def
	}
	return session.NewLocalStorage(path), nil
}

// loadSession returns the stored session, or a fresh anonymous one.
func (g *Globals) loadSession() (*session.Session, *session.LocalStorage, error) {
	store, err := g.storage()
	if err != nil {
		return nil, nil, err
	}
	sess, err := store.Load()
	if errors.Is(err, session.ErrNotFound) {
		return session.New(), store, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, store, nil
}

// authenticated is loadSession for commands that need a token.
func (g *Globals) authenticated() (*session.Session, *session.LocalStorage, error) {
	sess, store, err := g.loadSession()
	if err != nil {
		return nil, nil, err
	}
	if !sess.Authenticated() {
		return nil, nil, errors.New("not signed in; run `insightctl login` first")
	}
	return sess, store, nil
}

// workspace fetches the persisted dataset into a fresh workspace.
func (g *Globals) workspace(ctx context.Context, sess *session.Session, controller *insight.Controller) (*insight.Workspace, error) {
	client, err := g.client()
	if err != nil {
		return nil, err
	}
	ws := insight.NewWorkspace(sess.ID)
	reload := commands.NewReloadCommand(client, controller, nil, nil)
	if err := reload.Execute(ctx, commands.ReloadInput{Session: sess, Workspace: ws}); err != nil {
		return nil, err
	}
	return ws, nil
}

func newController() *insight.Controller {
	return insight.NewController(insight.Options{})
}

type loginCmd struct {
	Username string `required:"" short:"u" help:"Account name."`
	Password string `required:"" short:"p" env:"INSIGHT_PASSWORD" help:"Account password."`
}

func (cmd *loginCmd) Run(ctx context.Context, g *Globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	sess, store, err := g.loadSession()
	if err != nil {
		return err
	}
	login := commands.NewLoginCommand(client, nil, nil, nil)
	if err := login.Execute(ctx, commands.LoginInput{Session: sess, Username: cmd.Username, Password: cmd.Password}); err != nil {
		return err
	}
	if err := store.Save(sess); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "✓ Signed in as %s (%s)\n", sess.Username, sess.Role)
	return nil
}

type logoutCmd struct{}

func (cmd *logoutCmd) Run(ctx context.Context, g *Globals) error {
	sess, store, err := g.loadSession()
	if err != nil {
		return err
	}
	logout := commands.NewLogoutCommand(nil, nil)
	if err := logout.Execute(ctx, commands.LogoutInput{Session: sess}); err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(g.out(), "✓ Signed out")
	return nil
}

type whoamiCmd struct{}

func (cmd *whoamiCmd) Run(_ context.Context, g *Globals) error {
	sess, store, err := g.authenticated()
	if err != nil {
		return err
	}
	expiry := "unknown"
	if claims, err := backend.ParseClaims(sess.Token); err == nil && !claims.ExpiresAt.IsZero() {
		expiry = claims.ExpiresAt.Local().Format(time.RFC1123)
		if claims.Expired(time.Now()) {
			expiry += " (expired)"
		}
	}
	renderPairs(g.out(), [][2]string{
		{"User", sess.Username},
		{"Role", sess.Role},
		{"Token expires", expiry},
		{"Session file", store.Path()},
	})
	return nil
}

type uploadCmd struct {
	File  string `arg:"" type:"existingfile" help:"CSV or XLSX file to upload."`
	Quiet bool   `short:"q" help:"Do not print upload progress."`
}

func (cmd *uploadCmd) Run(ctx context.Context, g *Globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	sess, store, err := g.authenticated()
	if err != nil {
		return err
	}
	file, err := os.Open(cmd.File)
	if err != nil {
		return fmt.Errorf("insightctl: open %s: %w", cmd.File, err)
	}
	defer file.Close()

	controller := newController()
	hub := insight.NewProgressHub()
	ws := insight.NewWorkspace(sess.ID)
	input := &commands.UploadInput{
		Session:   sess,
		Workspace: ws,
		UploadID:  filepath.Base(cmd.File),
		FileName:  filepath.Base(cmd.File),
		Body:      file,
	}

	stop := func() {}
	if !cmd.Quiet {
		events, cancel := hub.Subscribe(input.UploadID)
		done := make(chan struct{})
		go func() {
			defer close(done)
			printProgress(g.out(), events)
		}()
		// cancel closes the channel, so the printer drains and exits even
		// when the upload fails before publishing anything.
		stop = func() {
			cancel()
			<-done
		}
	}

	upload := commands.NewUploadCommand(client, controller, hub, nil, nil)
	err = upload.Execute(ctx, input)
	stop()
	if err != nil {
		return err
	}
	if flash := sess.PopFlash(); flash != nil {
		fmt.Fprintf(g.out(), "✓ %s\n", flash.Message)
	}
	if err := store.Save(sess); err != nil {
		return err
	}
	renderKPIs(g.out(), controller.View(ctx, ws).Display)
	return nil
}

type tableCmd struct {
	Sort string `short:"s" help:"Column to sort by."`
	Desc bool   `help:"Sort descending."`
}

func (cmd *tableCmd) Run(ctx context.Context, g *Globals) error {
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	controller := newController()
	ws, err := g.workspace(ctx, sess, controller)
	if err != nil {
		return err
	}
	if ws.Dataset().Empty() {
		fmt.Fprintln(g.out(), "No data yet. Upload a file first.")
		return nil
	}
	if cmd.Sort != "" {
		sorter := commands.NewSortCommand(controller)
		toggles := 1
		if cmd.Desc {
			toggles = 2
		}
		for range toggles {
			if err := sorter.Execute(ctx, commands.SortInput{Workspace: ws, Column: cmd.Sort}); err != nil {
				return err
			}
		}
	}
	view := controller.View(ctx, ws)
	renderTable(g.out(), view.Table)
	return nil
}

type kpisCmd struct{}

func (cmd *kpisCmd) Run(ctx context.Context, g *Globals) error {
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	controller := newController()
	ws, err := g.workspace(ctx, sess, controller)
	if err != nil {
		return err
	}
	renderKPIs(g.out(), controller.View(ctx, ws).Display)
	return nil
}

type exportCmd struct {
	Format string `short:"f" enum:"pdf,xlsx" default:"pdf" help:"Report format (pdf or xlsx)."`
	Out    string `short:"o" type:"path" help:"Output file (defaults to the generated report name)."`
}

func (cmd *exportCmd) Run(ctx context.Context, g *Globals) error {
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	controller := newController()
	ws, err := g.workspace(ctx, sess, controller)
	if err != nil {
		return err
	}
	var writer insight.ReportWriter = insight.NewPDFReportWriter()
	if cmd.Format == "xlsx" {
		writer = insight.NewXLSXReportWriter()
	}

	tmp, err := os.CreateTemp("", "insightctl-report-*")
	if err != nil {
		return fmt.Errorf("insightctl: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	doc, ok, err := controller.Export(ctx, ws, writer, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(g.out(), "Nothing to export: the dataset is empty.")
		return nil
	}
	target := cmd.Out
	if target == "" {
		target = doc.FileName(writer.Extension())
	}
	if err := moveFile(tmp.Name(), target); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "✓ Wrote %s (%d rows)\n", target, len(doc.Rows))
	return nil
}

func moveFile(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return fmt.Errorf("insightctl: read report: %w", err)
	}
	if err := os.WriteFile(to, data, 0o644); err != nil {
		return fmt.Errorf("insightctl: write %s: %w", to, err)
	}
	return nil
}

type dataCmd struct {
	Format string `short:"f" enum:"yaml,json" default:"yaml" help:"Output format (yaml or json)."`
}

func (cmd *dataCmd) Run(ctx context.Context, g *Globals) error {
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	controller := newController()
	ws, err := g.workspace(ctx, sess, controller)
	if err != nil {
		return err
	}
	return writeDataset(g.out(), ws.Dataset(), cmd.Format)
}

type usersCmd struct {
	List   usersListCmd   `cmd:"" default:"1" help:"List accounts."`
	Create usersCreateCmd `cmd:"" help:"Create an account."`
	Delete usersDeleteCmd `cmd:"" help:"Delete an account by id."`
}

type usersListCmd struct{}

func (cmd *usersListCmd) Run(ctx context.Context, g *Globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	users, err := client.ListUsers(ctx, sess.Token)
	if err != nil {
		return err
	}
	renderUsers(g.out(), users)
	return nil
}

type usersCreateCmd struct {
	Username string `arg:"" help:"Account name."`
	Password string `required:"" short:"p" env:"INSIGHT_NEW_USER_PASSWORD" help:"Initial password."`
	Role     string `default:"user" help:"Role (admin or user)."`
}

func (cmd *usersCreateCmd) Run(ctx context.Context, g *Globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	create := commands.NewCreateUserCommand(client, nil, nil)
	return runFlashing(g.out(), sess, create.Execute(ctx, commands.CreateUserInput{
		Session:  sess,
		Username: cmd.Username,
		Password: cmd.Password,
		Role:     cmd.Role,
	}))
}

type usersDeleteCmd struct {
	ID int `arg:"" help:"Account id."`
}

func (cmd *usersDeleteCmd) Run(ctx context.Context, g *Globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	del := commands.NewDeleteUserCommand(client, nil, nil)
	return runFlashing(g.out(), sess, del.Execute(ctx, commands.DeleteUserInput{Session: sess, UserID: cmd.ID}))
}

type profileCmd struct {
	CurrentPassword string `name:"current-password" required:"" env:"INSIGHT_PASSWORD" help:"Current password."`
	Username        string `name:"new-username" help:"New username."`
	Password        string `name:"new-password" env:"INSIGHT_NEW_PASSWORD" help:"New password."`
}

func (cmd *profileCmd) Run(ctx context.Context, g *Globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	sess, store, err := g.authenticated()
	if err != nil {
		return err
	}
	update := commands.NewUpdateProfileCommand(client, nil, nil)
	err = update.Execute(ctx, commands.UpdateProfileInput{
		Session:         sess,
		CurrentPassword: cmd.CurrentPassword,
		NewUsername:     strings.TrimSpace(cmd.Username),
		NewPassword:     cmd.Password,
	})
	if err := runFlashing(g.out(), sess, err); err != nil {
		return err
	}
	return store.Save(sess)
}

type alertCmd struct {
	Recipient string `required:"" short:"r" help:"E-mail recipient."`
	Subject   string `required:"" short:"s" help:"Subject line."`
	Message   string `arg:"" help:"Alert body."`
}

func (cmd *alertCmd) Run(ctx context.Context, g *Globals) error {
	client, err := g.client()
	if err != nil {
		return err
	}
	sess, _, err := g.authenticated()
	if err != nil {
		return err
	}
	send := commands.NewSendAlertCommand(client, nil, nil)
	return runFlashing(g.out(), sess, send.Execute(ctx, commands.SendAlertInput{
		Session:   sess,
		Recipient: cmd.Recipient,
		Subject:   cmd.Subject,
		Message:   cmd.Message,
	}))
}

// runFlashing prints the flash a command left on the session.
func runFlashing(w io.Writer, sess *session.Session, err error) error {
	if err != nil {
		return err
	}
	if flash := sess.PopFlash(); flash != nil {
		fmt.Fprintf(w, "✓ %s\n", flash.Message)
	}
	return nil
}
