package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/pkg/backend"
	"github.com/goliatone/go-datainsight/pkg/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginCommandSignsIn(t *testing.T) {
	client := &stubBackend{loginResult: backend.LoginResult{Token: signedToken(t, "ana"), Role: "admin"}}
	registry := insight.NewWorkspaceRegistry()
	telemetry := &stubTelemetry{}
	s := session.New()
	registry.Get(s.ID)

	cmd := NewLoginCommand(client, registry, insight.NewInFlight(), telemetry)
	require.NoError(t, cmd.Execute(context.Background(), LoginInput{Session: s, Username: " ana ", Password: "secret"}))

	assert.True(t, s.Authenticated())
	assert.Equal(t, "admin", s.Role)
	assert.Equal(t, "ana", s.Username)
	assert.Equal(t, "ana", client.lastUsername, "username is trimmed before sending")
	assert.Zero(t, registry.Len(), "previous workspace dropped")
	assert.Equal(t, []string{"insight.auth.login"}, telemetry.events)
}

func TestLoginCommandValidatesFields(t *testing.T) {
	client := &stubBackend{}
	cmd := NewLoginCommand(client, nil, nil, nil)
	err := cmd.Execute(context.Background(), LoginInput{Session: session.New(), Username: "  "})

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, []string{"Username is required", "Password is required"}, inputErr.Problems)
	assert.Equal(t, insight.KindValidation, insight.Classify(err))
	assert.Equal(t, "Username is required. Password is required.", insight.Describe(err))
	assert.Zero(t, client.calls)
}

func TestLoginCommandKeepsSessionOnFailure(t *testing.T) {
	client := &stubBackend{err: insight.ErrUnauthorized}
	s := session.New()
	err := NewLoginCommand(client, nil, nil, nil).Execute(context.Background(), LoginInput{Session: s, Username: "a", Password: "b"})
	assert.Equal(t, insight.KindAuth, insight.Classify(err))
	assert.False(t, s.Authenticated())
}

func TestLoginCommandRejectsDuplicateInFlight(t *testing.T) {
	guard := insight.NewInFlight()
	s := session.New()
	release, err := guard.Begin(s.ID, insight.ActionLogin)
	require.NoError(t, err)
	defer release()

	err = NewLoginCommand(&stubBackend{}, nil, guard, nil).Execute(context.Background(), LoginInput{Session: s, Username: "a", Password: "b"})
	assert.True(t, errors.Is(err, insight.ErrRequestInFlight))
}

func TestLogoutCommandDropsWorkspace(t *testing.T) {
	registry := insight.NewWorkspaceRegistry()
	s := session.New()
	s.SignIn("tok", "user", "ana")
	registry.Get(s.ID)

	require.NoError(t, NewLogoutCommand(registry, nil).Execute(context.Background(), LogoutInput{Session: s}))
	assert.False(t, s.Authenticated())
	assert.Zero(t, registry.Len())
}

func TestUpdateProfileCommandReplacesToken(t *testing.T) {
	newToken := signedToken(t, "ana2")
	client := &stubBackend{profileResult: backend.ProfileResult{Message: "Profile updated successfully", Token: newToken}}
	s := session.New()
	s.SignIn("old", "user", "ana")

	cmd := NewUpdateProfileCommand(client, insight.NewInFlight(), nil)
	require.NoError(t, cmd.Execute(context.Background(), UpdateProfileInput{Session: s, CurrentPassword: "pw", NewUsername: "ana2"}))

	assert.Equal(t, newToken, s.Token)
	assert.Equal(t, "ana2", s.Username)
	assert.Equal(t, "old", client.lastToken)
	assert.Equal(t, "Profile updated successfully", s.PopFlash().Message)
}

func TestUpdateProfileCommandKeepsTokenWhenNoneIssued(t *testing.T) {
	client := &stubBackend{profileResult: backend.ProfileResult{Message: "ok"}}
	s := session.New()
	s.SignIn("old", "user", "ana")

	require.NoError(t, NewUpdateProfileCommand(client, nil, nil).Execute(context.Background(), UpdateProfileInput{Session: s, CurrentPassword: "pw", NewPassword: "n"}))
	assert.Equal(t, "old", s.Token)
	assert.Equal(t, "ana", s.Username)
}

func TestUpdateProfileCommandRequiresCurrentPassword(t *testing.T) {
	err := NewUpdateProfileCommand(&stubBackend{}, nil, nil).Execute(context.Background(), UpdateProfileInput{Session: session.New()})
	assert.Equal(t, "Current password is required.", insight.Describe(err))
}

func TestUploadCommandLoadsDatasetAndPublishesPhases(t *testing.T) {
	ds := insight.NewDataset([]string{"Region", "Amount"}, []insight.Row{{"Region": "North", "Amount": 10.0}})
	client := &stubBackend{uploadResult: backend.UploadResult{Message: "Data uploaded successfully", Dataset: ds}}
	hub := insight.NewProgressHub()
	controller := insight.NewController(insight.Options{})
	ws := insight.NewWorkspace("s1")
	s := session.New()
	s.SignIn("tok", "user", "ana")

	events, cancel := hub.Subscribe("up-1")
	defer cancel()

	cmd := NewUploadCommand(client, controller, hub, insight.NewInFlight(), nil)
	msg := &UploadInput{Session: s, Workspace: ws, UploadID: "up-1", FileName: "sales.csv", Body: strings.NewReader("a,b")}
	require.NoError(t, cmd.Execute(context.Background(), msg))

	assert.True(t, ws.Loaded())
	assert.Equal(t, 1, ws.Dataset().Len())
	assert.Equal(t, "sales.csv", client.lastUpload.FileName)
	assert.NotNil(t, client.lastUpload.Progress)
	assert.Equal(t, "Data uploaded successfully", s.PopFlash().Message)

	var phases []insight.UploadPhase
	for len(events) > 0 {
		phases = append(phases, (<-events).Phase)
	}
	assert.Equal(t, []insight.UploadPhase{insight.PhaseUploading, insight.PhaseProcessing, insight.PhaseDone}, phases)
}

func TestUploadCommandGeneratesIDAndReportsFailure(t *testing.T) {
	client := &stubBackend{err: insight.ErrBackendUnavailable}
	ws := insight.NewWorkspace("s1")
	s := session.New()
	msg := &UploadInput{Session: s, Workspace: ws, FileName: "x.csv", Body: strings.NewReader("")}

	err := NewUploadCommand(client, insight.NewController(insight.Options{}), insight.NewProgressHub(), nil, nil).Execute(context.Background(), msg)
	assert.Equal(t, insight.KindNetwork, insight.Classify(err))
	assert.NotEmpty(t, msg.UploadID)
	assert.False(t, ws.Loaded())
}

func TestReloadCommand(t *testing.T) {
	ds := insight.NewDataset([]string{"n"}, []insight.Row{{"n": 1.0}})
	client := &stubBackend{data: ds}
	controller := insight.NewController(insight.Options{})
	ws := insight.NewWorkspace("s1")
	s := session.New()

	cmd := NewReloadCommand(client, controller, nil, nil)
	require.NoError(t, cmd.Execute(context.Background(), ReloadInput{Session: s, Workspace: ws}))
	assert.Equal(t, 1, ws.Dataset().Len())

	client.data = insight.Dataset{}
	require.NoError(t, cmd.Execute(context.Background(), ReloadInput{Session: s, Workspace: ws}))
	assert.Equal(t, 1, ws.Dataset().Len(), "empty answer keeps loaded rows")

	fresh := insight.NewWorkspace("s2")
	require.NoError(t, cmd.Execute(context.Background(), ReloadInput{Session: s, Workspace: fresh}))
	assert.True(t, fresh.Loaded())
}

func TestSortAndSaveRowCommands(t *testing.T) {
	controller := insight.NewController(insight.Options{})
	ws := insight.NewWorkspace("s1")
	controller.Load(context.Background(), ws, insight.NewDataset(
		[]string{"Product", "Amount"},
		[]insight.Row{{"Product": "A", "Amount": 2.0}, {"Product": "B", "Amount": 1.0}},
	))

	require.NoError(t, NewSortCommand(controller).Execute(context.Background(), SortInput{Workspace: ws, Column: "Amount"}))
	assert.Equal(t, insight.SortState{Column: "Amount", Ascending: true}, ws.Sort())

	err := NewSortCommand(controller).Execute(context.Background(), SortInput{Workspace: ws, Column: "Nope"})
	assert.True(t, errors.Is(err, insight.ErrUnknownColumn))

	s := session.New()
	save := NewSaveRowCommand(controller)
	require.NoError(t, save.Execute(context.Background(), SaveRowInput{
		Session:   s,
		Workspace: ws,
		Index:     1,
		Fields:    []insight.EditField{{Column: "Product", Value: "C"}, {Column: "Amount", Value: "9"}},
	}))
	assert.Equal(t, insight.Row{"Product": "C", "Amount": 9.0}, ws.Dataset().Rows[1])
	assert.Equal(t, "Row updated", s.PopFlash().Message)

	err = save.Execute(context.Background(), SaveRowInput{Workspace: ws, Index: -1})
	assert.Equal(t, insight.KindValidation, insight.Classify(err))
	err = save.Execute(context.Background(), SaveRowInput{Workspace: ws, Index: 5})
	assert.True(t, errors.Is(err, insight.ErrRowOutOfRange))
}

func TestCreateUserCommandDefaultsRole(t *testing.T) {
	client := &stubBackend{message: "User created successfully"}
	s := session.New()
	s.SignIn("tok", "admin", "admin")

	require.NoError(t, NewCreateUserCommand(client, nil, nil).Execute(context.Background(), CreateUserInput{Session: s, Username: "bob", Password: "pw"}))
	assert.Equal(t, "user", client.lastNewUser.Role)
	assert.Equal(t, "User created successfully", s.PopFlash().Message)

	err := NewCreateUserCommand(client, nil, nil).Execute(context.Background(), CreateUserInput{Session: s, Username: "x", Password: "y", Role: "root"})
	assert.Equal(t, "Role must be one of: admin, user.", insight.Describe(err))
}

func TestDeleteUserCommand(t *testing.T) {
	client := &stubBackend{message: "User deleted"}
	s := session.New()
	require.NoError(t, NewDeleteUserCommand(client, nil, nil).Execute(context.Background(), DeleteUserInput{Session: s, UserID: 4}))
	assert.Equal(t, 4, client.lastDeleteID)

	err := NewDeleteUserCommand(client, nil, nil).Execute(context.Background(), DeleteUserInput{Session: s})
	assert.Equal(t, "User must be greater than 0.", insight.Describe(err))
}

func TestSendAlertCommandValidatesRecipient(t *testing.T) {
	client := &stubBackend{message: "Alert sent"}
	s := session.New()
	err := NewSendAlertCommand(client, nil, nil).Execute(context.Background(), SendAlertInput{Session: s, Recipient: "nope", Subject: "s", Message: "m"})
	assert.Equal(t, "Recipient must be a valid e-mail address.", insight.Describe(err))

	require.NoError(t, NewSendAlertCommand(client, nil, nil).Execute(context.Background(), SendAlertInput{Session: s, Recipient: "ops@example.com", Subject: " Low stock ", Message: "m"}))
	assert.Equal(t, "Low stock", client.lastAlert.Subject)
	assert.Equal(t, "Alert sent", s.PopFlash().Message)
}

func TestCommandsRequireSession(t *testing.T) {
	err := NewSendAlertCommand(&stubBackend{}, nil, nil).Execute(context.Background(), SendAlertInput{})
	assert.True(t, errors.Is(err, insight.ErrValidation))
}

func signedToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).SignedString([]byte("test"))
	require.NoError(t, err)
	return token
}

type stubTelemetry struct {
	events []string
}

func (s *stubTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	s.events = append(s.events, event)
}

type stubBackend struct {
	calls         int
	err           error
	loginResult   backend.LoginResult
	profileResult backend.ProfileResult
	uploadResult  backend.UploadResult
	data          insight.Dataset
	message       string

	lastUsername string
	lastToken    string
	lastUpload   backend.Upload
	lastNewUser  backend.NewUser
	lastDeleteID int
	lastAlert    backend.Alert
}

func (s *stubBackend) Login(_ context.Context, username, _ string) (backend.LoginResult, error) {
	s.calls++
	s.lastUsername = username
	return s.loginResult, s.err
}

func (s *stubBackend) UpdateProfile(_ context.Context, token string, _ backend.ProfileUpdate) (backend.ProfileResult, error) {
	s.calls++
	s.lastToken = token
	return s.profileResult, s.err
}

func (s *stubBackend) Upload(_ context.Context, _ string, upload backend.Upload) (backend.UploadResult, error) {
	s.calls++
	s.lastUpload = upload
	return s.uploadResult, s.err
}

func (s *stubBackend) FetchData(context.Context, string) (insight.Dataset, error) {
	s.calls++
	return s.data, s.err
}

func (s *stubBackend) CreateUser(_ context.Context, _ string, user backend.NewUser) (string, error) {
	s.calls++
	s.lastNewUser = user
	return s.message, s.err
}

func (s *stubBackend) DeleteUser(_ context.Context, _ string, id int) (string, error) {
	s.calls++
	s.lastDeleteID = id
	return s.message, s.err
}

func (s *stubBackend) SendAlert(_ context.Context, _ string, alert backend.Alert) (string, error) {
	s.calls++
	s.lastAlert = alert
	return s.message, s.err
}
