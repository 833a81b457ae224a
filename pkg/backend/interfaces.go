package backend

import (
	"context"
	"io"
	"time"

	"github.com/goliatone/go-datainsight/components/insight"
)

// AuthClient authenticates users and updates their profile.
type AuthClient interface {
	Login(ctx context.Context, username, password string) (LoginResult, error)
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (ProfileResult, error)
}

// UserClient manages backend user accounts.
type UserClient interface {
	ListUsers(ctx context.Context, token string) ([]User, error)
	CreateUser(ctx context.Context, token string, user NewUser) (string, error)
	DeleteUser(ctx context.Context, token string, id int) (string, error)
}

// DataClient uploads files and fetches the persisted dataset.
type DataClient interface {
	Upload(ctx context.Context, token string, upload Upload) (UploadResult, error)
	FetchData(ctx context.Context, token string) (insight.Dataset, error)
}

// AlertClient sends e-mail alerts through the backend.
type AlertClient interface {
	SendAlert(ctx context.Context, token string, alert Alert) (string, error)
}

// Client is a convenience union for services that implement every backend call.
type Client interface {
	AuthClient
	UserClient
	DataClient
	AlertClient
}

// Observer receives one observation per backend request.
type Observer interface {
	ObserveRequest(operation, outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, string, time.Duration) {}

// LoginResult is a successful authentication.
type LoginResult struct {
	Token string
	Role  string
}

// ProfileUpdate changes the username and/or password of the token owner.
type ProfileUpdate struct {
	CurrentPassword string
	NewUsername     string
	NewPassword     string
}

// ProfileResult carries the backend message and, when the username changed, a new token.
type ProfileResult struct {
	Message string
	Token   string
}

// User is a backend account.
type User struct {
	ID       int    `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Role     string `json:"role" yaml:"role"`
}

// NewUser is the payload for account creation.
type NewUser struct {
	Username string
	Password string
	Role     string
}

// Upload is a file sent to the backend. Progress, when set, is called with
// the bytes sent so far and the total request size.
type Upload struct {
	FileName string
	Body     io.Reader
	Progress func(sent, total int64)
}

// UploadResult is the parsed upload response.
type UploadResult struct {
	Message string
	Dataset insight.Dataset
}

// Alert is an e-mail notification request.
type Alert struct {
	Recipient string
	Subject   string
	Message   string
}
