// Package session keeps the authenticated identity of dashboard users: server
// side stores keyed by a cookie id, and a local file for the CLI.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = errors.New("session: not found")

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is the stored identity. A non-empty token means the user logged in;
// token expiry is enforced by the backend only.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"`
	Role      string    `json:"role,omitempty"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Flash     *Flash    `json:"flash,omitempty"`
}

// New creates an anonymous session with a fresh id.
func New() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s != nil && strings.TrimSpace(s.Token) != ""
}

// SignIn stores the login outcome.
func (s *Session) SignIn(token, role, username string) {
	s.Token = token
	s.Role = role
	s.Username = username
}

// Rotate returns a copy of the session under a fresh id. Callers persist the
// copy and delete the old id so a cookie issued before sign-in stops working.
func (s *Session) Rotate() *Session {
	fresh := New()
	fresh.Token = s.Token
	fresh.Role = s.Role
	fresh.Username = s.Username
	if s.Flash != nil {
		flash := *s.Flash
		fresh.Flash = &flash
	}
	return fresh
}

// SignOut clears the identity but keeps the id.
func (s *Session) SignOut() {
	s.Token = ""
	s.Role = ""
	s.Username = ""
}

// SetFlash queues a message for the next page.
func (s *Session) SetFlash(kind, message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	s.Flash = &Flash{Kind: kind, Message: message}
}

// PopFlash returns and clears the queued message.
func (s *Session) PopFlash() *Flash {
	f := s.Flash
	s.Flash = nil
	return f
}

// Store persists sessions by id.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}
