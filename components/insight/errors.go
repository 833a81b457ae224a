package insight

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
)

// ErrorKind classifies failures by how the UI must present them.
type ErrorKind int

const (
	// KindBusiness is a backend rejection shown as a blocking alert.
	KindBusiness ErrorKind = iota
	// KindAuth is a credential failure shown inline on the login form.
	KindAuth
	// KindNetwork means the backend could not be reached, usually a cold start.
	KindNetwork
	// KindEmpty is a no-op on an empty dataset and is never shown.
	KindEmpty
	// KindInFlight means the same action is already running for the session.
	KindInFlight
	// KindValidation is bad user input caught before calling the backend.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindEmpty:
		return "empty"
	case KindInFlight:
		return "in_flight"
	case KindValidation:
		return "validation"
	default:
		return "business"
	}
}

// ColdStartMessage is shown when the backend is unreachable.
const ColdStartMessage = "The server is waking up... wait 30 seconds and try again."

var (
	// ErrBackendUnavailable marks transport failures reaching the backend.
	ErrBackendUnavailable = errors.New("insight: backend unavailable")
	// ErrUnauthorized marks rejected credentials or tokens.
	ErrUnauthorized = errors.New("insight: unauthorized")
	// ErrValidation marks input rejected before reaching the backend.
	ErrValidation = errors.New("insight: invalid input")
)

// KindError lets packages attach a kind to their own error types.
type KindError interface {
	error
	Kind() ErrorKind
}

// UserMessage is implemented by errors carrying a message safe to show users.
type UserMessage interface {
	UserMessage() string
}

var networkPhrases = []string{
	"failed to fetch",
	"networkerror",
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"server misbehaving",
	"circuit breaker is open",
}

// Classify maps an error onto the presentation taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindBusiness
	}
	var kinded KindError
	switch {
	case errors.Is(err, ErrEmptyDataset):
		return KindEmpty
	case errors.Is(err, ErrRequestInFlight):
		return KindInFlight
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.Is(err, ErrBackendUnavailable):
		return KindNetwork
	case errors.As(err, &kinded):
		return kinded.Kind()
	}
	if isNetworkError(err) {
		return KindNetwork
	}
	return KindBusiness
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range networkPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// Describe returns the message to show for err.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case KindNetwork:
		return ColdStartMessage
	case KindEmpty:
		return ""
	case KindInFlight:
		return "This action is already in progress."
	}
	var um UserMessage
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	return err.Error()
}
