package insight

import (
	"errors"
	"sync"
)

// ErrRequestInFlight is returned when the same logical action is already running.
var ErrRequestInFlight = errors.New("insight: request already in flight")

// Action names a logical user action guarded against concurrent duplicates.
type Action string

const (
	ActionLogin      Action = "login"
	ActionUpload     Action = "upload"
	ActionReload     Action = "reload"
	ActionProfile    Action = "profile"
	ActionCreateUser Action = "create_user"
	ActionDeleteUser Action = "delete_user"
	ActionAlert      Action = "alert"
	ActionExport     Action = "export"
)

// InFlight rejects a second start of an action while the first is running.
type InFlight struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewInFlight creates an empty guard.
func NewInFlight() *InFlight {
	return &InFlight{running: make(map[string]struct{})}
}

// Begin marks (scope, action) as running and returns the release func. It
// fails with ErrRequestInFlight when the pair is already running.
func (g *InFlight) Begin(scope string, action Action) (func(), error) {
	key := scope + "|" + string(action)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[key]; busy {
		return nil, ErrRequestInFlight
	}
	g.running[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, key)
			g.mu.Unlock()
		})
	}, nil
}

// Running reports whether (scope, action) is currently running.
func (g *InFlight) Running(scope string, action Action) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.running[scope+"|"+string(action)]
	return busy
}
