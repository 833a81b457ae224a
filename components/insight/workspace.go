package insight

import (
	"sync"
	"time"
)

// Workspace is the dashboard state of one browser session: the loaded
// dataset, the sort state and the map canvas. Callers never touch the fields
// directly; the Controller reads and mutates them under the lock.
type Workspace struct {
	mu       sync.Mutex
	id       string
	dataset  Dataset
	sort     SortState
	canvas   *MapCanvas
	loaded   bool
	loadedAt time.Time
	touched  time.Time
}

// NewWorkspace creates an empty workspace.
func NewWorkspace(id string) *Workspace {
	return &Workspace{id: id, touched: time.Now()}
}

// ID returns the owning session id.
func (w *Workspace) ID() string {
	return w.id
}

// Loaded reports whether a dataset was ever loaded into the workspace.
func (w *Workspace) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Dataset returns a deep copy of the current dataset.
func (w *Workspace) Dataset() Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dataset.Clone()
}

// Sort returns the current sort state.
func (w *Workspace) Sort() SortState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sort
}

func (w *Workspace) mapCanvas() *MapCanvas {
	if w.canvas == nil {
		w.canvas = NewMapCanvas()
	}
	return w.canvas
}

// WorkspaceRegistry owns the workspaces of all live sessions.
type WorkspaceRegistry struct {
	mu    sync.Mutex
	items map[string]*Workspace
}

// NewWorkspaceRegistry creates an empty registry.
func NewWorkspaceRegistry() *WorkspaceRegistry {
	return &WorkspaceRegistry{items: make(map[string]*Workspace)}
}

// Get returns the workspace for id, creating it on first use.
func (r *WorkspaceRegistry) Get(id string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.items[id]
	if !ok {
		ws = NewWorkspace(id)
		r.items[id] = ws
	}
	ws.mu.Lock()
	ws.touched = time.Now()
	ws.mu.Unlock()
	return ws
}

// Drop discards the workspace for id.
func (r *WorkspaceRegistry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Len reports the number of live workspaces.
func (r *WorkspaceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Evict drops workspaces idle for longer than ttl and returns how many were removed.
func (r *WorkspaceRegistry) Evict(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, ws := range r.items {
		ws.mu.Lock()
		idle := ws.touched.Before(cutoff)
		ws.mu.Unlock()
		if idle {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}
