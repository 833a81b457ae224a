package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// LocalStorage keeps the CLI session in a private file, the terminal
// counterpart of browser local storage.
type LocalStorage struct {
	path string
}

// DefaultLocalPath returns $XDG_CONFIG_HOME/datainsight/session.json or the
// platform equivalent.
func DefaultLocalPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("session: config dir: %w", err)
	}
	return filepath.Join(dir, "datainsight", "session.json"), nil
}

// NewLocalStorage stores the session at path.
func NewLocalStorage(path string) *LocalStorage {
	return &LocalStorage{path: path}
}

// Path returns the backing file.
func (l *LocalStorage) Path() string {
	return l.path
}

// Load reads the stored session. A missing file yields ErrNotFound.
func (l *LocalStorage) Load() (*Session, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", l.path, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", l.path, err)
	}
	return &s, nil
}

// Save writes the session with owner-only permissions.
func (l *LocalStorage) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("session: replace %s: %w", l.path, err)
	}
	return nil
}

// Clear removes the stored session. Clearing twice is not an error.
func (l *LocalStorage) Clear() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", l.path, err)
	}
	return nil
}
