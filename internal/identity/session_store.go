package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Session is the persisted sign-in state.
type Session struct {
	Principal    Principal `json:"principal"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the session holds a principal and a refresh token.
func (s Session) Valid() bool {
	return s.Principal.UID != "" && s.RefreshToken != ""
}

// SessionStore abstracts persistence for the signed-in session.
type SessionStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// FileSessionStore writes the session to a JSON file guarded by a sibling
// lock file.
type FileSessionStore struct {
	path string
	lock *flock.Flock
}

// NewFileSessionStore builds a FileSessionStore at path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path, lock: flock.New(path + ".lock")}
}

// Load reads the session. A missing file resolves to an empty session.
func (s *FileSessionStore) Load() (Session, error) {
	if err := s.ensureDir(); err != nil {
		return Session{}, err
	}
	if err := s.lock.RLock(); err != nil {
		return Session{}, fmt.Errorf("lock session: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// Save persists the session with owner-only permissions.
func (s *FileSessionStore) Save(session Session) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer s.lock.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear removes the persisted session.
func (s *FileSessionStore) Clear() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (s *FileSessionStore) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("ensure session directory: %w", err)
	}
	return nil
}
