package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Session is the identity the agent persists between runs, so a restart
// resumes reporting without a fresh login.
type Session struct {
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName"`
	Role        string `json:"role"`
}

// Store reads and writes the session file. Writes are atomic (tmp + rename)
// so a crash mid-write never leaves a torn file behind.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath places the session file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "presence-agent", "session.json"), nil
}

// Load returns the stored session and whether one exists. A missing file is
// not an error; a corrupt one is.
func (s *Store) Load() (Session, bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("read session: %w", err)
	}
	var out Session
	if err := json.Unmarshal(b, &out); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	if out.SubjectID == "" {
		return Session{}, false, fmt.Errorf("session file %s has no subject id", s.path)
	}
	return out, true, nil
}

func (s *Store) Save(sess Session) error {
	if sess.SubjectID == "" {
		return errors.New("refusing to save session without subject id")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Clear removes the session file; clearing an absent session is a no-op.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
