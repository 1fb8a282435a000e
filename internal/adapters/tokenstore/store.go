// Package tokenstore persists the backend bearer token between runs.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type record struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

func New(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Load returns the stored token, or "" when none was saved.
func (s *Store) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return "", fmt.Errorf("decode token %s: %w", s.path, err)
	}
	return r.AccessToken, nil
}

func (s *Store) Save(token string) error {
	if token == "" {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("token dir: %w", err)
	}
	b, err := json.Marshal(record{AccessToken: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := afero.WriteFile(s.fs, s.path, b, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	log.Info().Str("module", "adapters.tokenstore").Str("path", s.path).Msg("token saved")
	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// Token adapts Load to the bearer token callbacks of the rest and signal clients.
func (s *Store) Token() (string, error) { return s.Load() }
