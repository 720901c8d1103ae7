package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// TokenFile persists the bearer token between notesctl invocations.
type TokenFile struct {
	Path string
}

func DefaultTokenFile() (TokenFile, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return TokenFile{}, fmt.Errorf("error locating config dir: %w", err)
	}
	return TokenFile{Path: filepath.Join(dir, "notesctl", "token")}, nil
}

// Load returns the saved token, or ErrNotLoggedIn when there is none.
func (f TokenFile) Load() (string, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", fmt.Errorf("error reading token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}

func (f TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("error creating token dir: %w", err)
	}
	if err := atomic.WriteFile(f.Path, strings.NewReader(token)); err != nil {
		return fmt.Errorf("error writing token: %w", err)
	}
	return os.Chmod(f.Path, 0o600)
}

func (f TokenFile) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing token: %w", err)
	}
	return nil
}
