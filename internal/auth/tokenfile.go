package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenFile persists the bearer token across runs. The file is created with
// mode 0600 under a 0700 directory; the token is the entire file content.
type TokenFile struct {
	path string
}

// NewTokenFile creates a token store backed by the given file path.
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Path returns the backing file path.
func (t *TokenFile) Path() string {
	return t.path
}

// Load reads the persisted token. A missing file is not an error; it simply
// means no token has been stored.
func (t *TokenFile) Load() (string, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token to disk, creating parent directories as needed.
func (t *TokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	if err := os.WriteFile(t.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Clear removes the persisted token. Idempotent.
func (t *TokenFile) Clear() error {
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
