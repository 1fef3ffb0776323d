// Package auth stores the API key a client presents to the feed server.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const credFileName = "credentials.json"

type Credentials struct {
	APIKey    string    `json:"api_key"`
	Server    string    `json:"server,omitempty"` // server the key was saved for
	CreatedAt time.Time `json:"created_at"`
}

// Store reads and writes credentials.json inside Dir.
type Store struct {
	Dir string
}

func (s Store) path() string { return filepath.Join(s.Dir, credFileName) }

// Get returns the saved credentials, or nil when none are saved. A key
// from the environment arrives through config.Config.APIKey instead.
func (s Store) Get() (*Credentials, error) {
	b, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // not logged in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	c.APIKey = stripBearer(c.APIKey)
	return &c, nil
}

// Set saves key for server.
func (s Store) Set(key, server string) error {
	key = stripBearer(strings.TrimSpace(key))
	if key == "" {
		return fmt.Errorf("empty api key")
	}
	// owner-only directory and file
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	c := Credentials{
		APIKey:    key,
		Server:    server,
		CreatedAt: time.Now().UTC(),
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(s.path(), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the saved file. A missing file is fine.
func (s Store) Delete() error {
	if err := os.Remove(s.path()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Mask shows only the last four characters of a key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
