package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Makepad-fr/basket/internal/model"
)

// JSON export of a single room. Single file, human-readable, portable.
// Used by `basket export` / `basket import`; the live data stays in the
// feed server's store.

const DefaultFileName = "basket.json"

// Document is the file layout.
type Document struct {
	Room       string         `json:"room"`
	ExportedAt time.Time      `json:"exported_at"`
	Items      model.Snapshot `json:"items"`
}

// Load reads a document. A missing file is an empty document.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Document{Items: model.Snapshot{}}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if doc.Items == nil {
		doc.Items = model.Snapshot{}
	}
	return &doc, nil
}

// Save writes doc to path, creating parent directories.
func Save(path string, doc Document) error {
	if doc.Items == nil {
		doc.Items = model.Snapshot{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
