package jsonstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/basket/internal/model"
)

func TestLoadMissingFile(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, doc.Items)
	assert.NotNil(t, doc.Items)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", DefaultFileName)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, Save(path, Document{
		Room:       "global",
		ExportedAt: at,
		Items:      model.Snapshot{"a": model.NewStoredItem("milk", 2, 5)},
	}))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "global", doc.Room)
	assert.True(t, at.Equal(doc.ExportedAt))
	assert.Equal(t, []model.ListItem{{ID: "a", Text: "milk", Quantity: 2, CreatedAt: 5}}, model.Reconcile(doc.Items))
}

func TestLoadToleratesHandEditedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"room":"r","items":{"x":{"text":"bread","quantity":"2"}}}`), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, model.Normalize("x", doc.Items["x"]).Quantity)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
