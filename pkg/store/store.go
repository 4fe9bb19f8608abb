// Package store persists projects and master sources as plain JSON files.
// It implements the persistence gateway the form layer submits to, the
// region-partitioned master source files, and the recent-project registry.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a record id resolves to no file.
var ErrNotFound = errors.New("store: record not found")

// Gateway is the persistence contract the form layer submits through. Save
// is only ever called with a payload that passed form validation; Load's
// result is only ever used as initial values for a new form.
type Gateway interface {
	Save(ctx context.Context, typeCode string, payload map[string]any) (string, error)
	Load(ctx context.Context, typeCode, id string) (map[string]any, error)
}

// writeJSON writes v as indented JSON via a temp file and rename, so
// readers never observe a half-written document.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
