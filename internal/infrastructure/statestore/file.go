package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kirillkom/adaptive-retrieval/internal/core/ports"
)

// FileStore persists the bandit snapshot as a single JSON document. Writes
// go through a temp file and rename so a crash mid-flush never leaves a
// torn state on disk.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Load reads the snapshot. A missing or corrupt file yields an empty
// snapshot and nil error: bandit persistence is advisory.
func (f *FileStore) Load(_ context.Context) (ports.StatsSnapshot, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ports.StatsSnapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bandit state: %w", err)
	}

	var snapshot ports.StatsSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		f.logger.Warn("bandit state file corrupt, starting empty", "path", f.path, "error", err)
		return ports.StatsSnapshot{}, nil
	}
	if snapshot == nil {
		snapshot = ports.StatsSnapshot{}
	}
	return snapshot, nil
}

func (f *FileStore) Save(_ context.Context, snapshot ports.StatsSnapshot) error {
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bandit state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bandit-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write bandit state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bandit state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace bandit state: %w", err)
	}
	return nil
}
