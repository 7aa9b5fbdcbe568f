package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// stateFormat is bumped whenever State changes incompatibly.
const stateFormat = 1

// ErrStateNotFound is returned when no persisted engine state exists yet.
var ErrStateNotFound = errors.New("workflow engine: state not found")

// StateStore persists the last good configuration between runs.
type StateStore interface {
	Load() (State, error)
	Save(State) error
}

// stateFile is the on-disk envelope around State.
type stateFile struct {
	Format int   `json:"format"`
	State  State `json:"state"`
}

// Repository keeps State as JSON under <stateDir>/engine/state.json.
type Repository struct {
	path string
}

// NewRepository creates a repository rooted at stateDir.
func NewRepository(stateDir string) *Repository {
	return &Repository{path: filepath.Join(stateDir, "engine", "state.json")}
}

// Path returns the file backing the repository.
func (r *Repository) Path() string {
	return r.path
}

// Load reads the persisted state. A file written by a newer format is an
// error rather than a silently empty baseline.
func (r *Repository) Load() (State, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrStateNotFound
		}
		return State{}, fmt.Errorf("workflow engine: read %s: %w", r.path, err)
	}
	var file stateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return State{}, fmt.Errorf("workflow engine: decode %s: %w", r.path, err)
	}
	if file.Format != stateFormat {
		return State{}, fmt.Errorf("workflow engine: %s has state format %d, want %d", r.path, file.Format, stateFormat)
	}
	return file.State, nil
}

// Save replaces the stored state. The file is written beside its final
// location and renamed so a crash never leaves a truncated baseline.
func (r *Repository) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("workflow engine: ensure state dir: %w", err)
	}
	encoded, err := json.MarshalIndent(stateFile{Format: stateFormat, State: state}, "", "  ")
	if err != nil {
		return fmt.Errorf("workflow engine: encode state: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("workflow engine: write state: %w", err)
	}
	return os.Rename(tmp, r.path)
}
