package checkpoint

// ============================================================================
// Responsibilities:
// 1. Persist the progress of a run (completed epochs) as a JSON file
// 2. Atomic write (temp file + rename) so a crash never leaves a torn file
// 3. Validate the schema version on load
// 4. Let a restarted run continue the same sequence of shuffle orders
// ============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"
)

// ============================================================================
// Errors
// ============================================================================

var (
	ErrCorruptedCheckpoint = errors.New("checkpoint file is corrupted")
	ErrIncompatibleVersion = errors.New("checkpoint schema version is incompatible")
)

const schemaVersion = 1

// ============================================================================
// Data
// ============================================================================

// State is the progress of one run over one file list.
type State struct {
	SchemaVer       int       `json:"schema_version"`
	RunID           string    `json:"run_id"`
	Files           []string  `json:"files"` // file list as configured, unshuffled
	BatchSize       int       `json:"batch_size"`
	TotalSamples    int       `json:"total_samples"`
	CompletedEpochs int       `json:"completed_epochs"` // epochs delivered in full
	UpdatedAt       time.Time `json:"updated_at"`
}

// Matches reports whether s was recorded for the same files and batch size.
func (s State) Matches(files []string, batchSize int) bool {
	return s.BatchSize == batchSize && slices.Equal(s.Files, files)
}

// Manager reads and writes one checkpoint file.
type Manager struct {
	path string
	mu   sync.Mutex // serialises file operations
}

func NewManager(path string) *Manager {
	return &Manager{
		path: path,
	}
}

// Write stores st atomically.
func (m *Manager) Write(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st.SchemaVer = schemaVersion
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	jsonBytes, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmpPath := m.path + ".tmp"

	if err := os.WriteFile(tmpPath, jsonBytes, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	return nil
}

// Load returns the stored state. A missing file yields an empty State with
// zero completed epochs.
func (m *Manager) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st State

	jsonBytes, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			// first run
			return State{SchemaVer: schemaVersion}, nil
		}
		return st, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, &st); err != nil {
		return st, fmt.Errorf("%w: %v", ErrCorruptedCheckpoint, err)
	}

	if st.SchemaVer != schemaVersion {
		return st, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, st.SchemaVer, schemaVersion)
	}
	if st.CompletedEpochs < 0 {
		return st, fmt.Errorf("%w: negative epoch count %d", ErrCorruptedCheckpoint, st.CompletedEpochs)
	}

	return st, nil
}

func (m *Manager) GetPath() string {
	return m.path
}
