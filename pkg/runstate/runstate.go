package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"archivist/pkg/logger"
)

const stateVersion = 1

// State is the persisted summary of one run
type State struct {
	RunID      string         `json:"run_id"`
	Platform   string         `json:"platform"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Creators   []CreatorState `json:"creators"`
	Failures   []FailureState `json:"failures,omitempty"`
	Error      string         `json:"error,omitempty"`
	Version    int            `json:"version"`
}

type CreatorState struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Listed      int    `json:"listed"`
	Skipped     int    `json:"skipped"`
	Unchanged   int    `json:"unchanged"`
	Fetched     int    `json:"fetched"`
	Synced      int    `json:"synced"`
	Failed      int    `json:"failed"`
	Files       int    `json:"files"`
	FilesFailed int    `json:"files_failed"`
	Error       string `json:"error,omitempty"`
}

type FailureState struct {
	Creator    string `json:"creator"`
	SourceLink string `json:"source"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// New starts a state with a fresh run id
func New(platform string) *State {
	return &State{
		RunID:     uuid.NewString(),
		Platform:  platform,
		StartedAt: time.Now(),
		Version:   stateVersion,
	}
}

// Finish stamps the end of the run
func (s *State) Finish() {
	s.FinishedAt = time.Now()
}

// Duration is the wall time of a finished run
func (s *State) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Manager reads and writes the state file of one platform
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager stores state under the user data directory
func NewManager(platform string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(dataDir, platform, log)
}

// NewManagerAt stores state under dir
func NewManagerAt(dir, platform string, log logger.Logger) (*Manager, error) {
	runsDir := filepath.Join(dir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		path:   filepath.Join(runsDir, platform+".last-run.json"),
		logger: log,
	}, nil
}

// Path returns the state file location
func (m *Manager) Path() string {
	return m.path
}

// Load returns the last saved state, or nil when no run was recorded
func (m *Manager) Load() (*State, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open run state: %w", err)
	}
	defer file.Close()

	var state State
	if err := json.NewDecoder(file).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode run state: %w", err)
	}
	return &state, nil
}

// Save writes the state atomically
func (m *Manager) Save(state *State) error {
	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary run state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode run state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync run state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close run state file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace run state file: %w", err)
	}

	m.logger.DebugWithFields("Run state saved", map[string]interface{}{
		"run_id":   state.RunID,
		"platform": state.Platform,
		"path":     m.path,
	})
	return nil
}

// Delete removes the state file
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete run state: %w", err)
	}
	return nil
}

// Exists checks if a run has been recorded
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "archivist")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "archivist")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "archivist")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "archivist")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
