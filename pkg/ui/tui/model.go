package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"archivist/pkg/archiver"
	"archivist/pkg/model"
)

// RowState is where a creator is in the run
type RowState int

const (
	RowActive RowState = iota
	RowDone
	RowFailed
)

// CreatorRow is the live view of one creator's pass
type CreatorRow struct {
	ID        string
	Name      string
	Queued    int
	Done      int
	Errors    int
	Synced    int
	Unchanged int
	Files     int
	State     RowState
	StartTime time.Time
	Duration  time.Duration
	Error     error
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner spinner.Model
	bar     progress.Model

	platform string
	theme    theme

	// Creator state
	rows  map[string]*CreatorRow
	order []string

	// Stats
	totalSynced      int
	totalFailed      int
	totalFiles       int
	sessionStartTime time.Time
	finished         bool
	runErr           error

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model for a run against platform
func NewModel(platform string) Model {
	th := newTheme(platform)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(th.accent)

	return Model{
		spinner:          s,
		bar:              progress.New(progress.WithGradient(string(th.frame), string(th.accent))),
		platform:         platform,
		theme:            th,
		rows:             make(map[string]*CreatorRow),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// StartCreator adds a row for c and makes it the active one
func (m *Model) StartCreator(c model.Creator) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := c.DisplayName
	if name == "" {
		name = c.ID
	}
	if _, ok := m.rows[c.ID]; !ok {
		m.order = append(m.order, c.ID)
	}
	m.rows[c.ID] = &CreatorRow{ID: c.ID, Name: name, State: RowActive, StartTime: time.Now()}
}

// QueuePosts records how many posts the creator will fetch
func (m *Model) QueuePosts(creatorID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[creatorID]; ok {
		row.Queued = n
	}
}

// FinishPost counts one fetched post
func (m *Model) FinishPost(creatorID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.rows[creatorID]; ok {
		row.Done++
		if err != nil {
			row.Errors++
		}
	}
}

// FinishCreator closes the creator's row with its final counts
func (m *Model) FinishCreator(t archiver.CreatorTally) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[t.Creator.ID]
	if !ok {
		return
	}
	row.Synced = t.Synced
	row.Unchanged = t.Unchanged
	row.Files = t.Files
	row.Duration = t.Duration
	row.Error = t.Err
	row.State = RowDone
	if t.Err != nil {
		row.State = RowFailed
	}

	m.totalSynced += t.Synced
	m.totalFailed += t.Failed
	m.totalFiles += t.Files
}

// FinishRun marks the whole run as over
func (m *Model) FinishRun(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finished = true
	m.runErr = err
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   m.theme.levelColor(level),
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// ActiveRow returns the creator being synced, or nil between creators
func (m *Model) ActiveRow() *CreatorRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.order) - 1; i >= 0; i-- {
		if row := m.rows[m.order[i]]; row.State == RowActive {
			return row
		}
	}
	return nil
}

// FinishedRows returns done and failed rows in run order
func (m *Model) FinishedRows() []*CreatorRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*CreatorRow
	for _, id := range m.order {
		if row := m.rows[id]; row.State != RowActive {
			out = append(out, row)
		}
	}
	return out
}

// Stats returns the running totals
func (m *Model) Stats() (creators, synced, failed, files int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), m.totalSynced, m.totalFailed, m.totalFiles
}

// Fraction is the share of the row's queued posts already fetched
func (r *CreatorRow) Fraction() float64 {
	if r.Queued == 0 {
		return 0
	}
	return min(1, float64(r.Done)/float64(r.Queued))
}
