package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"archivist/pkg/archiver"
	"archivist/pkg/model"
)

// TUI is a full screen view of a run. It implements archiver.Progress so
// it can be handed to the archiver directly.
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ archiver.Progress = (*TUI)(nil)

// NewTUI creates a new TUI instance
func NewTUI(platform string, opts ...tea.ProgramOption) *TUI {
	m := NewModel(platform)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)

	return &TUI{
		program: tea.NewProgram(&m, opts...),
		model:   &m,
	}
}

// Start runs the TUI until the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) CreatorStarted(c model.Creator) {
	t.Send(CreatorStartMsg{Creator: c})
}

func (t *TUI) PostsQueued(creatorID string, n int) {
	t.Send(PostsQueuedMsg{CreatorID: creatorID, Count: n})
}

func (t *TUI) PostDone(creatorID, sourceLink string, err error) {
	t.Send(PostDoneMsg{CreatorID: creatorID, SourceLink: sourceLink, Error: err})
}

func (t *TUI) CreatorFinished(ct archiver.CreatorTally) {
	t.Send(CreatorFinishedMsg{Tally: ct})
}

// Finish reports the end of the run; the view stays up until quit
func (t *TUI) Finish(err error) {
	t.Send(RunFinishedMsg{Error: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
