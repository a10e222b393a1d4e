package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"archivist/pkg/archiver"
	"archivist/pkg/model"
)

// Message types for the TUI

// CreatorStartMsg is sent when a creator's pass begins
type CreatorStartMsg struct {
	Creator model.Creator
}

// PostsQueuedMsg is sent once the changed posts of a creator are known
type PostsQueuedMsg struct {
	CreatorID string
	Count     int
}

// PostDoneMsg is sent for every fetched post
type PostDoneMsg struct {
	CreatorID  string
	SourceLink string
	Error      error
}

// CreatorFinishedMsg is sent when a creator's pass ends
type CreatorFinishedMsg struct {
	Tally archiver.CreatorTally
}

// RunFinishedMsg is sent when the run returns
type RunFinishedMsg struct {
	Error error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case CreatorStartMsg:
		m.StartCreator(msg.Creator)
		m.AddLogMessage("INFO", "Syncing "+msg.Creator.ID)
		return m, nil

	case PostsQueuedMsg:
		m.QueuePosts(msg.CreatorID, msg.Count)
		if msg.Count == 0 {
			m.AddLogMessage("INFO", msg.CreatorID+" is up to date")
		}
		return m, nil

	case PostDoneMsg:
		m.FinishPost(msg.CreatorID, msg.Error)
		if msg.Error != nil {
			m.AddLogMessage("ERROR", "Failed: "+msg.SourceLink+" - "+msg.Error.Error())
		}
		return m, nil

	case CreatorFinishedMsg:
		m.FinishCreator(msg.Tally)
		if msg.Tally.Err != nil {
			m.AddLogMessage("ERROR", msg.Tally.Creator.ID+": "+msg.Tally.Err.Error())
		} else if msg.Tally.Synced > 0 {
			m.AddLogMessage("SUCCESS", fmt.Sprintf("%s: %d posts, %d files", msg.Tally.Creator.ID, msg.Tally.Synced, msg.Tally.Files))
		}
		return m, nil

	case RunFinishedMsg:
		m.FinishRun(msg.Error)
		if msg.Error != nil {
			m.AddLogMessage("ERROR", "Run aborted: "+msg.Error.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Run finished, press q to exit")
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
