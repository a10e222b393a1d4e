package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"archivist/pkg/archiver"
	"archivist/pkg/model"
)

func TestModel(t *testing.T) {
	m := NewModel("fanbox")

	m.StartCreator(model.Creator{ID: "mofu", DisplayName: "Mofu"})
	m.QueuePosts("mofu", 4)
	m.FinishPost("mofu", nil)
	m.FinishPost("mofu", errors.New("boom"))

	row := m.ActiveRow()
	if row == nil || row.Name != "Mofu" {
		t.Fatalf("expected Mofu to be active, got %+v", row)
	}
	if row.Done != 2 || row.Errors != 1 {
		t.Errorf("expected 2 done and 1 error, got %d and %d", row.Done, row.Errors)
	}
	if row.Fraction() != 0.5 {
		t.Errorf("expected fraction 0.5, got %v", row.Fraction())
	}

	m.FinishCreator(archiver.CreatorTally{Creator: model.Creator{ID: "mofu"}, Synced: 3, Failed: 1, Files: 7})
	if m.ActiveRow() != nil {
		t.Error("expected no active row after the creator finished")
	}

	m.StartCreator(model.Creator{ID: "neko"})
	m.FinishCreator(archiver.CreatorTally{Creator: model.Creator{ID: "neko"}, Err: errors.New("list posts: 500")})

	finished := m.FinishedRows()
	if len(finished) != 2 {
		t.Fatalf("expected 2 finished rows, got %d", len(finished))
	}
	if finished[0].State != RowDone || finished[1].State != RowFailed {
		t.Errorf("unexpected row states %v %v", finished[0].State, finished[1].State)
	}
	if finished[1].Name != "neko" {
		t.Errorf("expected the id as fallback name, got %q", finished[1].Name)
	}

	creators, synced, failed, files := m.Stats()
	if creators != 2 || synced != 3 || failed != 1 || files != 7 {
		t.Errorf("unexpected stats %d %d %d %d", creators, synced, failed, files)
	}
}

func TestLogMessagesAreCapped(t *testing.T) {
	m := NewModel("patreon")
	for i := 0; i < 60; i++ {
		m.AddLogMessage("INFO", "line")
	}
	if len(m.logMessages) != 50 {
		t.Errorf("expected 50 kept messages, got %d", len(m.logMessages))
	}
}

func TestUpdateHandlesRunMessages(t *testing.T) {
	m := NewModel("fanbox")
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(CreatorStartMsg{Creator: model.Creator{ID: "mofu"}})
	m.Update(PostsQueuedMsg{CreatorID: "mofu", Count: 1})
	m.Update(PostDoneMsg{CreatorID: "mofu", SourceLink: "https://mofu.fanbox.cc/posts/1", Error: errors.New("boom")})
	m.Update(CreatorFinishedMsg{Tally: archiver.CreatorTally{Creator: model.Creator{ID: "mofu"}, Failed: 1}})
	m.Update(RunFinishedMsg{})

	if !m.finished {
		t.Error("expected the run to be marked finished")
	}
	var sawFailure bool
	for _, l := range m.logMessages {
		if l.Level == "ERROR" && strings.Contains(l.Message, "posts/1") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("expected the failed post in the log")
	}

	view := m.View()
	if !strings.Contains(view, "FANBOX SYNC") {
		t.Errorf("view is missing the stats title")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("expected q to quit")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{-time.Second, "00:00"},
		{65 * time.Second, "01:05"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04"},
	}

	for _, test := range tests {
		if got := formatDuration(test.d); got != test.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", test.d, got, test.expected)
		}
	}
}

func TestThemeFollowsPlatform(t *testing.T) {
	if got := newTheme("patreon").accent; got != palettes["patreon"].accent {
		t.Errorf("patreon accent = %s", got)
	}
	if got := newTheme("unknown").accent; got != defaultPalette.accent {
		t.Errorf("unknown platform should use the default palette, got %s", got)
	}

	th := newTheme("fanbox")
	if th.levelColor("ERROR") != palettes["fanbox"].fail || th.levelColor("DEBUG") != palettes["fanbox"].muted {
		t.Error("log levels should take the palette colors")
	}

	m := NewModel("fanbox")
	m.AddLogMessage("WARN", "slow")
	if m.logMessages[0].Color != palettes["fanbox"].warn {
		t.Errorf("warn message color = %s", m.logMessages[0].Color)
	}
}
