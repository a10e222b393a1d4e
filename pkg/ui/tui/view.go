package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const logo = `
 ▄▀█ █▀█ █▀▀ █ █ █ █ █ █ █▀ ▀█▀
 █▀█ █▀▄ █▄▄ █▀█ █ ▀▄▀ █ ▄█  █ `

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.theme.logo.Width(m.width).Render(logo))

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderActivePanel(width),
		m.renderFinishedPanel(width),
	)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", m.renderLogsPanel(width)))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, m.theme.help.Render("Press ? for help"))
	}

	return m.theme.base.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	creators, synced, failed, files := m.Stats()

	m.mu.RLock()
	defer m.mu.RUnlock()

	title := m.theme.title.Render(" " + strings.ToUpper(m.platform) + " SYNC ")

	stats := []string{
		fmt.Sprintf("%s %s", m.theme.label.Render("Session Time:"), m.theme.value.Render(formatDuration(time.Since(m.sessionStartTime)))),
		fmt.Sprintf("%s %s", m.theme.label.Render("Creators:"), m.theme.value.Render(fmt.Sprint(creators))),
		fmt.Sprintf("%s %s", m.theme.label.Render("Posts Synced:"), m.theme.value.Render(fmt.Sprint(synced))),
		fmt.Sprintf("%s %s", m.theme.label.Render("Files:"), m.theme.value.Render(fmt.Sprint(files))),
	}
	if failed > 0 {
		stats = append(stats, m.theme.fail.Render(fmt.Sprintf("%d posts failed", failed)))
	}
	switch {
	case m.finished && m.runErr != nil:
		stats = append(stats, m.theme.fail.Render("ABORTED"))
	case m.finished:
		stats = append(stats, m.theme.ok.Render("✓ DONE"))
	}

	return m.theme.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderActivePanel(width int) string {
	title := m.theme.title.Render(" CURRENT CREATOR ")

	row := m.ActiveRow()
	if row == nil {
		content := m.theme.muted.Render("Waiting...")
		return m.theme.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	info := fmt.Sprintf("%s %s %s",
		m.spinner.View(),
		m.theme.active.Render(row.Name),
		m.theme.muted.Render(fmt.Sprintf("%d/%d posts", row.Done, row.Queued)),
	)
	if row.Errors > 0 {
		info += " " + m.theme.fail.Render(fmt.Sprintf("%d errors", row.Errors))
	}

	m.bar.Width = max(10, width-12)
	content := lipgloss.JoinVertical(lipgloss.Left, info, m.bar.ViewAs(row.Fraction()))

	return m.theme.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderFinishedPanel(width int) string {
	title := m.theme.title.Render(" FINISHED ")

	rows := m.FinishedRows()
	if len(rows) == 0 {
		content := m.theme.muted.Render("Nothing yet")
		return m.theme.panel.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	// newest last, at most eight lines
	start := max(0, len(rows)-8)
	var items []string
	if start > 0 {
		items = append(items, m.theme.muted.Render(fmt.Sprintf("  ... %d earlier", start)))
	}
	for _, row := range rows[start:] {
		items = append(items, m.renderFinishedRow(row))
	}

	return m.theme.panel.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderFinishedRow(row *CreatorRow) string {
	if row.State == RowFailed {
		return m.theme.fail.Render("✗ "+row.Name) + " " + m.theme.message.Render(row.Error.Error())
	}
	if row.Synced == 0 {
		return m.theme.done.Render("• " + row.Name + " up to date")
	}
	line := m.theme.ok.Render("✓ "+row.Name) + " " +
		m.theme.message.Render(fmt.Sprintf("%d posts, %d files in %s", row.Synced, row.Files, formatDuration(row.Duration)))
	if row.Errors > 0 {
		line += " " + m.theme.warn.Render(fmt.Sprintf("%d failed", row.Errors))
	}
	return line
}

func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := m.theme.title.Render(" LOG ")

	start := max(0, len(m.logMessages)-15)
	maxMsgLen := max(10, width-25)

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := m.theme.stamp.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		msg := log.Message
		if r := []rune(msg); len(r) > maxMsgLen {
			msg = string(r[:maxMsgLen-3]) + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, m.theme.message.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = m.theme.muted.Render("No logs yet...")
	}

	return m.theme.panel.Width(width).Height(max(5, m.height-12)).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit (a running sync is cancelled)
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status:
    ` + m.theme.ok.Render("✓") + `        - Creator synced
    ` + m.theme.warn.Render("n failed") + ` - Posts that will be retried next run
    ` + m.theme.fail.Render("✗") + `        - Creator pass ended with an error
`

	return m.theme.panel.Width(m.width).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
