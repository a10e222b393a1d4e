package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// palette is the set of colors one platform's view is drawn with
type palette struct {
	accent  lipgloss.Color
	frame   lipgloss.Color
	ok      lipgloss.Color
	warn    lipgloss.Color
	fail    lipgloss.Color
	text    lipgloss.Color
	muted   lipgloss.Color
	bg      lipgloss.Color
	panelBg lipgloss.Color
}

var palettes = map[string]palette{
	"fanbox": {
		accent: "#F5C400", frame: "#0096FA", ok: "#5BD96B", warn: "#FF9F1C",
		fail: "#FF4D4D", text: "#D8DEE9", muted: "#6B7280", bg: "#0B1220", panelBg: "#111A2E",
	},
	"patreon": {
		accent: "#FF424D", frame: "#F2F0EB", ok: "#4ADE80", warn: "#FBBF24",
		fail: "#F43F5E", text: "#E7E5E4", muted: "#78716C", bg: "#141210", panelBg: "#1F1B18",
	},
}

var defaultPalette = palette{
	accent: "#00D7FF", frame: "#AF87FF", ok: "#5FD75F", warn: "#FFAF00",
	fail: "#FF5F5F", text: "#BCBCBC", muted: "#626262", bg: "#121212", panelBg: "#1C1C1C",
}

// theme holds the styles derived from a palette
type theme struct {
	palette

	base    lipgloss.Style
	logo    lipgloss.Style
	panel   lipgloss.Style
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	active  lipgloss.Style
	done    lipgloss.Style
	stamp   lipgloss.Style
	message lipgloss.Style
	muted   lipgloss.Style
	help    lipgloss.Style
}

func newTheme(platform string) theme {
	p, ok := palettes[platform]
	if !ok {
		p = defaultPalette
	}

	bold := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}

	return theme{
		palette: p,
		base:    lipgloss.NewStyle().Background(p.bg).Foreground(p.text),
		logo:    bold(p.accent).Padding(1, 0).Align(lipgloss.Center),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.frame).
			Background(p.panelBg).
			Padding(1, 2),
		title:   bold(p.bg).Background(p.accent).Padding(0, 1),
		label:   bold(p.frame),
		value:   lipgloss.NewStyle().Foreground(p.accent),
		ok:      bold(p.ok),
		fail:    bold(p.fail),
		warn:    bold(p.warn),
		active:  bold(p.ok),
		done:    lipgloss.NewStyle().Foreground(p.text).Faint(true).PaddingLeft(2),
		stamp:   lipgloss.NewStyle().Foreground(p.muted),
		message: lipgloss.NewStyle().Foreground(p.text),
		muted:   lipgloss.NewStyle().Foreground(p.muted),
		help:    lipgloss.NewStyle().Foreground(p.muted).Padding(1, 0, 0, 2),
	}
}

// levelColor is the color of a log level tag
func (t theme) levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return t.palette.fail
	case "WARN":
		return t.palette.warn
	case "SUCCESS":
		return t.palette.ok
	case "INFO":
		return t.frame
	default:
		return t.palette.muted
	}
}
