package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"archivist/pkg/archiver"
)

// Severity of a run notification
type Severity int

const (
	SeverityOK Severity = iota
	SeverityPartial
	SeverityAborted
)

// maxNamedCreators caps how many failed creators a notification names
const maxNamedCreators = 3

// RunNotification is the desktop summary of one finished run
type RunNotification struct {
	Title    string
	Body     string
	Severity Severity
}

// SummarizeRun condenses a tally into a notification. An aborted run
// carries the abort reason; a run with failures names the creators that
// failed.
func SummarizeRun(t *archiver.Tally) RunNotification {
	totals := t.Totals()
	counts := fmt.Sprintf("%d synced, %d files", totals.Synced, totals.Files)
	if !t.Finished.IsZero() {
		counts += " in " + formatDuration(t.Finished.Sub(t.Started))
	}

	if t.Err != nil {
		return RunNotification{
			Title:    fmt.Sprintf("%s sync aborted", t.Platform),
			Body:     t.Err.Error() + "\n" + counts + " before stopping",
			Severity: SeverityAborted,
		}
	}

	failed := failedCreatorNames(t)
	if totals.Failed == 0 && len(failed) == 0 {
		if totals.Synced == 0 {
			counts = "everything up to date"
		}
		return RunNotification{
			Title:    fmt.Sprintf("%s sync finished", t.Platform),
			Body:     counts,
			Severity: SeverityOK,
		}
	}

	lines := []string{counts}
	if totals.Failed > 0 {
		lines = append(lines, fmt.Sprintf("%d posts failed", totals.Failed))
	}
	if len(failed) > 0 {
		lines = append(lines, "failed: "+joinNames(failed))
	}
	return RunNotification{
		Title:    fmt.Sprintf("%s sync finished with errors", t.Platform),
		Body:     strings.Join(lines, "\n"),
		Severity: SeverityPartial,
	}
}

func failedCreatorNames(t *archiver.Tally) []string {
	var names []string
	for _, c := range t.Creators {
		if c.Err == nil {
			continue
		}
		name := c.Creator.DisplayName
		if name == "" {
			name = c.Creator.ID
		}
		names = append(names, name)
	}
	return names
}

func joinNames(names []string) string {
	if len(names) <= maxNamedCreators {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:maxNamedCreators], ", "), len(names)-maxNamedCreators)
}

// Sender delivers a notification outside the terminal
type Sender interface {
	Send(n RunNotification) error
}

// DesktopSender shows notifications with the operating system's tool
type DesktopSender struct {
	goos string
	run  func(name string, args ...string) error
}

// NewDesktopSender returns a sender for goos, or nil when the platform
// has no supported notification tool
func NewDesktopSender(goos string) *DesktopSender {
	switch goos {
	case "linux", "darwin", "windows":
		return &DesktopSender{goos: goos, run: runCommand}
	default:
		return nil
	}
}

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (d *DesktopSender) Send(n RunNotification) error {
	name, args := d.command(n)
	return d.run(name, args...)
}

// command builds the tool invocation for the sender's platform
func (d *DesktopSender) command(n RunNotification) (string, []string) {
	switch d.goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(n.Body), appleScriptString(n.Title))
		return "osascript", []string{"-e", script}
	case "windows":
		script := fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$text = $template.GetElementsByTagName("text")
$text.Item(0).AppendChild($template.CreateTextNode(%s)) | Out-Null
$text.Item(1).AppendChild($template.CreateTextNode(%s)) | Out-Null
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("Archivist").Show([Windows.UI.Notifications.ToastNotification]::new($template))`,
			powerShellString(n.Title), powerShellString(n.Body))
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	default:
		urgency := "normal"
		if n.Severity == SeverityAborted {
			urgency = "critical"
		}
		return "notify-send", []string{"--app-name=archivist", "--urgency=" + urgency, n.Title, n.Body}
	}
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func powerShellString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Notifier reports finished runs on the console and, when a sender is
// set, on the desktop
type Notifier struct {
	out    io.Writer
	sender Sender
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier() *Notifier {
	n := &Notifier{out: os.Stdout}
	if d := NewDesktopSender(runtime.GOOS); d != nil {
		n.sender = d
	}
	return n
}

// NewNotifierWithSender creates a Notifier writing to out and delivering
// through sender
func NewNotifierWithSender(out io.Writer, sender Sender) *Notifier {
	return &Notifier{out: out, sender: sender}
}

// NotifyRun reports the outcome of a finished run. A failed desktop
// delivery is mentioned on the console only.
func (n *Notifier) NotifyRun(t *archiver.Tally) {
	note := SummarizeRun(t)

	title := Green(note.Title)
	switch note.Severity {
	case SeverityPartial:
		title = Yellow(note.Title)
	case SeverityAborted:
		title = Red(note.Title)
	}
	fmt.Fprintf(n.out, "\n%s: %s\n", title, strings.ReplaceAll(note.Body, "\n", "; "))

	if n.sender == nil {
		return
	}
	if err := n.sender.Send(note); err != nil {
		fmt.Fprintln(n.out, Dim("desktop notification failed: "+err.Error()))
	}
}
