package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"archivist/pkg/archiver"
	"archivist/pkg/runstate"
)

// ASCIILogo is printed at the start of interactive runs
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════════╗
    ║  █████╗ ██████╗  ██████╗██╗  ██╗██╗██╗   ██╗██╗███████╗   ║
    ║ ██╔══██╗██╔══██╗██╔════╝██║  ██║██║██║   ██║██║██╔════╝   ║
    ║ ███████║██████╔╝██║     ███████║██║██║   ██║██║███████╗   ║
    ║ ██╔══██║██╔══██╗██║     ██╔══██║██║╚██╗ ██╔╝██║╚════██║   ║
    ║ ██║  ██║██║  ██║╚██████╗██║  ██║██║ ╚████╔╝ ██║███████║   ║
    ║ ╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═══╝  ╚═╝╚══════╝   ║
    ║           FANBOX / PATREON ARCHIVE UTILITY                ║
    ╚═══════════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// NoColor disables ANSI codes, for logs and pipes
var NoColor = os.Getenv("NO_COLOR") != ""

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if NoColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	fmt.Print(Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Red(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Println(Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(Yellow(msg + ": " + fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Println(Yellow(msg))
	}
}

// PrintTally writes the end-of-run summary: one line per creator, then
// the totals and every failed post.
func PrintTally(w io.Writer, t *archiver.Tally) {
	fmt.Fprintf(w, "\n%s %s run %s\n", Magenta("»"), t.Platform, Dim(t.RunID))

	for _, c := range t.Creators {
		mark := Green("✓")
		if c.Err != nil {
			mark = Red("✗")
		} else if c.Failed > 0 || c.FilesFailed > 0 {
			mark = Yellow("!")
		}
		name := c.Creator.DisplayName
		if name == "" {
			name = c.Creator.ID
		}
		fmt.Fprintf(w, "  %s %-24s %s\n", mark, truncate(name, 24), creatorLine(c.Synced, c.Unchanged, c.Skipped, c.Failed, c.Files, c.FilesFailed))
		if c.Err != nil {
			fmt.Fprintf(w, "    %s\n", Red(c.Err.Error()))
		}
	}

	totals := t.Totals()
	fmt.Fprintf(w, "\n  %s %d creators • %s • %s\n",
		Cyan("Total:"),
		len(t.Creators),
		creatorLine(totals.Synced, totals.Unchanged, totals.Skipped, totals.Failed, totals.Files, totals.FilesFailed),
		formatDuration(t.Finished.Sub(t.Started)),
	)

	if len(t.Failures) > 0 {
		fmt.Fprintf(w, "\n  %s\n", Red(fmt.Sprintf("%d posts failed", len(t.Failures))))
		for _, f := range t.Failures {
			fmt.Fprintf(w, "    %s %s %s\n", Dim("["+f.Stage+"]"), f.SourceLink, Dim(f.Err.Error()))
		}
	}
	if t.Err != nil {
		fmt.Fprintf(w, "\n  %s %v\n", Red("Run aborted:"), t.Err)
	}
}

// PrintRunState writes a saved run in the same layout as PrintTally
func PrintRunState(w io.Writer, s *runstate.State) {
	fmt.Fprintf(w, "%s %s run %s\n", Magenta("»"), s.Platform, Dim(s.RunID))
	fmt.Fprintf(w, "  %s %s (%s)\n", Cyan("Finished:"), s.FinishedAt.Local().Format(time.DateTime), formatDuration(s.Duration()))

	for _, c := range s.Creators {
		mark := Green("✓")
		if c.Error != "" {
			mark = Red("✗")
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		fmt.Fprintf(w, "  %s %-24s %s\n", mark, truncate(name, 24), creatorLine(c.Synced, c.Unchanged, c.Skipped, c.Failed, c.Files, c.FilesFailed))
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "    %s %s %s\n", Dim("["+f.Stage+"]"), f.SourceLink, Dim(f.Error))
	}
	if s.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", Red("Run aborted:"), s.Error)
	}
}

func creatorLine(synced, unchanged, skipped, failed, files, filesFailed int) string {
	parts := []string{
		fmt.Sprintf("%d synced", synced),
		Dim(fmt.Sprintf("%d unchanged", unchanged)),
	}
	if skipped > 0 {
		parts = append(parts, Dim(fmt.Sprintf("%d skipped", skipped)))
	}
	if failed > 0 {
		parts = append(parts, Red(fmt.Sprintf("%d failed", failed)))
	}
	parts = append(parts, fmt.Sprintf("%d files", files))
	if filesFailed > 0 {
		parts = append(parts, Red(fmt.Sprintf("%d files failed", filesFailed)))
	}
	return strings.Join(parts, " • ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
