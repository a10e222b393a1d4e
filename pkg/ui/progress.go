package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"archivist/pkg/archiver"
	"archivist/pkg/model"
)

// ProgressDisplay renders a single updating line per creator
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	creator   string
	total     int
	done      int
	errors    int
	startTime time.Time
	isDebug   bool
}

// NewProgressDisplay creates a display writing to out. In debug mode every
// post gets its own line instead of the progress bar.
func NewProgressDisplay(out io.Writer, debug bool) *ProgressDisplay {
	return &ProgressDisplay{out: out, isDebug: debug}
}

var _ archiver.Progress = (*ProgressDisplay)(nil)

func (p *ProgressDisplay) CreatorStarted(c model.Creator) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.creator = c.DisplayName
	if p.creator == "" {
		p.creator = c.ID
	}
	p.total, p.done, p.errors = 0, 0, 0
	p.startTime = time.Now()
	fmt.Fprintf(p.out, "%s %s\n", Magenta("→"), Cyan(p.creator))
}

func (p *ProgressDisplay) PostsQueued(creatorID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = n
	if n > 0 && !p.isDebug {
		p.printProgress()
	}
}

func (p *ProgressDisplay) PostDone(creatorID, sourceLink string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if err != nil {
		p.errors++
	}
	if !p.isDebug {
		p.printProgress()
		return
	}
	if err != nil {
		fmt.Fprintf(p.out, "  %s %s - %v\n", Red("✗"), sourceLink, err)
	} else {
		fmt.Fprintf(p.out, "  %s %s\n", Green("✓"), sourceLink)
	}
}

func (p *ProgressDisplay) CreatorFinished(t archiver.CreatorTally) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 && !p.isDebug {
		fmt.Fprintln(p.out)
	}
	switch {
	case t.Err != nil:
		fmt.Fprintf(p.out, "  %s %v\n", Red("✗"), t.Err)
	case t.Synced == 0 && t.Failed == 0:
		fmt.Fprintf(p.out, "  %s up to date\n", Dim("•"))
	default:
		fmt.Fprintf(p.out, "  %s %d posts, %d files in %s\n",
			Green("✓"), t.Synced, t.Files, formatDuration(time.Since(p.startTime)))
	}
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress() {
	fmt.Fprint(p.out, "\r"+p.progressLine())
}

func (p *ProgressDisplay) progressLine() string {
	const barWidth = 20
	filled := 0
	if p.total > 0 {
		filled = min(barWidth, p.done*barWidth/p.total)
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("  [%s] %d/%d • %s", bar, p.done, p.total, p.calculateETA())
	if p.errors > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", p.errors))
	}
	return line
}

// calculateETA estimates time remaining for the current creator
func (p *ProgressDisplay) calculateETA() string {
	if p.done == 0 {
		return "calculating..."
	}
	if p.done >= p.total {
		return "done"
	}
	perPost := time.Since(p.startTime) / time.Duration(p.done)
	return formatDuration(perPost * time.Duration(p.total-p.done))
}
