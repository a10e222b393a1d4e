package archiver

import (
	"time"

	"archivist/pkg/model"
	"archivist/pkg/runstate"
)

// Stages a post can fail at
const (
	StageFetch   = "fetch"
	StageResolve = "resolve"
	StageStore   = "store"
)

// CreatorTally counts what happened to one creator's posts
type CreatorTally struct {
	Creator model.Creator
	Listed  int
	// Skipped posts were excluded by the post filter
	Skipped int
	// Unchanged posts matched the stored sync record
	Unchanged   int
	Fetched     int
	Synced      int
	Failed      int
	Files       int
	FilesFailed int
	Err         error
	Duration    time.Duration
}

// PostFailure is a post that could not be archived
type PostFailure struct {
	CreatorID  string
	SourceLink string
	Stage      string
	Err        error
}

// Tally is the outcome of a whole run
type Tally struct {
	RunID    string
	Platform model.Platform
	Started  time.Time
	Finished time.Time
	Creators []CreatorTally
	Failures []PostFailure
	Err      error
}

// Totals sums the per-creator counters
func (t *Tally) Totals() CreatorTally {
	var sum CreatorTally
	for _, c := range t.Creators {
		sum.Listed += c.Listed
		sum.Skipped += c.Skipped
		sum.Unchanged += c.Unchanged
		sum.Fetched += c.Fetched
		sum.Synced += c.Synced
		sum.Failed += c.Failed
		sum.Files += c.Files
		sum.FilesFailed += c.FilesFailed
	}
	return sum
}

// FailedCreators counts creators whose pass ended with an error
func (t *Tally) FailedCreators() int {
	n := 0
	for _, c := range t.Creators {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// State converts the tally into its persisted form
func (t *Tally) State() *runstate.State {
	s := &runstate.State{
		RunID:      t.RunID,
		Platform:   string(t.Platform),
		StartedAt:  t.Started,
		FinishedAt: t.Finished,
		Version:    1,
	}
	if t.Err != nil {
		s.Error = t.Err.Error()
	}
	for _, c := range t.Creators {
		cs := runstate.CreatorState{
			ID:          c.Creator.ID,
			Name:        c.Creator.DisplayName,
			Listed:      c.Listed,
			Skipped:     c.Skipped,
			Unchanged:   c.Unchanged,
			Fetched:     c.Fetched,
			Synced:      c.Synced,
			Failed:      c.Failed,
			Files:       c.Files,
			FilesFailed: c.FilesFailed,
		}
		if c.Err != nil {
			cs.Error = c.Err.Error()
		}
		s.Creators = append(s.Creators, cs)
	}
	for _, f := range t.Failures {
		s.Failures = append(s.Failures, runstate.FailureState{
			Creator:    f.CreatorID,
			SourceLink: f.SourceLink,
			Stage:      f.Stage,
			Error:      f.Err.Error(),
		})
	}
	return s
}
