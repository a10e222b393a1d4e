// Package diff decides which listed posts need to be fetched again.
package diff

import (
	"context"
	"fmt"
	"time"

	"archivist/pkg/model"
)

// KnownSource returns the persisted updated time for each known source link
type KnownSource interface {
	KnownUpdates(ctx context.Context, links []string) (map[string]time.Time, error)
}

// Filter keeps posts with no known record or with an UpdatedAt strictly
// after the known one. Equal timestamps are treated as unchanged. Order is
// preserved.
func Filter(posts []model.PostSummary, known map[string]time.Time) []model.PostSummary {
	out := make([]model.PostSummary, 0, len(posts))
	for _, p := range posts {
		last, ok := known[p.SourceLink]
		if !ok || p.UpdatedAt.After(last) {
			out = append(out, p)
		}
	}
	return out
}

// Engine diffs listings against a store
type Engine struct {
	Store KnownSource
	// Force skips the store and reports every post as changed
	Force bool
}

// Changed returns the posts that must be fetched
func (e Engine) Changed(ctx context.Context, posts []model.PostSummary) ([]model.PostSummary, error) {
	if e.Force || e.Store == nil || len(posts) == 0 {
		return append([]model.PostSummary(nil), posts...), nil
	}

	links := make([]string, len(posts))
	for i, p := range posts {
		links[i] = p.SourceLink
	}

	known, err := e.Store.KnownUpdates(ctx, links)
	if err != nil {
		return nil, fmt.Errorf("load sync state: %w", err)
	}
	return Filter(posts, known), nil
}

// Stale reports whether the fetched post carries an older updated time
// than its listing entry. Callers persist the listing time in that case so
// the next diff compares against the same clock.
func Stale(post model.Post, summary model.PostSummary) bool {
	return post.UpdatedAt.Before(summary.UpdatedAt)
}

// Reconcile applies Stale, returning post with the listing time when needed
func Reconcile(post model.Post, summary model.PostSummary) model.Post {
	if Stale(post, summary) {
		post.UpdatedAt = summary.UpdatedAt
	}
	return post
}
