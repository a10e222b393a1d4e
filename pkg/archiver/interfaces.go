package archiver

import (
	"context"

	"archivist/pkg/model"
	"archivist/pkg/storage"
)

// Source is one platform's view of the archive: who to archive, what they
// posted, and the full content of a post.
type Source interface {
	Platform() model.Platform
	// Creators lists the creators selected by the source's filters
	Creators(ctx context.Context) ([]model.Creator, error)
	Posts(ctx context.Context, creator model.Creator) ([]model.PostSummary, error)
	Fetch(ctx context.Context, summary model.PostSummary) (Fetched, error)
}

// Fetched is a downloaded post that has not been converted yet. Resolve
// runs after every fetch of the creator has joined.
type Fetched interface {
	Resolve() (model.Post, error)
}

// FileStore plans and downloads the files of committed posts
type FileStore interface {
	Plan(files []storage.PlannedFile) []storage.Task
	DownloadAll(ctx context.Context, tasks []storage.Task) storage.Report
}

// Progress receives pipeline events as a run advances. Calls come from
// the goroutine driving Run.
type Progress interface {
	CreatorStarted(c model.Creator)
	// PostsQueued reports how many posts of the creator will be fetched
	PostsQueued(creatorID string, n int)
	PostDone(creatorID, sourceLink string, err error)
	CreatorFinished(t CreatorTally)
}

type nopProgress struct{}

func (nopProgress) CreatorStarted(model.Creator) {}
func (nopProgress) PostsQueued(string, int) {}
func (nopProgress) PostDone(string, string, error) {}
func (nopProgress) CreatorFinished(CreatorTally) {}
