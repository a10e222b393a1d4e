package archiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archivist/pkg/config"
	"archivist/pkg/diff"
	errs "archivist/pkg/errors"
	"archivist/pkg/logger"
	"archivist/pkg/model"
	"archivist/pkg/runstate"
	"archivist/pkg/scheduler"
	"archivist/pkg/storage"
	"archivist/pkg/store"
)

const DefaultLimit = 5

type Options struct {
	Source Source
	Store  *store.Store
	// Files downloads the files of committed posts; nil skips downloads
	Files  FileStore
	Filter config.FilterConfig
	// Diff overrides the default engine backed by Store
	Diff     *diff.Engine
	Limit    int
	Logger   logger.Logger
	RunState *runstate.Manager
	Progress Progress
}

// Archiver runs the sync pipeline for one source
type Archiver struct {
	source   Source
	store    *store.Store
	files    FileStore
	filter   config.FilterConfig
	diff     diff.Engine
	limit    int
	logger   logger.Logger
	runState *runstate.Manager
	progress Progress
}

// New validates opts and builds an Archiver
func New(opts Options) (*Archiver, error) {
	if opts.Source == nil {
		return nil, errors.New("archiver: a source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("archiver: a store is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}

	engine := diff.Engine{Store: opts.Store, Force: opts.Filter.Force}
	if opts.Diff != nil {
		engine = *opts.Diff
	}

	return &Archiver{
		source:   opts.Source,
		store:    opts.Store,
		files:    opts.Files,
		filter:   opts.Filter,
		diff:     engine,
		limit:    opts.Limit,
		logger:   opts.Logger.WithField("platform", string(opts.Source.Platform())),
		runState: opts.RunState,
		progress: opts.Progress,
	}, nil
}

// Run archives every creator of the source in turn. Creators fail
// independently; only an authentication failure or cancellation stops the
// run early. The returned tally is complete up to the point of return.
func (a *Archiver) Run(ctx context.Context) (*Tally, error) {
	state := runstate.New(string(a.source.Platform()))
	tally := &Tally{
		RunID:    state.RunID,
		Platform: a.source.Platform(),
		Started:  state.StartedAt,
	}
	log := a.logger.WithField("run_id", tally.RunID)

	err := a.run(ctx, log, tally)
	tally.Finished = time.Now()
	tally.Err = err

	if a.runState != nil {
		if saveErr := a.runState.Save(tally.State()); saveErr != nil {
			log.WithError(saveErr).Warn("Failed to save run state")
		}
	}

	totals := tally.Totals()
	log.InfoWithFields("Run finished", map[string]interface{}{
		"creators": len(tally.Creators),
		"synced":   totals.Synced,
		"failed":   totals.Failed,
		"files":    totals.Files,
		"duration": tally.Finished.Sub(tally.Started).Round(time.Millisecond),
	})
	return tally, err
}

func (a *Archiver) run(ctx context.Context, log logger.Logger, tally *Tally) error {
	creators, err := a.source.Creators(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list creators")
		return fmt.Errorf("list creators: %w", err)
	}
	log.InfoWithFields("Creators selected", map[string]interface{}{"count": len(creators)})

	for _, c := range creators {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.progress.CreatorStarted(c)
		ct, fatal := a.syncCreator(ctx, log.WithField("creator", c.ID), c, tally)
		tally.Creators = append(tally.Creators, ct)
		a.progress.CreatorFinished(ct)
		if fatal != nil {
			log.WithError(fatal).Error("Run aborted")
			return fatal
		}
	}
	return nil
}

// syncCreator runs one creator's pass. The returned error is non-nil only
// when the whole run must stop.
func (a *Archiver) syncCreator(ctx context.Context, log logger.Logger, c model.Creator, tally *Tally) (CreatorTally, error) {
	start := time.Now()
	ct := CreatorTally{Creator: c}
	defer func() {
		ct.Duration = time.Since(start)
	}()
	logger.LogCreatorStart(log, string(c.Platform), c.ID, c.DisplayName)

	summaries, err := a.source.Posts(ctx, c)
	if err != nil {
		ct.Err = fmt.Errorf("list posts: %w", err)
		log.WithError(err).Error("Failed to list posts")
		return ct, fatalOrNil(err)
	}
	ct.Listed = len(summaries)

	accepted := make([]model.PostSummary, 0, len(summaries))
	for _, s := range summaries {
		if a.filter.AcceptPost(s.FeeRequired, s.IsRestricted) {
			accepted = append(accepted, s)
			continue
		}
		log.DebugWithFields("Post skipped by filter", map[string]interface{}{
			"source":     s.SourceLink,
			"restricted": s.IsRestricted,
			"fee":        s.FeeRequired,
		})
	}
	ct.Skipped = len(summaries) - len(accepted)

	changed, err := a.diff.Changed(ctx, accepted)
	if err != nil {
		ct.Err = fmt.Errorf("diff posts: %w", err)
		log.WithError(err).Error("Failed to diff posts")
		return ct, fatalOrNil(err)
	}
	ct.Unchanged = len(accepted) - len(changed)
	a.progress.PostsQueued(c.ID, len(changed))
	if len(changed) == 0 {
		logger.LogCreatorDone(log, c.ID, 0, 0, 0, time.Since(start))
		return ct, nil
	}

	posts, fatal := a.fetchAndResolve(ctx, log, c, changed, &ct, tally)
	if fatal != nil {
		ct.Err = fatal
		return ct, fatal
	}
	if len(posts) == 0 {
		logger.LogCreatorDone(log, c.ID, 0, ct.Failed, 0, time.Since(start))
		return ct, nil
	}

	planned, err := a.persist(ctx, c, posts)
	if err != nil {
		ct.Err = err
		ct.Failed += len(posts)
		for _, p := range posts {
			a.recordFailure(log, tally, c.ID, p.SourceLink, StageStore, err)
		}
		return ct, fatalOrNil(err)
	}
	ct.Synced = len(posts)

	if a.files != nil && len(planned) > 0 {
		report := a.files.DownloadAll(ctx, a.files.Plan(planned))
		ct.Files = report.Downloaded + report.Skipped
		ct.FilesFailed = report.Failed
	}

	logger.LogCreatorDone(log, c.ID, ct.Synced, ct.Failed, ct.Files, time.Since(start))
	return ct, nil
}

// fetchAndResolve fetches every changed post concurrently and resolves
// the results once all fetches have joined. Posts come back in listing
// order.
func (a *Archiver) fetchAndResolve(ctx context.Context, log logger.Logger, c model.Creator, changed []model.PostSummary, ct *CreatorTally, tally *Tally) ([]model.Post, error) {
	results := scheduler.RunWithLogger(log, a.limit, changed,
		func(s model.PostSummary) string { return s.SourceLink },
		func(_ context.Context, s model.PostSummary) (Fetched, error) {
			return a.source.Fetch(ctx, s)
		})

	byLink := make(map[string]scheduler.Result[model.PostSummary, Fetched], len(results))
	for _, r := range results {
		byLink[r.Key] = r
	}

	var fatal error
	posts := make([]model.Post, 0, len(changed))
	for _, s := range changed {
		r := byLink[s.SourceLink]
		if r.Err != nil {
			ct.Failed++
			a.recordFailure(log, tally, c.ID, s.SourceLink, StageFetch, r.Err)
			a.progress.PostDone(c.ID, s.SourceLink, r.Err)
			if fatal == nil {
				fatal = fatalOrNil(r.Err)
			}
			continue
		}
		ct.Fetched++

		post, err := r.Value.Resolve()
		a.progress.PostDone(c.ID, s.SourceLink, err)
		if err != nil {
			ct.Failed++
			a.recordFailure(log, tally, c.ID, s.SourceLink, StageResolve, err)
			continue
		}
		if diff.Stale(post, s) {
			log.WithField("link", s.SourceLink).Debug("Detail older than listing, keeping listing time")
		}
		posts = append(posts, diff.Reconcile(post, s))
	}
	return posts, fatal
}

// persist writes every post of a creator in one transaction and returns
// the files to download. Any error rolls the whole batch back.
func (a *Archiver) persist(ctx context.Context, c model.Creator, posts []model.Post) ([]storage.PlannedFile, error) {
	tx, err := a.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	author, err := tx.UpsertCreator(ctx, c)
	if err != nil {
		return nil, err
	}

	var planned []storage.PlannedFile
	for _, p := range posts {
		postID, err := tx.UpsertPost(ctx, author, p)
		if err != nil {
			return nil, fmt.Errorf("store post %s: %w", p.SourceLink, err)
		}

		files := p.Body.FileList()
		ids, err := tx.RecordFiles(ctx, author, postID, files)
		if err != nil {
			return nil, fmt.Errorf("store files of %s: %w", p.SourceLink, err)
		}
		if err := tx.SetContent(ctx, postID, p.Body, ids); err != nil {
			return nil, fmt.Errorf("store content of %s: %w", p.SourceLink, err)
		}
		if id, ok := ids[p.Thumb]; ok && p.Thumb != "" {
			if err := tx.SetThumb(ctx, postID, id); err != nil {
				return nil, fmt.Errorf("store thumbnail of %s: %w", p.SourceLink, err)
			}
		}

		for _, f := range files {
			planned = append(planned, storage.PlannedFile{CreatorID: c.ID, PostID: p.ID, File: f})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return planned, nil
}

func (a *Archiver) recordFailure(log logger.Logger, tally *Tally, creatorID, link, stage string, err error) {
	logger.LogPostFailure(log, link, stage, err)
	tally.Failures = append(tally.Failures, PostFailure{
		CreatorID:  creatorID,
		SourceLink: link,
		Stage:      stage,
		Err:        err,
	})
}

// fatalOrNil keeps the errors that must end the run
func fatalOrNil(err error) error {
	if errs.IsAuth(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
