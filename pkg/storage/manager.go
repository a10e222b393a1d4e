package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"

	"archivist/pkg/logger"
	"archivist/pkg/model"
	"archivist/pkg/scheduler"
)

const DefaultConcurrency = 5

// Downloader fetches url into dest
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

type Options struct {
	Overwrite   bool
	Concurrency int
	Logger      logger.Logger
}

// PlannedFile is a file of a committed post
type PlannedFile struct {
	CreatorID string
	PostID    string
	File      model.FileReference
}

// Task is one resolved download target
type Task struct {
	PlannedFile
	Path string
	// Exists marks a target left in place because overwrite is off
	Exists bool
}

// Failure is a download that did not complete
type Failure struct {
	Task Task
	Err  error
}

// Report summarises a DownloadAll batch
type Report struct {
	Planned    int
	Skipped    int
	Downloaded int
	Failed     int
	Failures   []Failure
}

// FileManager handles the on-disk layout of post files
type FileManager struct {
	root        string
	downloader  Downloader
	overwrite   bool
	concurrency int
	logger      logger.Logger
	mkdirAll    func(path string, perm os.FileMode) error
}

// NewFileManager creates a manager rooted at root
func NewFileManager(root string, downloader Downloader, opts Options) *FileManager {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &FileManager{
		root:        root,
		downloader:  downloader,
		overwrite:   opts.Overwrite,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		mkdirAll:    os.MkdirAll,
	}
}

// Root returns the archive directory
func (m *FileManager) Root() string {
	return m.root
}

// Plan resolves the target path of every file. A file id repeated within
// one post is planned once. Distinct files whose names collide get their
// id as a prefix.
func (m *FileManager) Plan(files []PlannedFile) []Task {
	type postFile struct{ post, file string }
	seen := make(map[postFile]struct{}, len(files))
	taken := make(map[string]struct{}, len(files))

	tasks := make([]Task, 0, len(files))
	for _, f := range files {
		key := postFile{f.CreatorID + "/" + f.PostID, f.File.ID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		path := m.PathFor(f)
		if _, clash := taken[path]; clash {
			path = filepath.Join(filepath.Dir(path), SanitizeFilename(f.File.ID)+"-"+filepath.Base(path))
		}
		taken[path] = struct{}{}

		t := Task{PlannedFile: f, Path: path}
		if !m.overwrite {
			if _, err := os.Stat(t.Path); err == nil {
				t.Exists = true
			}
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// PathFor returns <root>/<creatorId>/<postId>/<filename>
func (m *FileManager) PathFor(f PlannedFile) string {
	name := SanitizeFilename(f.File.Filename)
	if name == "" {
		name = SanitizeFilename(f.File.ID)
	}
	return filepath.Join(m.root, SanitizeFilename(f.CreatorID), SanitizeFilename(f.PostID), name)
}

// DownloadAll fetches every task that is not skipped. Each distinct
// folder is created once, before its first download. A failed file is
// logged and counted; the batch continues.
func (m *FileManager) DownloadAll(ctx context.Context, tasks []Task) Report {
	report := Report{Planned: len(tasks)}

	folders := make(map[string]*folder)
	pending := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Exists {
			report.Skipped++
			logger.LogDownload(m.logger, t.Path, t.File.SourceURL, true, nil)
			continue
		}
		dir := filepath.Dir(t.Path)
		if _, ok := folders[dir]; !ok {
			folders[dir] = &folder{path: dir}
		}
		pending = append(pending, t)
	}

	results := scheduler.RunWithLogger(m.logger, m.concurrency, pending,
		func(t Task) string { return t.Path },
		func(_ context.Context, t Task) (struct{}, error) {
			if err := folders[filepath.Dir(t.Path)].ensure(m.mkdirAll); err != nil {
				return struct{}{}, err
			}
			if err := m.downloader.Download(ctx, t.File.SourceURL, t.Path); err != nil {
				return struct{}{}, err
			}
			m.sniff(t)
			return struct{}{}, nil
		})

	for _, r := range results {
		logger.LogDownload(m.logger, r.Item.Path, r.Item.File.SourceURL, false, r.Err)
		if r.Err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Task: r.Item, Err: r.Err})
			continue
		}
		report.Downloaded++
	}

	logger.LogProgress(m.logger, "download", report.Downloaded+report.Skipped, report.Planned)
	return report
}

// sniff compares the stored content against the planned mime type
func (m *FileManager) sniff(t Task) {
	kind, err := filetype.MatchFile(t.Path)
	if err != nil || kind == filetype.Unknown {
		return
	}
	if t.File.Mime != "" && kind.MIME.Value != t.File.Mime {
		m.logger.DebugWithFields("Content type differs from file extension", map[string]interface{}{
			"path":     t.Path,
			"expected": t.File.Mime,
			"detected": kind.MIME.Value,
		})
	}
}

type folder struct {
	path string
	once sync.Once
	err  error
}

func (f *folder) ensure(mkdir func(string, os.FileMode) error) error {
	f.once.Do(func() {
		f.err = mkdir(f.path, 0755)
	})
	return f.err
}

// SanitizeFilename keeps a path element inside its folder
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return "_"
	}
	return name
}
