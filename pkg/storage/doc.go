// Package storage lays out downloaded post files on disk.
//
// Files are stored under <root>/<creatorId>/<postId>/<filename>. Planning
// and downloading are separate steps: Plan resolves paths and skips files
// that already exist, DownloadAll fetches the rest with bounded
// concurrency.
//
// Usage:
//
//	fm := storage.NewFileManager("archive", client, storage.Options{Concurrency: 5})
//	tasks := fm.Plan(files)
//	report := fm.DownloadAll(ctx, tasks)
//	if report.Failed > 0 {
//	    log.Printf("%d downloads failed", report.Failed)
//	}
package storage
