package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	errs "archivist/pkg/errors"
	"archivist/pkg/model"
)

// FreeTag marks posts that need no paid plan
const FreeTag = "free"

// Tx is one creator's write batch. Nothing is visible to other readers
// until Commit.
type Tx struct {
	tx        *sqlx.Tx
	platforms map[AuthorID]string
}

const queryUpsertCreator = `INSERT INTO authors (name, platform, source_id, link, updated) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (platform, source_id) DO UPDATE SET name = excluded.name, link = excluded.link, updated = excluded.updated
RETURNING id`

// UpsertCreator inserts or refreshes the author row of c
func (t *Tx) UpsertCreator(ctx context.Context, c model.Creator) (AuthorID, error) {
	var id AuthorID
	err := t.tx.GetContext(ctx, &id, t.tx.Rebind(queryUpsertCreator),
		c.DisplayName, string(c.Platform), c.ID, c.Link, time.Now().UnixMilli())
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to upsert creator "+c.ID)
	}
	t.platforms[id] = string(c.Platform)
	return id, nil
}

const (
	querySelectPost = `SELECT id FROM posts WHERE source = ?`
	queryUpdatePost = `UPDATE posts SET title = ?, comments = ?, updated = ? WHERE id = ?`
	queryInsertPost = `INSERT INTO posts (author, source, title, comments, updated, published) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
	queryClearTags  = `DELETE FROM post_tags WHERE post = ?`
	queryInsertTag  = `INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING`
	querySelectTag  = `SELECT id FROM tags WHERE name = ?`
	queryLinkTag    = `INSERT INTO post_tags (post, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`
	queryPlatformOf = `SELECT platform FROM authors WHERE id = ?`
)

// UpsertPost writes the post row keyed by its source link and replaces
// its tags. An existing row keeps its author and published time. The
// platform tag is always attached, and the free tag when no fee is required.
func (t *Tx) UpsertPost(ctx context.Context, author AuthorID, p model.Post) (PostID, error) {
	comments, err := json.Marshal(nonNilComments(p.Comments))
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to encode comments")
	}
	updated, published := p.UpdatedAt.UnixMilli(), p.PublishedAt.UnixMilli()

	var id PostID
	err = t.tx.GetContext(ctx, &id, t.tx.Rebind(querySelectPost), p.SourceLink)
	switch {
	case err == nil:
		if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(queryUpdatePost),
			p.Title, string(comments), updated, id); err != nil {
			return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to update post "+p.SourceLink)
		}
	case errors.Is(err, sql.ErrNoRows):
		if err := t.tx.GetContext(ctx, &id, t.tx.Rebind(queryInsertPost),
			author, p.SourceLink, p.Title, string(comments), updated, published); err != nil {
			return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to insert post "+p.SourceLink)
		}
	default:
		return 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to look up post "+p.SourceLink)
	}

	platform, err := t.platformOf(ctx, author)
	if err != nil {
		return 0, err
	}
	if err := t.replaceTags(ctx, id, postTags(p, platform)); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *Tx) platformOf(ctx context.Context, author AuthorID) (string, error) {
	if p, ok := t.platforms[author]; ok {
		return p, nil
	}
	var platform string
	if err := t.tx.GetContext(ctx, &platform, t.tx.Rebind(queryPlatformOf), author); err != nil {
		return "", errs.Wrap(errs.ErrorTypeStorage, err, "failed to load author platform")
	}
	t.platforms[author] = platform
	return platform, nil
}

func (t *Tx) replaceTags(ctx context.Context, post PostID, tags []string) error {
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(queryClearTags), post); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to clear tags")
	}
	for _, name := range tags {
		if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(queryInsertTag), name); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "failed to insert tag "+name)
		}
		var tag int64
		if err := t.tx.GetContext(ctx, &tag, t.tx.Rebind(querySelectTag), name); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "failed to load tag "+name)
		}
		if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(queryLinkTag), post, tag); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "failed to link tag "+name)
		}
	}
	return nil
}

// postTags returns the distinct tags of p plus the derived ones
func postTags(p model.Post, platform string) []string {
	tags := make([]string, 0, len(p.Tags)+2)
	seen := make(map[string]struct{}, cap(tags))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		tags = append(tags, name)
	}

	for _, tag := range p.Tags {
		add(tag)
	}
	add(platform)
	if p.FeeRequired == 0 {
		add(FreeTag)
	}
	return tags
}

func nonNilComments(c []model.Comment) []model.Comment {
	if c == nil {
		return []model.Comment{}
	}
	return c
}

const (
	queryClearThumb   = `UPDATE posts SET thumb = NULL WHERE id = ?`
	queryClearFiles   = `DELETE FROM file_metas WHERE post = ?`
	queryInsertFile   = `INSERT INTO file_metas (filename, author, post, mime, extra) VALUES (?, ?, ?, ?, ?) RETURNING id`
	querySetContent   = `UPDATE posts SET content = ? WHERE id = ?`
	querySetPostThumb = `UPDATE posts SET thumb = ? WHERE id = ?`
)

// RecordFiles replaces the file metadata of a post and returns the row id
// of every file keyed by its file id. The thumbnail is cleared with the old
// rows; SetThumb sets it again.
func (t *Tx) RecordFiles(ctx context.Context, author AuthorID, post PostID, files []model.FileReference) (map[string]FileMetaID, error) {
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(queryClearThumb), post); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to clear post thumbnail")
	}
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(queryClearFiles), post); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to clear file metadata")
	}

	ids := make(map[string]FileMetaID, len(files))
	for _, f := range files {
		if _, ok := ids[f.ID]; ok {
			continue
		}
		extra := f.Extra
		if extra == nil {
			extra = map[string]any{}
		}
		encoded, err := json.Marshal(extra)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to encode file extra")
		}

		var id FileMetaID
		if err := t.tx.GetContext(ctx, &id, t.tx.Rebind(queryInsertFile),
			f.Filename, author, post, f.Mime, string(encoded)); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to record file "+f.Filename)
		}
		ids[f.ID] = id
	}
	return ids, nil
}

// EncodeContent renders a document as a JSON array of strings for text
// and file metadata ids for file references
func EncodeContent(doc model.Document, files map[string]FileMetaID) ([]byte, error) {
	content := make([]any, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case model.Text:
			content = append(content, v.Text)
		case model.FileRef:
			id, ok := files[v.FileID]
			if !ok {
				return nil, errs.Schemaf("content references unrecorded file %s", v.FileID)
			}
			content = append(content, int64(id))
		}
	}
	return json.Marshal(content)
}

// SetContent stores the post body
func (t *Tx) SetContent(ctx context.Context, post PostID, doc model.Document, files map[string]FileMetaID) error {
	content, err := EncodeContent(doc, files)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(querySetContent), string(content), post); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to store post content")
	}
	return nil
}

// SetThumb points the post thumbnail at a recorded file
func (t *Tx) SetThumb(ctx context.Context, post PostID, file FileMetaID) error {
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(querySetPostThumb), int64(file), post); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to store post thumbnail")
	}
	return nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to commit")
	}
	return nil
}

// Rollback discards the batch. It is safe to call after Commit.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errs.Wrap(errs.ErrorTypeStorage, err, "failed to roll back")
	}
	return nil
}
