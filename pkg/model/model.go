// Package model holds the platform-neutral types that flow through the
// archiving pipeline.
package model

import (
	"time"
)

// Platform identifies where content was archived from
type Platform string

const (
	PlatformFanbox  Platform = "fanbox"
	PlatformPatreon Platform = "patreon"
)

// Creator is an account whose posts are archived
type Creator struct {
	ID          string
	DisplayName string
	// Fee is the supporting plan fee; zero for creators only followed
	Fee      uint32
	Platform Platform
	Link     string
}

// PostSummary is one entry of a creator's post listing
type PostSummary struct {
	ID           string
	CreatorID    string
	Title        string
	FeeRequired  uint32
	PublishedAt  time.Time
	UpdatedAt    time.Time
	IsRestricted bool
	SourceLink   string
}

// Post is a fully resolved post ready to be persisted
type Post struct {
	ID          string
	CreatorID   string
	Title       string
	SourceLink  string
	FeeRequired uint32
	PublishedAt time.Time
	UpdatedAt   time.Time
	Tags        []string
	Body        Document
	Comments    []Comment
	// Thumb is the file id used as the post thumbnail, if any
	Thumb string
}

// Comment is a comment and its direct replies
type Comment struct {
	Author  string    `json:"user"`
	Body    string    `json:"text"`
	Replies []Comment `json:"replies,omitempty"`
}

// MaxCommentDepth is the number of comment levels kept: roots and replies
const MaxCommentDepth = 2

// TrimComments drops replies nested deeper than MaxCommentDepth
func TrimComments(comments []Comment) []Comment {
	return trimComments(comments, 1)
}

func trimComments(comments []Comment, depth int) []Comment {
	if len(comments) == 0 {
		return nil
	}
	out := make([]Comment, len(comments))
	for i, c := range comments {
		out[i] = Comment{Author: c.Author, Body: c.Body}
		if depth < MaxCommentDepth {
			out[i].Replies = trimComments(c.Replies, depth+1)
		}
	}
	return out
}
