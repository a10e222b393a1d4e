package patreon

import (
	"time"
)

type User struct {
	ID       string
	FullName string
}

type Campaign struct {
	ID       string
	Name     string
	URL      string
	IsActive bool
}

// Member is the current user's membership of one campaign
type Member struct {
	ID          string
	Currency    string
	PledgeCents uint32
	Campaign    Campaign
}

type Image struct {
	URL            string  `json:"url"`
	LargeURL       string  `json:"large_url"`
	ThumbURL       string  `json:"thumb_url"`
	ThumbSquareURL string  `json:"thumb_square_url"`
	Width          *uint32 `json:"width"`
	Height         *uint32 `json:"height"`
}

type Embed struct {
	URL         string `json:"url"`
	Provider    string `json:"provider"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

type MediaImageURLs struct {
	Original  string `json:"original"`
	Default   string `json:"default"`
	Thumbnail string `json:"thumbnail"`
}

type Dimensions struct {
	W uint32 `json:"w"`
	H uint32 `json:"h"`
}

type MediaMetadata struct {
	Dimensions *Dimensions `json:"dimensions"`
	DurationS  *uint32     `json:"duration_s"`
}

type Media struct {
	ID          string          `json:"-"`
	FileName    string          `json:"file_name"`
	DownloadURL string          `json:"download_url"`
	ImageURLs   *MediaImageURLs `json:"image_urls"`
	Metadata    MediaMetadata   `json:"metadata"`
}

type PollChoice struct {
	Position     uint32 `json:"position"`
	NumResponses uint32 `json:"num_responses"`
	TextContent  string `json:"text_content"`
}

type Poll struct {
	Choices []PollChoice
}

// Post is a patreon post with its included media resolved
type Post struct {
	ID           string
	Title        string
	Content      string
	URL          string
	PostType     string
	PublishedAt  time.Time
	EditedAt     time.Time
	CommentCount uint32
	CanView      bool
	Image        *Image
	Embed        *Embed
	Audio        *Media
	AudioPreview *Media
	Media        []Media
	Poll         *Poll
	// UnlockCents lists the reward tiers that unlock the post
	UnlockCents []uint32
	Tags        []string
}

// IsFree reports whether the post is visible without a paid tier
func (p Post) IsFree() bool {
	if len(p.UnlockCents) == 0 {
		return true
	}
	for _, c := range p.UnlockCents {
		if c == 0 {
			return true
		}
	}
	return false
}

// FeeRequired is the cheapest tier that unlocks the post
func (p Post) FeeRequired() uint32 {
	if p.IsFree() {
		return 0
	}
	lowest := p.UnlockCents[0]
	for _, c := range p.UnlockCents[1:] {
		if c < lowest {
			lowest = c
		}
	}
	return lowest
}

// UpdatedAt is the edit time, falling back to publication
func (p Post) UpdatedAt() time.Time {
	if p.EditedAt.After(p.PublishedAt) {
		return p.EditedAt
	}
	return p.PublishedAt
}

// Comment is a root comment with its direct replies
type Comment struct {
	ID        string
	Body      string
	Created   time.Time
	Commenter User
	Replies   []Comment
}
