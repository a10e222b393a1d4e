package fanbox

import (
	"encoding/json"
	"time"

	errs "archivist/pkg/errors"
)

type User struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl,omitempty"`
}

// SupportingCreator is an entry of plan.listSupporting
type SupportingCreator struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Fee       uint32 `json:"fee"`
	CreatorID string `json:"creatorId"`
	User      User   `json:"user"`
}

// FollowingCreator is an entry of creator.listFollowing
type FollowingCreator struct {
	CreatorID string `json:"creatorId"`
	User      User   `json:"user"`
}

type Cover struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// PostListItem is an entry of post.listCreator
type PostListItem struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	FeeRequired       uint32    `json:"feeRequired"`
	PublishedDatetime time.Time `json:"publishedDatetime"`
	UpdatedDatetime   time.Time `json:"updatedDatetime"`
	Tags              []string  `json:"tags"`
	IsRestricted      bool      `json:"isRestricted"`
	User              User      `json:"user"`
	CreatorID         string    `json:"creatorId"`
	Cover             *Cover    `json:"cover,omitempty"`
}

// Post is the body of post.info
type Post struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	FeeRequired       uint32    `json:"feeRequired"`
	PublishedDatetime time.Time `json:"publishedDatetime"`
	UpdatedDatetime   time.Time `json:"updatedDatetime"`
	Tags              []string  `json:"tags"`
	IsRestricted      bool      `json:"isRestricted"`
	User              User      `json:"user"`
	CreatorID         string    `json:"creatorId"`
	CoverImageURL     string    `json:"coverImageUrl,omitempty"`
	Body              *PostBody `json:"body"`
}

// PostBody holds either the flat form (text plus media lists) or the
// block form (blocks plus side tables keyed by id).
type PostBody struct {
	Text        string               `json:"text,omitempty"`
	Blocks      Blocks               `json:"blocks,omitempty"`
	Images      []PostImage          `json:"images,omitempty"`
	Videos      []PostVideo          `json:"videos,omitempty"`
	Files       []PostFile           `json:"files,omitempty"`
	ImageMap    map[string]PostImage `json:"imageMap,omitempty"`
	FileMap     map[string]PostFile  `json:"fileMap,omitempty"`
	EmbedMap    map[string]PostEmbed `json:"embedMap,omitempty"`
	URLEmbedMap URLEmbedMap          `json:"urlEmbedMap,omitempty"`
}

type PostImage struct {
	ID           string `json:"id"`
	Extension    string `json:"extension"`
	Width        uint32 `json:"width"`
	Height       uint32 `json:"height"`
	OriginalURL  string `json:"originalUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

func (i PostImage) Filename() string {
	return i.ID + "." + i.Extension
}

type PostFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Size      uint64 `json:"size"`
	URL       string `json:"url"`
}

func (f PostFile) Filename() string {
	return f.Name + "." + f.Extension
}

type PostVideo struct {
	ServiceProvider string `json:"serviceProvider"`
	VideoID         string `json:"videoId"`
}

type PostEmbed struct {
	ID              string `json:"id"`
	ServiceProvider string `json:"serviceProvider"`
	ContentID       string `json:"contentId"`
}

// Style marks a rune range of a text block
type Style struct {
	Type   string `json:"type"`
	Offset uint32 `json:"offset"`
	Length uint32 `json:"length"`
}

// Block is one entry of PostBody.Blocks. The set of implementations is
// closed; an unrecognised type fails decoding.
type Block interface {
	BlockType() string
}

type ParagraphBlock struct {
	Text   string  `json:"text"`
	Styles []Style `json:"styles,omitempty"`
}

type HeaderBlock struct {
	Text   string  `json:"text"`
	Styles []Style `json:"styles,omitempty"`
}

type ImageBlock struct {
	ImageID string `json:"imageId"`
}

type FileBlock struct {
	FileID string `json:"fileId"`
}

type EmbedBlock struct {
	EmbedID string `json:"embedId"`
}

type URLEmbedBlock struct {
	URLEmbedID string `json:"urlEmbedId"`
}

type VideoBlock struct {
	VideoID string `json:"videoId"`
}

func (ParagraphBlock) BlockType() string { return "p" }
func (HeaderBlock) BlockType() string    { return "header" }
func (ImageBlock) BlockType() string     { return "image" }
func (FileBlock) BlockType() string      { return "file" }
func (EmbedBlock) BlockType() string     { return "embed" }
func (URLEmbedBlock) BlockType() string  { return "url_embed" }
func (VideoBlock) BlockType() string     { return "video" }

// Blocks decodes the tagged block list
type Blocks []Block

func (b *Blocks) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Blocks, 0, len(raw))
	for i, msg := range raw {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &tag); err != nil {
			return err
		}

		var (
			block Block
			err   error
		)
		switch tag.Type {
		case "p":
			block, err = decodeBlock[ParagraphBlock](msg)
		case "header":
			block, err = decodeBlock[HeaderBlock](msg)
		case "image":
			block, err = decodeBlock[ImageBlock](msg)
		case "file":
			block, err = decodeBlock[FileBlock](msg)
		case "embed":
			block, err = decodeBlock[EmbedBlock](msg)
		case "url_embed":
			block, err = decodeBlock[URLEmbedBlock](msg)
		case "video":
			block, err = decodeBlock[VideoBlock](msg)
		default:
			return errs.Schemaf("unknown block type %q at index %d", tag.Type, i)
		}
		if err != nil {
			return err
		}
		out = append(out, block)
	}

	*b = out
	return nil
}

func decodeBlock[T Block](msg json.RawMessage) (Block, error) {
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// URLEmbed is one entry of PostBody.URLEmbedMap; a closed set like Block
type URLEmbed interface {
	EmbedID() string
}

// HTMLEmbed covers the "html" and "html.card" types
type HTMLEmbed struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
	Card bool   `json:"-"`
}

// FanboxPostEmbed links to another fanbox post
type FanboxPostEmbed struct {
	ID       string       `json:"id"`
	PostInfo PostListItem `json:"postInfo"`
}

type DefaultEmbed struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Host string `json:"host"`
}

func (e HTMLEmbed) EmbedID() string       { return e.ID }
func (e FanboxPostEmbed) EmbedID() string { return e.ID }
func (e DefaultEmbed) EmbedID() string    { return e.ID }

type URLEmbedMap map[string]URLEmbed

func (m *URLEmbedMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(URLEmbedMap, len(raw))
	for key, msg := range raw {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &tag); err != nil {
			return err
		}

		switch tag.Type {
		case "html", "html.card":
			var v HTMLEmbed
			if err := json.Unmarshal(msg, &v); err != nil {
				return err
			}
			v.Card = tag.Type == "html.card"
			out[key] = v
		case "fanbox.post":
			var v FanboxPostEmbed
			if err := json.Unmarshal(msg, &v); err != nil {
				return err
			}
			out[key] = v
		case "default":
			var v DefaultEmbed
			if err := json.Unmarshal(msg, &v); err != nil {
				return err
			}
			out[key] = v
		default:
			return errs.Schemaf("unknown url embed type %q for %s", tag.Type, key)
		}
	}

	*m = out
	return nil
}

// Comment is an entry of post.listComments; only root comments carry replies
type Comment struct {
	ID              string    `json:"id"`
	ParentCommentID string    `json:"parentCommentId"`
	RootCommentID   string    `json:"rootCommentId"`
	Body            string    `json:"body"`
	CreatedDatetime time.Time `json:"createdDatetime"`
	User            User      `json:"user"`
	Replies         []Comment `json:"replies,omitempty"`
}
