package patreon

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"time"

	errs "archivist/pkg/errors"
	"archivist/pkg/logger"
	"archivist/pkg/paginator"
)

const BaseURL = "https://www.patreon.com/api"

// SourceLink returns the post's sync key. The url attribute carries a
// title slug, so the key is built from the id alone.
func SourceLink(p Post) string {
	return "https://www.patreon.com/posts/" + p.ID
}

// API wraps the patreon JSON:API endpoints
type API struct {
	fetcher  paginator.Fetcher
	baseURL  string
	members  *paginator.Paginator[Member]
	posts    *paginator.Paginator[Post]
	comments *paginator.Paginator[Comment]
	logger   logger.Logger
}

// NewAPI creates an API reading through fetcher. An empty baseURL selects
// the public endpoint.
func NewAPI(fetcher paginator.Fetcher, baseURL string, log logger.Logger) *API {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &API{
		fetcher:  fetcher,
		baseURL:  baseURL,
		members:  paginator.New(fetcher, pageOf(decodeMember)),
		posts:    paginator.New(fetcher, pageOf(decodePost)),
		comments: paginator.New(fetcher, pageOf(decodeComment)),
		logger:   log,
	}
}

// CurrentUser returns the account owning the session
func (a *API) CurrentUser(ctx context.Context) (User, error) {
	data, err := a.fetcher.Fetch(ctx, a.baseURL+"/current_user?include=[]&fields[user]=id,full_name")
	if err != nil {
		return User{}, fmt.Errorf("fetch current user: %w", err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return User{}, fmt.Errorf("fetch current user: %w", err)
	}
	if len(doc.primary) == 0 {
		return User{}, errs.Schemaf("current user response is empty")
	}
	return decodeUser(doc.primary[0])
}

// Members lists the campaigns the user belongs to
func (a *API) Members(ctx context.Context, userID string) ([]Member, error) {
	u := fmt.Sprintf("%s/members?include=campaign&fields[campaign]=is_active,name,url&filter[user_id]=%s"+
		"&filter[membership_type]=active_patron,declined_patron,free_trial,gifted_c2f,gifted_f2f"+
		"&fields[member]=campaign_pledge_amount_cents,campaign_currency&page[offset]=0&page[count]=1000"+
		"&json-api-version=1.0&json-api-use-default-includes=false", a.baseURL, url.QueryEscape(userID))

	members, err := a.members.Collect(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// CampaignPosts yields every post of a campaign visible to the user. The
// listing already carries full post content.
func (a *API) CampaignPosts(ctx context.Context, userID, campaignID string) iter.Seq2[Post, error] {
	u := fmt.Sprintf("%s/posts?include=media,audio.null,audio_preview.null,poll.null,poll.choices,content_unlock_options.reward,user_defined_tags"+
		"&fields[post]=comment_count,content,current_user_can_view,embed,image,post_metadata,published_at,edited_at,post_type,title,url"+
		"&fields[media]=id,image_urls,download_url,metadata,file_name"+
		"&sort=-published_at&filter[is_draft]=false&filter[accessible_by_user_id]=%s&filter[contains_exclusive_posts]=true"+
		"&json-api-use-default-includes=false&json-api-version=1.0&filter[campaign_id]=%s",
		a.baseURL, url.QueryEscape(userID), url.QueryEscape(campaignID))
	return a.posts.All(ctx, u)
}

// Comments fetches the comments of a post with their replies
func (a *API) Comments(ctx context.Context, postID string) ([]Comment, error) {
	u := fmt.Sprintf("%s/posts/%s/comments?include=commenter,replies,replies.commenter"+
		"&fields[comment]=body,created&fields[user]=full_name&page[count]=1000&sort=-created"+
		"&json-api-use-default-includes=false&json-api-version=1.0", a.baseURL, url.PathEscape(postID))

	comments, err := a.comments.Collect(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch comments of %s: %w", postID, err)
	}
	return comments, nil
}

func pageOf[T any](decode func(*document, resource) (T, error)) paginator.PageParser[T] {
	return func(data []byte) ([]T, string, error) {
		doc, err := parseDocument(data)
		if err != nil {
			return nil, "", err
		}
		items := make([]T, 0, len(doc.primary))
		for _, r := range doc.primary {
			item, err := decode(doc, r)
			if err != nil {
				return nil, "", err
			}
			items = append(items, item)
		}
		return items, doc.next, nil
	}
}

func decodeUser(r resource) (User, error) {
	attrs, err := attributes[struct {
		FullName string `json:"full_name"`
	}](r)
	if err != nil {
		return User{}, err
	}
	return User{ID: r.ID, FullName: attrs.FullName}, nil
}

func decodeMember(doc *document, r resource) (Member, error) {
	attrs, err := attributes[struct {
		Currency    string  `json:"campaign_currency"`
		PledgeCents *uint32 `json:"campaign_pledge_amount_cents"`
	}](r)
	if err != nil {
		return Member{}, err
	}

	m := Member{ID: r.ID, Currency: attrs.Currency}
	if attrs.PledgeCents != nil {
		m.PledgeCents = *attrs.PledgeCents
	}

	c, ok, err := doc.related(r, "campaign")
	if err != nil {
		return Member{}, err
	}
	if !ok {
		return Member{}, errs.Schemaf("member %s has no included campaign", r.ID)
	}
	campaign, err := attributes[struct {
		Name     string `json:"name"`
		URL      string `json:"url"`
		IsActive bool   `json:"is_active"`
	}](c)
	if err != nil {
		return Member{}, err
	}
	m.Campaign = Campaign{ID: c.ID, Name: campaign.Name, URL: campaign.URL, IsActive: campaign.IsActive}
	return m, nil
}

type postAttributes struct {
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	URL          string     `json:"url"`
	PostType     string     `json:"post_type"`
	PublishedAt  time.Time  `json:"published_at"`
	EditedAt     *time.Time `json:"edited_at"`
	CommentCount uint32     `json:"comment_count"`
	CanView      bool       `json:"current_user_can_view"`
	Image        *Image     `json:"image"`
	Embed        *Embed     `json:"embed"`
}

func decodePost(doc *document, r resource) (Post, error) {
	attrs, err := attributes[postAttributes](r)
	if err != nil {
		return Post{}, err
	}

	p := Post{
		ID:           r.ID,
		Title:        attrs.Title,
		Content:      attrs.Content,
		URL:          attrs.URL,
		PostType:     attrs.PostType,
		PublishedAt:  attrs.PublishedAt,
		CommentCount: attrs.CommentCount,
		CanView:      attrs.CanView,
		Image:        attrs.Image,
		Embed:        attrs.Embed,
	}
	if attrs.EditedAt != nil {
		p.EditedAt = *attrs.EditedAt
	}

	if p.Audio, err = relatedMedia(doc, r, "audio"); err != nil {
		return Post{}, err
	}
	if p.AudioPreview, err = relatedMedia(doc, r, "audio_preview"); err != nil {
		return Post{}, err
	}

	media, err := doc.relatedMany(r, "media")
	if err != nil {
		return Post{}, err
	}
	for _, m := range media {
		decoded, err := decodeMedia(m)
		if err != nil {
			return Post{}, err
		}
		p.Media = append(p.Media, decoded)
	}

	if pollRes, ok, err := doc.related(r, "poll"); err != nil {
		return Post{}, err
	} else if ok {
		choices, err := doc.relatedMany(pollRes, "choices")
		if err != nil {
			return Post{}, err
		}
		poll := &Poll{}
		for _, c := range choices {
			choice, err := attributes[PollChoice](c)
			if err != nil {
				return Post{}, err
			}
			poll.Choices = append(poll.Choices, choice)
		}
		p.Poll = poll
	}

	options, err := doc.relatedMany(r, "content_unlock_options")
	if err != nil {
		return Post{}, err
	}
	for _, o := range options {
		reward, ok, err := doc.related(o, "reward")
		if err != nil {
			return Post{}, err
		}
		if !ok {
			continue
		}
		attrs, err := attributes[struct {
			Cents uint32 `json:"patron_amount_cents"`
		}](reward)
		if err != nil {
			return Post{}, err
		}
		p.UnlockCents = append(p.UnlockCents, attrs.Cents)
	}

	tags, err := doc.relatedMany(r, "user_defined_tags")
	if err != nil {
		return Post{}, err
	}
	for _, t := range tags {
		attrs, err := attributes[struct {
			Value string `json:"value"`
		}](t)
		if err != nil {
			return Post{}, err
		}
		p.Tags = append(p.Tags, attrs.Value)
	}

	return p, nil
}

func relatedMedia(doc *document, r resource, name string) (*Media, error) {
	res, ok, err := doc.related(r, name)
	if err != nil || !ok {
		return nil, err
	}
	m, err := decodeMedia(res)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func decodeMedia(r resource) (Media, error) {
	m, err := attributes[Media](r)
	if err != nil {
		return Media{}, err
	}
	m.ID = r.ID
	return m, nil
}

func decodeComment(doc *document, r resource) (Comment, error) {
	return decodeCommentDepth(doc, r, 1)
}

func decodeCommentDepth(doc *document, r resource, depth int) (Comment, error) {
	attrs, err := attributes[struct {
		Body    string    `json:"body"`
		Created time.Time `json:"created"`
	}](r)
	if err != nil {
		return Comment{}, err
	}

	c := Comment{ID: r.ID, Body: attrs.Body, Created: attrs.Created}
	if u, ok, err := doc.related(r, "commenter"); err != nil {
		return Comment{}, err
	} else if ok {
		if c.Commenter, err = decodeUser(u); err != nil {
			return Comment{}, err
		}
	}

	if depth >= 2 {
		return c, nil
	}
	replies, err := doc.relatedMany(r, "replies")
	if err != nil {
		return Comment{}, err
	}
	for _, reply := range replies {
		decoded, err := decodeCommentDepth(doc, reply, depth+1)
		if err != nil {
			return Comment{}, err
		}
		c.Replies = append(c.Replies, decoded)
	}
	return c, nil
}
