package fanbox

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"

	errs "archivist/pkg/errors"
	"archivist/pkg/logger"
	"archivist/pkg/paginator"
)

const (
	BaseURL = "https://api.fanbox.cc"

	postPageSize    = 300
	commentPageSize = 50
)

// SourceLink is the canonical web address of a post, used as its sync key
func SourceLink(creatorID, postID string) string {
	return fmt.Sprintf("https://%s.fanbox.cc/posts/%s", creatorID, postID)
}

// API wraps the fanbox JSON endpoints
type API struct {
	fetcher paginator.Fetcher
	baseURL string
	posts   *paginator.Paginator[PostListItem]
	comms   *paginator.Paginator[Comment]
	logger  logger.Logger
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
		fetcher: fetcher,
		baseURL: baseURL,
		posts:   paginator.New(fetcher, parsePage[PostListItem]),
		comms:   paginator.New(fetcher, parseCommentPage),
		logger:  log,
	}
}

// SupportingCreators lists creators with an active plan
func (a *API) SupportingCreators(ctx context.Context) ([]SupportingCreator, error) {
	var list []SupportingCreator
	if err := a.get(ctx, a.baseURL+"/plan.listSupporting", &list); err != nil {
		return nil, fmt.Errorf("list supporting creators: %w", err)
	}
	return list, nil
}

// FollowingCreators lists followed creators
func (a *API) FollowingCreators(ctx context.Context) ([]FollowingCreator, error) {
	var list []FollowingCreator
	if err := a.get(ctx, a.baseURL+"/creator.listFollowing", &list); err != nil {
		return nil, fmt.Errorf("list following creators: %w", err)
	}
	return list, nil
}

// CreatorPosts yields every post listing entry of a creator, page by page
func (a *API) CreatorPosts(ctx context.Context, creatorID string) iter.Seq2[PostListItem, error] {
	q := url.Values{}
	q.Set("creatorId", creatorID)
	q.Set("limit", fmt.Sprint(postPageSize))
	return a.posts.All(ctx, a.baseURL+"/post.listCreator?"+q.Encode())
}

// Post fetches the full post including its body
func (a *API) Post(ctx context.Context, postID string) (*Post, error) {
	var post Post
	if err := a.get(ctx, a.baseURL+"/post.info?postId="+url.QueryEscape(postID), &post); err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", postID, err)
	}
	return &post, nil
}

// Comments fetches every root comment of a post with its replies
func (a *API) Comments(ctx context.Context, postID string) ([]Comment, error) {
	q := url.Values{}
	q.Set("postId", postID)
	q.Set("limit", fmt.Sprint(commentPageSize))

	comments, err := a.comms.Collect(ctx, a.baseURL+"/post.listComments?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch comments of %s: %w", postID, err)
	}
	return comments, nil
}

func (a *API) get(ctx context.Context, u string, v any) error {
	data, err := a.fetcher.Fetch(ctx, u)
	if err != nil {
		return err
	}
	if err := decodeBody(data, v); err != nil {
		if errs.IsAuth(err) {
			a.logger.ErrorWithFields("The session is invalid or expired", map[string]interface{}{
				"url": u,
			})
		}
		return err
	}
	return nil
}

type envelope struct {
	Body  json.RawMessage `json:"body"`
	Error string          `json:"error"`
}

// decodeBody unwraps {"body": ...} into v. An {"error": ...} reply is
// returned as a typed error; general_error means the session was rejected.
func decodeBody(data []byte, v any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "decode response envelope")
	}
	if env.Error != "" {
		if env.Error == "general_error" {
			return errs.New(errs.ErrorTypeAuth, "fanbox rejected the session (general_error)")
		}
		return errs.New(errs.ErrorTypeClient, "fanbox error: "+env.Error)
	}
	if len(env.Body) == 0 || string(env.Body) == "null" {
		return errs.Schemaf("response has no body")
	}
	if err := json.Unmarshal(env.Body, v); err != nil {
		if errs.IsSchema(err) {
			return err
		}
		return errs.Wrap(errs.ErrorTypeParsing, err, "decode response body")
	}
	return nil
}

type page[T any] struct {
	Items   []T    `json:"items"`
	NextURL string `json:"nextUrl"`
}

func parsePage[T any](data []byte) ([]T, string, error) {
	var p page[T]
	if err := decodeBody(data, &p); err != nil {
		return nil, "", err
	}
	return p.Items, p.NextURL, nil
}

// parseCommentPage accepts both the flat page and the commentList wrapper
func parseCommentPage(data []byte) ([]Comment, string, error) {
	var p struct {
		page[Comment]
		CommentList *page[Comment] `json:"commentList"`
	}
	if err := decodeBody(data, &p); err != nil {
		return nil, "", err
	}
	if p.CommentList != nil {
		return p.CommentList.Items, p.CommentList.NextURL, nil
	}
	return p.Items, p.NextURL, nil
}
