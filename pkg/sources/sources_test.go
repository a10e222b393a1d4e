package sources

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivist/pkg/config"
	errs "archivist/pkg/errors"
	"archivist/pkg/fanbox"
	"archivist/pkg/model"
	"archivist/pkg/patreon"
)

type prefixFetcher struct {
	mu     sync.Mutex
	routes map[string]string
	calls  []string
}

func (f *prefixFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	for prefix, body := range f.routes {
		if strings.HasPrefix(url, prefix) {
			return []byte(body), nil
		}
	}
	return nil, errs.FromStatus(404, "unexpected url "+url)
}

func (f *prefixFetcher) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

var fanboxRoutes = map[string]string{
	"http://fb/creator.listFollowing": `{"body":[
		{"creatorId":"mofu","user":{"userId":"1","name":"Mofu"}},
		{"creatorId":"neko","user":{"userId":"2","name":"Neko"}}]}`,
	"http://fb/plan.listSupporting": `{"body":[{"id":"p1","title":"Plan","fee":500,"creatorId":"mofu","user":{"userId":"1","name":"Mofu"}}]}`,
	"http://fb/post.listCreator": `{"body":{"items":[
		{"id":"9","title":"t","feeRequired":100,"publishedDatetime":"2024-01-01T00:00:00Z","updatedDatetime":"2024-01-02T00:00:00Z","creatorId":"mofu","user":{"userId":"1","name":"Mofu"}},
		{"id":"10","title":"locked","feeRequired":1000,"isRestricted":true,"publishedDatetime":"2024-01-03T00:00:00Z","updatedDatetime":"2024-01-03T00:00:00Z","creatorId":"mofu","user":{"userId":"1","name":"Mofu"}}
	],"nextUrl":null}}`,
	"http://fb/post.info?postId=9": `{"body":{
		"id":"9","title":"t","feeRequired":100,
		"publishedDatetime":"2024-01-01T00:00:00Z","updatedDatetime":"2024-01-02T00:00:00Z",
		"tags":["sketch"],"creatorId":"mofu","user":{"userId":"1","name":"Mofu"},
		"body":{
			"blocks":[{"type":"p","text":"hello"},{"type":"image","imageId":"img1"}],
			"imageMap":{"img1":{"id":"img1","extension":"png","width":10,"height":20,"originalUrl":"https://cdn/img1.png","thumbnailUrl":"https://cdn/t.png"}}
		}
	}}`,
	"http://fb/post.info?postId=11": `{"body":{"id":"11","title":"cover","creatorId":"mofu",
		"publishedDatetime":"2024-01-01T00:00:00Z","updatedDatetime":"2024-01-01T00:00:00Z",
		"user":{"userId":"1","name":"Mofu"},"coverImageUrl":"https://cdn/x/cover.jpeg",
		"body":{"text":"plain"}}}`,
	"http://fb/post.info?postId=12": `{"body":{"id":"12","title":"empty","creatorId":"mofu",
		"publishedDatetime":"2024-01-01T00:00:00Z","updatedDatetime":"2024-01-01T00:00:00Z",
		"user":{"userId":"1","name":"Mofu"},"body":null}}`,
	"http://fb/post.listComments": `{"body":{"items":[{"id":"c1","body":"nice","createdDatetime":"2024-01-01T00:00:00Z","user":{"userId":"5","name":"Fan"}}],"nextUrl":null}}`,
}

func newFanbox(filter config.FilterConfig) (*Fanbox, *prefixFetcher) {
	f := &prefixFetcher{routes: fanboxRoutes}
	return NewFanbox(fanbox.NewAPI(f, "http://fb", nil), filter, nil), f
}

func TestFanboxCreatorsMergesLists(t *testing.T) {
	src, _ := newFanbox(config.FilterConfig{Save: config.SaveAll})

	creators, err := src.Creators(context.Background())
	require.NoError(t, err)
	require.Len(t, creators, 2)

	assert.Equal(t, model.Creator{
		ID:          "mofu",
		DisplayName: "Mofu",
		Fee:         500,
		Platform:    model.PlatformFanbox,
		Link:        "https://mofu.fanbox.cc",
	}, creators[0])
	assert.Equal(t, "neko", creators[1].ID)
	assert.Zero(t, creators[1].Fee)
}

func TestFanboxCreatorsSaveType(t *testing.T) {
	src, f := newFanbox(config.FilterConfig{Save: config.SaveSupporting})

	creators, err := src.Creators(context.Background())
	require.NoError(t, err)
	require.Len(t, creators, 1)
	assert.Equal(t, "mofu", creators[0].ID)
	assert.Zero(t, f.count("http://fb/creator.listFollowing"))
}

func TestFanboxCreatorsFilter(t *testing.T) {
	src, _ := newFanbox(config.FilterConfig{Save: config.SaveAll, SkipFree: true})
	creators, err := src.Creators(context.Background())
	require.NoError(t, err)
	require.Len(t, creators, 1)
	assert.Equal(t, "mofu", creators[0].ID)

	src, _ = newFanbox(config.FilterConfig{Save: config.SaveAll, Blacklist: []string{"mofu"}})
	creators, err = src.Creators(context.Background())
	require.NoError(t, err)
	require.Len(t, creators, 1)
	assert.Equal(t, "neko", creators[0].ID)
}

func TestFanboxPosts(t *testing.T) {
	src, _ := newFanbox(config.FilterConfig{})

	posts, err := src.Posts(context.Background(), model.Creator{ID: "mofu"})
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "https://mofu.fanbox.cc/posts/9", posts[0].SourceLink)
	assert.Equal(t, "mofu", posts[0].CreatorID)
	assert.Equal(t, uint32(100), posts[0].FeeRequired)
	assert.Equal(t, 2, posts[0].UpdatedAt.Day())
	assert.True(t, posts[1].IsRestricted)
}

func TestFanboxFetchResolve(t *testing.T) {
	src, _ := newFanbox(config.FilterConfig{})
	summary := model.PostSummary{ID: "9", CreatorID: "mofu", SourceLink: "https://mofu.fanbox.cc/posts/9"}

	fetched, err := src.Fetch(context.Background(), summary)
	require.NoError(t, err)
	post, err := fetched.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "t", post.Title)
	assert.Equal(t, summary.SourceLink, post.SourceLink)
	assert.Equal(t, []string{"sketch"}, post.Tags)
	assert.Equal(t, "img1", post.Thumb)
	require.Len(t, post.Body.Blocks, 2)
	assert.Equal(t, model.FileRef{FileID: "img1"}, post.Body.Blocks[1])
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "Fan", post.Comments[0].Author)
}

func TestFanboxCoverIsThumb(t *testing.T) {
	src, _ := newFanbox(config.FilterConfig{})

	fetched, err := src.Fetch(context.Background(), model.PostSummary{ID: "11", CreatorID: "mofu"})
	require.NoError(t, err)
	post, err := fetched.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "https://cdn/x/cover.jpeg", post.Thumb)
	_, ok := post.Body.Files[post.Thumb]
	assert.True(t, ok)
}

func TestFanboxMissingBody(t *testing.T) {
	src, _ := newFanbox(config.FilterConfig{})

	fetched, err := src.Fetch(context.Background(), model.PostSummary{ID: "12", CreatorID: "mofu"})
	require.NoError(t, err)
	_, err = fetched.Resolve()
	require.Error(t, err)
	assert.True(t, errs.IsSchema(err))
}

const patreonPosts = `{
  "data": [
    {"id": "101", "type": "post",
     "attributes": {"title": "Episode 1", "content": "<p>Hi</p>", "url": "https://www.patreon.com/posts/episode-1-101",
       "published_at": "2024-03-01T10:00:00.000+00:00", "comment_count": 1, "current_user_can_view": true},
     "relationships": {
       "media": {"data": [{"id": "m2", "type": "media"}]},
       "content_unlock_options": {"data": [{"id": "o1", "type": "content-unlock-option"}]},
       "user_defined_tags": {"data": [{"id": "t1", "type": "post_tag"}]}}},
    {"id": "102", "type": "post",
     "attributes": {"title": "Locked", "published_at": "2024-03-02T10:00:00Z", "current_user_can_view": false}}
  ],
  "included": [
    {"id": "m2", "type": "media", "attributes": {"file_name": "page.jpg", "download_url": "https://c10.patreonusercontent.com/page.jpg"}},
    {"id": "o1", "type": "content-unlock-option", "relationships": {"reward": {"data": {"id": "r1", "type": "reward"}}}},
    {"id": "r1", "type": "reward", "attributes": {"patron_amount_cents": 300}},
    {"id": "t1", "type": "post_tag", "attributes": {"value": "comic"}}
  ],
  "links": {}
}`

var patreonRoutes = map[string]string{
	"http://pt/current_user": `{"data": {"id": "u1", "type": "user", "attributes": {"full_name": "Ann"}}}`,
	"http://pt/members": `{
	  "data": [
	    {"id": "mem1", "type": "member", "attributes": {"campaign_pledge_amount_cents": 500},
	     "relationships": {"campaign": {"data": {"id": "camp1", "type": "campaign"}}}},
	    {"id": "mem2", "type": "member", "attributes": {"campaign_pledge_amount_cents": 0},
	     "relationships": {"campaign": {"data": {"id": "camp2", "type": "campaign"}}}}
	  ],
	  "included": [
	    {"id": "camp1", "type": "campaign", "attributes": {"name": "Studio", "url": "https://www.patreon.com/studio"}},
	    {"id": "camp2", "type": "campaign", "attributes": {"name": "Free Stuff", "url": "https://www.patreon.com/free"}}
	  ],
	  "links": {}
	}`,
	"http://pt/posts?":             patreonPosts,
	"http://pt/posts/101/comments": `{"data": [{"id": "c1", "type": "comment", "attributes": {"body": "first", "created": "2024-03-01T10:00:00Z"}, "relationships": {"commenter": {"data": {"id": "u2", "type": "user"}}}}], "included": [{"id": "u2", "type": "user", "attributes": {"full_name": "Bob"}}], "links": {}}`,
}

func newPatreon(filter config.FilterConfig) (*Patreon, *prefixFetcher) {
	f := &prefixFetcher{routes: patreonRoutes}
	return NewPatreon(patreon.NewAPI(f, "http://pt", nil), filter, nil), f
}

func TestPatreonCreators(t *testing.T) {
	src, f := newPatreon(config.FilterConfig{Save: config.SaveAll})

	creators, err := src.Creators(context.Background())
	require.NoError(t, err)
	require.Len(t, creators, 2)
	assert.Equal(t, model.Creator{
		ID:          "camp1",
		DisplayName: "Studio",
		Fee:         500,
		Platform:    model.PlatformPatreon,
		Link:        "https://www.patreon.com/studio",
	}, creators[0])

	src2, _ := newPatreon(config.FilterConfig{Save: config.SaveSupporting})
	creators, err = src2.Creators(context.Background())
	require.NoError(t, err)
	require.Len(t, creators, 1)
	assert.Equal(t, "camp1", creators[0].ID)

	// the user is looked up once per source
	_, err = src.Posts(context.Background(), creators[0])
	require.NoError(t, err)
	assert.Equal(t, 1, f.count("http://pt/current_user"))
}

func TestPatreonPostsAndFetch(t *testing.T) {
	src, f := newPatreon(config.FilterConfig{})
	creator := model.Creator{ID: "camp1"}

	summaries, err := src.Posts(context.Background(), creator)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	first := summaries[0]
	assert.Equal(t, "https://www.patreon.com/posts/101", first.SourceLink)
	assert.Equal(t, uint32(300), first.FeeRequired)
	assert.False(t, first.IsRestricted)
	assert.True(t, summaries[1].IsRestricted)
	assert.Equal(t, "https://www.patreon.com/posts/102", summaries[1].SourceLink)

	fetched, err := src.Fetch(context.Background(), first)
	require.NoError(t, err)
	post, err := fetched.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "Episode 1", post.Title)
	assert.Equal(t, "camp1", post.CreatorID)
	assert.Equal(t, []string{"comic"}, post.Tags)
	assert.Equal(t, "m2", post.Thumb)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "Bob", post.Comments[0].Author)
	assert.Equal(t, 1, f.count("http://pt/posts/101/comments"))
}

func TestPatreonFetchSkipsCommentsWhenNone(t *testing.T) {
	src, f := newPatreon(config.FilterConfig{})

	summaries, err := src.Posts(context.Background(), model.Creator{ID: "camp1"})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), summaries[1])
	require.NoError(t, err)
	assert.Zero(t, f.count("http://pt/posts/102/comments"))
}

func TestPatreonFetchUnlisted(t *testing.T) {
	src, _ := newPatreon(config.FilterConfig{})

	_, err := src.Fetch(context.Background(), model.PostSummary{ID: "999", SourceLink: "https://www.patreon.com/posts/999"})
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
}
