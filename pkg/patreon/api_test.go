package patreon

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "archivist/pkg/errors"
)

// routeFetcher answers with the first body whose key is a prefix of the url
type routeFetcher struct {
	routes map[string]string
	calls  []string
}

func (r *routeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	r.calls = append(r.calls, url)
	for prefix, body := range r.routes {
		if strings.HasPrefix(url, prefix) {
			return []byte(body), nil
		}
	}
	return nil, errs.FromStatus(404, "unexpected url "+url)
}

const postPage = `{
  "data": [{
    "id": "101", "type": "post",
    "attributes": {
      "title": "Episode 1", "content": "<p>Hello <strong>there</strong></p>",
      "url": "https://www.patreon.com/posts/episode-1-101", "post_type": "audio_file",
      "published_at": "2024-03-01T10:00:00.000+00:00", "edited_at": "2024-03-02T10:00:00.000+00:00",
      "comment_count": 2, "current_user_can_view": true,
      "image": {"thumb_square_url": "https://c10.patreonusercontent.com/thumb.jpg"}
    },
    "relationships": {
      "audio": {"data": {"id": "m1", "type": "media"}},
      "audio_preview": {"data": null},
      "media": {"data": [{"id": "m1", "type": "media"}, {"id": "m2", "type": "media"}]},
      "poll": {"data": {"id": "poll1", "type": "poll"}},
      "content_unlock_options": {"data": [{"id": "o1", "type": "content-unlock-option"}, {"id": "o2", "type": "content-unlock-option"}]},
      "user_defined_tags": {"data": [{"id": "t1", "type": "post_tag"}]}
    }
  }],
  "included": [
    {"id": "m1", "type": "media", "attributes": {"file_name": "ep1.mp3", "download_url": "https://c10.patreonusercontent.com/ep1.mp3"}},
    {"id": "m2", "type": "media", "attributes": {"file_name": "cover.jpg", "download_url": "https://c10.patreonusercontent.com/cover.jpg",
      "image_urls": {"thumbnail": "https://c10.patreonusercontent.com/thumb.jpg"}, "metadata": {"dimensions": {"w": 640, "h": 480}}}},
    {"id": "poll1", "type": "poll", "relationships": {"choices": {"data": [{"id": "c1", "type": "poll_choice"}]}}},
    {"id": "c1", "type": "poll_choice", "attributes": {"position": 0, "num_responses": 3, "text_content": "Yes"}},
    {"id": "o1", "type": "content-unlock-option", "relationships": {"reward": {"data": {"id": "r1", "type": "reward"}}}},
    {"id": "o2", "type": "content-unlock-option", "relationships": {"reward": {"data": {"id": "r2", "type": "reward"}}}},
    {"id": "r1", "type": "reward", "attributes": {"patron_amount_cents": 500}},
    {"id": "r2", "type": "reward", "attributes": {"patron_amount_cents": 300}},
    {"id": "t1", "type": "post_tag", "attributes": {"value": "audio"}}
  ],
  "links": {"next": "http://api/posts/page2"}
}`

const secondPostPage = `{
  "data": [{"id": "102", "type": "post", "attributes": {"title": "Free", "published_at": "2024-01-01T00:00:00Z"}}],
  "links": {}
}`

func TestCampaignPosts(t *testing.T) {
	f := &routeFetcher{routes: map[string]string{
		"http://api/posts?":     postPage,
		"http://api/posts/page2": secondPostPage,
	}}
	api := NewAPI(f, "http://api", nil)

	var posts []Post
	for p, err := range api.CampaignPosts(context.Background(), "u1", "camp1") {
		require.NoError(t, err)
		posts = append(posts, p)
	}
	require.Len(t, posts, 2)

	p := posts[0]
	assert.Equal(t, "101", p.ID)
	assert.Equal(t, "Episode 1", p.Title)
	assert.Equal(t, uint32(2), p.CommentCount)
	require.NotNil(t, p.Audio)
	assert.Equal(t, "ep1.mp3", p.Audio.FileName)
	assert.Nil(t, p.AudioPreview)
	require.Len(t, p.Media, 2)
	assert.Equal(t, "m2", p.Media[1].ID)
	require.NotNil(t, p.Media[1].Metadata.Dimensions)
	assert.Equal(t, uint32(640), p.Media[1].Metadata.Dimensions.W)
	require.NotNil(t, p.Poll)
	assert.Equal(t, "Yes", p.Poll.Choices[0].TextContent)
	assert.Equal(t, []string{"audio"}, p.Tags)
	assert.False(t, p.IsFree())
	assert.Equal(t, uint32(300), p.FeeRequired())
	assert.Equal(t, 2, p.UpdatedAt().Day())
	assert.Equal(t, "https://www.patreon.com/posts/101", SourceLink(p))

	free := posts[1]
	assert.True(t, free.IsFree())
	assert.Equal(t, uint32(0), free.FeeRequired())
	assert.Equal(t, free.PublishedAt, free.UpdatedAt())
	assert.Equal(t, "https://www.patreon.com/posts/102", SourceLink(free))

	assert.True(t, strings.Contains(f.calls[0], "filter[campaign_id]=camp1"))
}

func TestMembers(t *testing.T) {
	f := &routeFetcher{routes: map[string]string{
		"http://api/members": `{
		  "data": [{"id": "mem1", "type": "member",
		    "attributes": {"campaign_currency": "USD", "campaign_pledge_amount_cents": 500},
		    "relationships": {"campaign": {"data": {"id": "camp1", "type": "campaign"}}}}],
		  "included": [{"id": "camp1", "type": "campaign", "attributes": {"name": "Studio", "url": "https://www.patreon.com/studio", "is_active": true}}],
		  "links": {"next": null}
		}`,
	}}
	api := NewAPI(f, "http://api", nil)

	members, err := api.Members(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, uint32(500), members[0].PledgeCents)
	assert.Equal(t, "Studio", members[0].Campaign.Name)
	assert.True(t, members[0].Campaign.IsActive)
}

func TestMemberWithoutCampaignIsSchemaError(t *testing.T) {
	f := &routeFetcher{routes: map[string]string{
		"http://api/members": `{"data": [{"id": "mem1", "type": "member", "attributes": {}}]}`,
	}}
	api := NewAPI(f, "http://api", nil)

	_, err := api.Members(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errs.IsSchema(err))
}

func TestCurrentUser(t *testing.T) {
	f := &routeFetcher{routes: map[string]string{
		"http://api/current_user": `{"data": {"id": "u1", "type": "user", "attributes": {"full_name": "Ann"}}}`,
	}}
	api := NewAPI(f, "http://api", nil)

	user, err := api.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, User{ID: "u1", FullName: "Ann"}, user)
}

func TestUnauthorizedIsAuthError(t *testing.T) {
	f := &routeFetcher{routes: map[string]string{
		"http://api/current_user": `{"errors": [{"status": "401", "title": "Unauthorized"}]}`,
	}}
	api := NewAPI(f, "http://api", nil)

	_, err := api.CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
}

func TestComments(t *testing.T) {
	f := &routeFetcher{routes: map[string]string{
		"http://api/posts/101/comments": `{
		  "data": [{"id": "c1", "type": "comment", "attributes": {"body": "first", "created": "2024-03-01T10:00:00Z"},
		    "relationships": {"commenter": {"data": {"id": "u2", "type": "user"}}, "replies": {"data": [{"id": "c2", "type": "comment"}]}}}],
		  "included": [
		    {"id": "u2", "type": "user", "attributes": {"full_name": "Bob"}},
		    {"id": "u3", "type": "user", "attributes": {"full_name": "Cat"}},
		    {"id": "c2", "type": "comment", "attributes": {"body": "reply", "created": "2024-03-01T11:00:00Z"},
		      "relationships": {"commenter": {"data": {"id": "u3", "type": "user"}}}}
		  ],
		  "links": {"next": {"href": ""}}
		}`,
	}}
	api := NewAPI(f, "http://api", nil)

	comments, err := api.Comments(context.Background(), "101")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Bob", comments[0].Commenter.FullName)
	require.Len(t, comments[0].Replies, 1)
	assert.Equal(t, "reply", comments[0].Replies[0].Body)
	assert.Equal(t, "Cat", comments[0].Replies[0].Commenter.FullName)
}

func TestParseLinkForms(t *testing.T) {
	link, err := parseLink([]byte(`"http://next"`))
	require.NoError(t, err)
	assert.Equal(t, "http://next", link)

	link, err = parseLink([]byte(`{"href":"http://obj"}`))
	require.NoError(t, err)
	assert.Equal(t, "http://obj", link)

	link, err = parseLink(nil)
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestSourceLinkIgnoresTitleSlug(t *testing.T) {
	before := Post{ID: "12345", URL: "https://www.patreon.com/posts/old-title-12345"}
	after := Post{ID: "12345", URL: "https://www.patreon.com/posts/new-title-12345"}

	assert.Equal(t, SourceLink(before), SourceLink(after))
	assert.Equal(t, "https://www.patreon.com/posts/12345", SourceLink(after))
}
