package sources

import (
	"context"
	"fmt"
	"sync"

	"archivist/pkg/archiver"
	"archivist/pkg/config"
	errs "archivist/pkg/errors"
	"archivist/pkg/logger"
	"archivist/pkg/model"
	"archivist/pkg/patreon"
	"archivist/pkg/resolver"
)

// Patreon archives the campaigns a Patreon account is a member of
type Patreon struct {
	api    *patreon.API
	filter config.FilterConfig
	logger logger.Logger

	mu     sync.Mutex
	userID string
	// posts caches listed posts; the listing already carries full content
	posts map[string]patreon.Post
}

func NewPatreon(api *patreon.API, filter config.FilterConfig, log logger.Logger) *Patreon {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Patreon{api: api, filter: filter, logger: log, posts: make(map[string]patreon.Post)}
}

func (s *Patreon) Platform() model.Platform {
	return model.PlatformPatreon
}

func (s *Patreon) currentUser(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.userID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()
	s.logger.InfoWithFields("Logged in", map[string]interface{}{"user": user.FullName})
	return user.ID, nil
}

// Creators lists member campaigns. A paid pledge counts as supporting,
// a free membership as following.
func (s *Patreon) Creators(ctx context.Context) ([]model.Creator, error) {
	userID, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.api.Members(ctx, userID)
	if err != nil {
		return nil, err
	}

	save := s.filter.Save
	if save == "" {
		save = config.SaveSupporting
	}

	seen := make(map[string]struct{}, len(members))
	var creators []model.Creator
	for _, m := range members {
		supporting := m.PledgeCents > 0
		if supporting && !save.AcceptSupporting() || !supporting && !save.AcceptFollowing() {
			continue
		}
		if _, ok := seen[m.Campaign.ID]; ok {
			continue
		}
		seen[m.Campaign.ID] = struct{}{}

		c := model.Creator{
			ID:          m.Campaign.ID,
			DisplayName: m.Campaign.Name,
			Fee:         m.PledgeCents,
			Platform:    model.PlatformPatreon,
			Link:        m.Campaign.URL,
		}
		if !s.filter.AcceptCreator(c.ID, c.Fee) {
			continue
		}
		creators = append(creators, c)
	}
	return creators, nil
}

// Posts lists the campaign's posts and keeps them for Fetch
func (s *Patreon) Posts(ctx context.Context, c model.Creator) ([]model.PostSummary, error) {
	userID, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.PostSummary
	for post, err := range s.api.CampaignPosts(ctx, userID, c.ID) {
		if err != nil {
			return nil, err
		}
		link := patreon.SourceLink(post)

		s.mu.Lock()
		s.posts[link] = post
		s.mu.Unlock()

		out = append(out, model.PostSummary{
			ID:           post.ID,
			CreatorID:    c.ID,
			Title:        post.Title,
			FeeRequired:  post.FeeRequired(),
			PublishedAt:  post.PublishedAt,
			UpdatedAt:    post.UpdatedAt(),
			IsRestricted: !post.CanView,
			SourceLink:   link,
		})
	}
	return out, nil
}

// Fetch fetches only the comments; the content came with the listing
func (s *Patreon) Fetch(ctx context.Context, summary model.PostSummary) (archiver.Fetched, error) {
	s.mu.Lock()
	post, ok := s.posts[summary.SourceLink]
	s.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, "post was not listed: "+summary.SourceLink)
	}

	var comments []patreon.Comment
	if post.CommentCount > 0 {
		var err error
		if comments, err = s.api.Comments(ctx, post.ID); err != nil {
			return nil, err
		}
	}
	return patreonFetched{summary: summary, post: post, comments: comments}, nil
}

type patreonFetched struct {
	summary  model.PostSummary
	post     patreon.Post
	comments []patreon.Comment
}

func (f patreonFetched) Resolve() (model.Post, error) {
	doc, err := resolver.ResolvePatreon(f.post)
	if err != nil {
		return model.Post{}, fmt.Errorf("resolve post %s: %w", f.post.ID, err)
	}

	return model.Post{
		ID:          f.post.ID,
		CreatorID:   f.summary.CreatorID,
		Title:       f.post.Title,
		SourceLink:  f.summary.SourceLink,
		FeeRequired: f.post.FeeRequired(),
		PublishedAt: f.post.PublishedAt,
		UpdatedAt:   f.post.UpdatedAt(),
		Tags:        f.post.Tags,
		Body:        doc,
		Comments:    resolver.PatreonComments(f.comments),
		Thumb:       firstImage(doc),
	}, nil
}
