package sources

import (
	"context"
	"fmt"

	"archivist/pkg/archiver"
	"archivist/pkg/config"
	errs "archivist/pkg/errors"
	"archivist/pkg/fanbox"
	"archivist/pkg/logger"
	"archivist/pkg/model"
	"archivist/pkg/resolver"
)

// Fanbox archives the creators a pixiv FANBOX account follows or supports
type Fanbox struct {
	api    *fanbox.API
	filter config.FilterConfig
	logger logger.Logger
}

func NewFanbox(api *fanbox.API, filter config.FilterConfig, log logger.Logger) *Fanbox {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Fanbox{api: api, filter: filter, logger: log}
}

func (s *Fanbox) Platform() model.Platform {
	return model.PlatformFanbox
}

// Creators merges the following and supporting lists selected by the save
// type. A supporting entry replaces a following one since it carries the
// plan fee.
func (s *Fanbox) Creators(ctx context.Context) ([]model.Creator, error) {
	var (
		order []string
		byID  = make(map[string]model.Creator)
	)
	put := func(c model.Creator) {
		if _, ok := byID[c.ID]; !ok {
			order = append(order, c.ID)
		}
		byID[c.ID] = c
	}

	save := s.filter.Save
	if save == "" {
		save = config.SaveSupporting
	}

	if save.AcceptFollowing() {
		following, err := s.api.FollowingCreators(ctx)
		if err != nil {
			return nil, err
		}
		for _, f := range following {
			put(fanboxCreator(f.CreatorID, f.User.Name, 0))
		}
	}
	if save.AcceptSupporting() {
		supporting, err := s.api.SupportingCreators(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range supporting {
			put(fanboxCreator(p.CreatorID, p.User.Name, p.Fee))
		}
	}

	creators := make([]model.Creator, 0, len(order))
	for _, id := range order {
		c := byID[id]
		if !s.filter.AcceptCreator(c.ID, c.Fee) {
			s.logger.DebugWithFields("Creator excluded by filter", map[string]interface{}{
				"creator": c.ID,
				"fee":     c.Fee,
			})
			continue
		}
		creators = append(creators, c)
	}
	return creators, nil
}

func fanboxCreator(id, name string, fee uint32) model.Creator {
	return model.Creator{
		ID:          id,
		DisplayName: name,
		Fee:         fee,
		Platform:    model.PlatformFanbox,
		Link:        fmt.Sprintf("https://%s.fanbox.cc", id),
	}
}

// Posts lists every post of the creator
func (s *Fanbox) Posts(ctx context.Context, c model.Creator) ([]model.PostSummary, error) {
	var out []model.PostSummary
	for item, err := range s.api.CreatorPosts(ctx, c.ID) {
		if err != nil {
			return nil, err
		}
		out = append(out, model.PostSummary{
			ID:           item.ID,
			CreatorID:    c.ID,
			Title:        item.Title,
			FeeRequired:  item.FeeRequired,
			PublishedAt:  item.PublishedDatetime,
			UpdatedAt:    item.UpdatedDatetime,
			IsRestricted: item.IsRestricted,
			SourceLink:   fanbox.SourceLink(c.ID, item.ID),
		})
	}
	return out, nil
}

// Fetch downloads the full post and its comments
func (s *Fanbox) Fetch(ctx context.Context, summary model.PostSummary) (archiver.Fetched, error) {
	post, err := s.api.Post(ctx, summary.ID)
	if err != nil {
		return nil, err
	}
	comments, err := s.api.Comments(ctx, summary.ID)
	if err != nil {
		return nil, err
	}
	return fanboxFetched{summary: summary, post: post, comments: comments}, nil
}

type fanboxFetched struct {
	summary  model.PostSummary
	post     *fanbox.Post
	comments []fanbox.Comment
}

func (f fanboxFetched) Resolve() (model.Post, error) {
	if f.post.Body == nil {
		return model.Post{}, errs.Schemaf("post %s has no body", f.post.ID)
	}

	doc, err := resolver.ResolveFanbox(*f.post.Body, f.post.CoverImageURL)
	if err != nil {
		return model.Post{}, fmt.Errorf("resolve post %s: %w", f.post.ID, err)
	}

	thumb := f.post.CoverImageURL
	if thumb == "" {
		thumb = firstImage(doc)
	}

	return model.Post{
		ID:          f.post.ID,
		CreatorID:   f.summary.CreatorID,
		Title:       f.post.Title,
		SourceLink:  f.summary.SourceLink,
		FeeRequired: f.post.FeeRequired,
		PublishedAt: f.post.PublishedDatetime,
		UpdatedAt:   f.post.UpdatedDatetime,
		Tags:        f.post.Tags,
		Body:        doc,
		Comments:    resolver.FanboxComments(f.comments),
		Thumb:       thumb,
	}, nil
}
