package resolver

import (
	"archivist/pkg/fanbox"
	"archivist/pkg/model"
	"archivist/pkg/patreon"
)

// FanboxComments converts a comment listing, keeping two levels
func FanboxComments(in []fanbox.Comment) []model.Comment {
	return model.TrimComments(convertFanbox(in))
}

func convertFanbox(in []fanbox.Comment) []model.Comment {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Comment, len(in))
	for i, c := range in {
		out[i] = model.Comment{
			Author:  c.User.Name,
			Body:    c.Body,
			Replies: convertFanbox(c.Replies),
		}
	}
	return out
}

// PatreonComments converts patreon comments, keeping two levels
func PatreonComments(in []patreon.Comment) []model.Comment {
	return model.TrimComments(convertPatreon(in))
}

func convertPatreon(in []patreon.Comment) []model.Comment {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Comment, len(in))
	for i, c := range in {
		out[i] = model.Comment{
			Author:  c.Commenter.FullName,
			Body:    c.Body,
			Replies: convertPatreon(c.Replies),
		}
	}
	return out
}
