package resolver

import (
	"fmt"
	"sort"
	"strings"

	errs "archivist/pkg/errors"
	"archivist/pkg/fanbox"
	"archivist/pkg/htmltext"
	"archivist/pkg/model"
)

// Cover images are served at a fixed size
const (
	coverWidth  = 1200
	coverHeight = 630
)

// ResolveFanbox converts a post body into a Document. cover, when set, is
// attached as an extra file; callers use its id as the thumbnail.
func ResolveFanbox(body fanbox.PostBody, cover string) (model.Document, error) {
	doc := model.NewDocument()

	if body.Blocks == nil {
		if err := resolveFlat(&doc, body); err != nil {
			return model.Document{}, err
		}
	} else {
		if err := resolveBlocks(&doc, body); err != nil {
			return model.Document{}, err
		}
	}

	if cover != "" {
		doc.AddFile(CoverFile(cover))
	}
	return doc, nil
}

// CoverFile describes a post cover image
func CoverFile(coverURL string) model.FileReference {
	name := filenameFromURL(coverURL)
	return model.FileReference{
		ID:        coverURL,
		Filename:  name,
		Mime:      MimeFromFilename(name),
		SourceURL: coverURL,
		Extra:     map[string]any{"width": coverWidth, "height": coverHeight},
	}
}

func resolveFlat(doc *model.Document, body fanbox.PostBody) error {
	if body.Text != "" {
		doc.AppendText(body.Text)
	}
	for _, img := range body.Images {
		doc.AppendFile(imageFile(img))
	}
	for _, v := range body.Videos {
		text, err := providerLink(v.ServiceProvider, v.VideoID)
		if err != nil {
			return err
		}
		doc.AppendText(text)
	}
	for _, f := range body.Files {
		doc.AppendFile(attachedFile(f))
	}
	return nil
}

func resolveBlocks(doc *model.Document, body fanbox.PostBody) error {
	if body.Text != "" {
		doc.AppendText(body.Text)
	}

	for _, block := range body.Blocks {
		switch b := block.(type) {
		case fanbox.ParagraphBlock:
			if b.Text == "" {
				doc.AppendText("  ")
				continue
			}
			styled, err := ApplyStyles(b.Text, b.Styles)
			if err != nil {
				return err
			}
			doc.AppendText(styled)

		case fanbox.HeaderBlock:
			styled, err := ApplyStyles(b.Text, b.Styles)
			if err != nil {
				return err
			}
			doc.AppendText("# " + styled)

		case fanbox.ImageBlock:
			img, ok := body.ImageMap[b.ImageID]
			if !ok {
				doc.AppendText(mismatch("Image", b.ImageID))
				continue
			}
			doc.AppendFile(imageFile(img))

		case fanbox.FileBlock:
			f, ok := body.FileMap[b.FileID]
			if !ok {
				doc.AppendText(mismatch("File", b.FileID))
				continue
			}
			doc.AppendFile(attachedFile(f))

		case fanbox.VideoBlock:
			v, ok := findVideo(body.Videos, b.VideoID)
			if !ok {
				doc.AppendText(mismatch("Video", b.VideoID))
				continue
			}
			text, err := providerLink(v.ServiceProvider, v.VideoID)
			if err != nil {
				return err
			}
			doc.AppendText(text)

		case fanbox.EmbedBlock:
			e, ok := body.EmbedMap[b.EmbedID]
			if !ok {
				doc.AppendText(mismatch("Embed", b.EmbedID))
				continue
			}
			text, err := providerLink(e.ServiceProvider, e.ContentID)
			if err != nil {
				return err
			}
			doc.AppendText(text)

		case fanbox.URLEmbedBlock:
			e, ok := body.URLEmbedMap[b.URLEmbedID]
			if !ok {
				doc.AppendText(mismatch("UrlEmbed", b.URLEmbedID))
				continue
			}
			doc.AppendText(quoteURLEmbed(e))

		default:
			return errs.Schemaf("unhandled block type %s", block.BlockType())
		}
	}

	// Side-table entries no block points at are kept as plain files
	for _, id := range sortedKeys(body.ImageMap) {
		doc.AddFile(imageFile(body.ImageMap[id]))
	}
	for _, id := range sortedKeys(body.FileMap) {
		doc.AddFile(attachedFile(body.FileMap[id]))
	}
	return nil
}

// ApplyStyles renders style ranges as markdown. Offsets and lengths count
// runes. Ranges are applied from the highest offset down so earlier
// offsets stay valid.
func ApplyStyles(text string, styles []fanbox.Style) (string, error) {
	if len(styles) == 0 {
		return text, nil
	}

	ordered := make([]fanbox.Style, len(styles))
	copy(ordered, styles)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Offset > ordered[j].Offset
	})

	runes := []rune(text)
	for _, s := range ordered {
		var mark string
		switch s.Type {
		case "bold":
			mark = "**"
		default:
			return "", errs.Schemaf("unknown text style %q", s.Type)
		}

		start := clamp(int(s.Offset), len(runes))
		end := clamp(int(s.Offset)+int(s.Length), len(runes))

		styled := make([]rune, 0, len(runes)+2*len(mark))
		styled = append(styled, runes[:start]...)
		styled = append(styled, []rune(mark)...)
		styled = append(styled, runes[start:end]...)
		styled = append(styled, []rune(mark)...)
		styled = append(styled, runes[end:]...)
		runes = styled
	}
	return string(runes), nil
}

func providerLink(provider, id string) (string, error) {
	switch provider {
	case "youtube":
		return fmt.Sprintf("[![youtube](https://img.youtube.com/vi/%s/0.jpg)](https://www.youtube.com/watch?v=%s)", id, id), nil
	case "vimeo":
		return fmt.Sprintf("[vimeo](https://vimeo.com/%s)", id), nil
	case "soundcloud":
		return fmt.Sprintf("[soundcloud](https://soundcloud.com/%s)", id), nil
	case "twitter":
		return fmt.Sprintf("[twitter](https://twitter.com/i/web/status/%s)", id), nil
	case "google_forms":
		return fmt.Sprintf("[google_forms](https://docs.google.com/forms/d/e/%s/viewform)", id), nil
	case "fanbox":
		return fmt.Sprintf("[fanbox](https://www.fanbox.cc/%s)", strings.TrimPrefix(id, "/")), nil
	default:
		return "", errs.Schemaf("unknown embed provider %q", provider)
	}
}

func quoteURLEmbed(e fanbox.URLEmbed) string {
	switch v := e.(type) {
	case fanbox.HTMLEmbed:
		if link := htmltext.FirstLink(v.HTML); link != "" {
			return "> " + link
		}
		return "> " + v.ID
	case fanbox.FanboxPostEmbed:
		return "> " + fanbox.SourceLink(v.PostInfo.CreatorID, v.PostInfo.ID)
	case fanbox.DefaultEmbed:
		return "> " + v.URL
	default:
		return "> " + e.EmbedID()
	}
}

func imageFile(img fanbox.PostImage) model.FileReference {
	name := img.Filename()
	return model.FileReference{
		ID:        img.ID,
		Filename:  name,
		Mime:      MimeFromFilename(name),
		SourceURL: img.OriginalURL,
		Extra:     map[string]any{"width": img.Width, "height": img.Height},
	}
}

func attachedFile(f fanbox.PostFile) model.FileReference {
	name := f.Filename()
	return model.FileReference{
		ID:        f.ID,
		Filename:  name,
		Mime:      MimeFromFilename(name),
		SourceURL: f.URL,
		Extra:     map[string]any{"size": f.Size},
	}
}

func findVideo(videos []fanbox.PostVideo, id string) (fanbox.PostVideo, bool) {
	for _, v := range videos {
		if v.VideoID == id {
			return v, true
		}
	}
	return fanbox.PostVideo{}, false
}

func mismatch(kind, id string) string {
	return fmt.Sprintf("[%s Mismatch: %s]", kind, id)
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
