package resolver

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"archivist/pkg/htmltext"
	"archivist/pkg/model"
	"archivist/pkg/patreon"
)

// ResolvePatreon converts a patreon post into a Document: the converted
// HTML content, then the audio, other media, the poll and the embed.
func ResolvePatreon(post patreon.Post) (model.Document, error) {
	doc := model.NewDocument()

	if text := htmltext.Convert(post.Content); text != "" {
		doc.AppendText(text)
	}

	var audioBase string
	if post.Audio != nil {
		f := mediaFile(*post.Audio)
		audioBase = strings.TrimSuffix(f.Filename, path.Ext(f.Filename))
		doc.AppendFile(f)
	}

	var coverThumb string
	if post.Image != nil {
		coverThumb = post.Image.ThumbSquareURL
	}

	for _, m := range post.Media {
		if isSameMedia(post.Audio, m) || isSameMedia(post.AudioPreview, m) {
			continue
		}
		f := mediaFile(m)
		if post.Audio != nil && coverThumb != "" && m.ImageURLs != nil && m.ImageURLs.Thumbnail == coverThumb {
			f.Filename = audioBase + ".thumb" + path.Ext(f.Filename)
		}
		if _, dup := doc.Files[f.ID]; dup {
			continue
		}
		doc.AppendFile(f)
	}

	if post.Poll != nil && len(post.Poll.Choices) > 0 {
		doc.AppendText(PollTable(post.Poll.Choices))
	}

	if post.Embed != nil && post.Embed.URL != "" {
		doc.AppendText("> " + post.Embed.URL)
	}

	return doc, nil
}

// PollTable renders poll choices as a markdown table with a ten step bar
func PollTable(choices []patreon.PollChoice) string {
	nameWidth, votesWidth := len("Name"), len("Votes")
	var total uint32
	votes := make([]string, len(choices))
	for _, c := range choices {
		total += c.NumResponses
	}
	if total == 0 {
		total = 1
	}
	for i, c := range choices {
		pct := float64(c.NumResponses) / float64(total)
		votes[i] = fmt.Sprintf("%d (%.0f%%)", c.NumResponses, pct*100)
		nameWidth = max(nameWidth, utf8.RuneCountInString(c.TextContent))
		votesWidth = max(votesWidth, len(votes[i]))
	}

	lines := []string{
		fmt.Sprintf("| %s | Percentage | %s |", pad("Name", nameWidth), pad("Votes", votesWidth)),
		fmt.Sprintf("|-%s-|------------|-%s-|", strings.Repeat("-", nameWidth), strings.Repeat("-", votesWidth)),
	}
	for i, c := range choices {
		pct := float64(c.NumResponses) / float64(total)
		bar := strings.Repeat("#", int(pct*10))
		lines = append(lines, fmt.Sprintf("| %s | %s | %s |", pad(c.TextContent, nameWidth), pad(bar, 10), pad(votes[i], votesWidth)))
	}
	return strings.Join(lines, "\n")
}

func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func isSameMedia(ref *patreon.Media, m patreon.Media) bool {
	return ref != nil && ref.ID == m.ID
}

func mediaFile(m patreon.Media) model.FileReference {
	name := m.FileName
	if name == "" {
		name = filenameFromURL(m.DownloadURL)
	}
	// Image uploads sometimes carry the upload URL as their name
	if strings.Contains(name, "/") {
		name = filenameFromURL(name)
	}

	f := model.FileReference{
		ID:        m.ID,
		Filename:  name,
		Mime:      MimeFromFilename(name),
		SourceURL: m.DownloadURL,
	}
	if d := m.Metadata.Dimensions; d != nil {
		f.Extra = map[string]any{"width": d.W, "height": d.H}
	}
	return f
}
