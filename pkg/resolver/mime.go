package resolver

import (
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

const defaultMime = "application/octet-stream"

// MimeFromFilename guesses a content type from the file extension
func MimeFromFilename(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return defaultMime
	}
	t := filetype.GetType(ext)
	if t == filetype.Unknown || t.MIME.Value == "" {
		return defaultMime
	}
	return t.MIME.Value
}

// filenameFromURL returns the last path segment of raw without its query
func filenameFromURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	raw = strings.SplitN(raw, "?", 2)[0]
	return path.Base(raw)
}
