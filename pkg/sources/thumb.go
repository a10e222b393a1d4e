package sources

import (
	"strings"

	"archivist/pkg/model"
)

// firstImage returns the id of the first image file of doc, or ""
func firstImage(doc model.Document) string {
	for _, f := range doc.FileList() {
		if strings.HasPrefix(f.Mime, "image/") {
			return f.ID
		}
	}
	return ""
}
