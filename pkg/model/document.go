package model

// Block is one unit of resolved content: Text or FileRef
type Block interface {
	block()
}

// Text is a run of markdown text
type Text struct {
	Text string
}

// FileRef points at an entry of Document.Files
type FileRef struct {
	FileID string
}

func (Text) block()    {}
func (FileRef) block() {}

// FileReference describes one remote file and its local identity
type FileReference struct {
	ID        string
	Filename  string
	Mime      string
	SourceURL string
	Extra     map[string]any
}

// Document is the ordered content of a post plus the files it references.
// Files is keyed by FileReference.ID; Order keeps first-seen order so
// downloads and file rows are deterministic.
type Document struct {
	Blocks []Block
	Files  map[string]FileReference
	Order  []string
}

// NewDocument returns an empty document ready for appends
func NewDocument() Document {
	return Document{Files: make(map[string]FileReference)}
}

// AppendText adds a Text block
func (d *Document) AppendText(s string) {
	d.Blocks = append(d.Blocks, Text{Text: s})
}

// AddFile registers f without adding a block. The first registration of an
// id wins; later ones are ignored. It reports whether f was new.
func (d *Document) AddFile(f FileReference) bool {
	if d.Files == nil {
		d.Files = make(map[string]FileReference)
	}
	if _, ok := d.Files[f.ID]; ok {
		return false
	}
	d.Files[f.ID] = f
	d.Order = append(d.Order, f.ID)
	return true
}

// AppendFile registers f and adds a FileRef block pointing at it
func (d *Document) AppendFile(f FileReference) {
	d.AddFile(f)
	d.Blocks = append(d.Blocks, FileRef{FileID: f.ID})
}

// FileList returns the referenced files in first-seen order
func (d *Document) FileList() []FileReference {
	out := make([]FileReference, 0, len(d.Order))
	for _, id := range d.Order {
		out = append(out, d.Files[id])
	}
	return out
}
