package patreon

import (
	"bytes"
	"encoding/json"

	errs "archivist/pkg/errors"
)

// resource is one JSON:API resource object
type resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]relationship `json:"relationships"`
}

type identifier struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type relationship struct {
	Data json.RawMessage `json:"data"`
}

// one returns the single linked identifier, or nil when the link is empty
func (r relationship) one() (*identifier, error) {
	if len(r.Data) == 0 || bytes.Equal(r.Data, []byte("null")) {
		return nil, nil
	}
	var id identifier
	if err := json.Unmarshal(r.Data, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (r relationship) many() ([]identifier, error) {
	if len(r.Data) == 0 || bytes.Equal(r.Data, []byte("null")) {
		return nil, nil
	}
	var ids []identifier
	if err := json.Unmarshal(r.Data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// document is a decoded JSON:API response with its included resources
// indexed by type and id.
type document struct {
	primary  []resource
	included map[identifier]resource
	next     string
}

type rawDocument struct {
	Data     json.RawMessage `json:"data"`
	Included []resource      `json:"included"`
	Errors   []struct {
		Code   int    `json:"code"`
		Status string `json:"status"`
		Title  string `json:"title"`
	} `json:"errors"`
	Links struct {
		Next json.RawMessage `json:"next"`
	} `json:"links"`
}

func parseDocument(data []byte) (*document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "decode json:api document")
	}
	if len(raw.Errors) > 0 {
		e := raw.Errors[0]
		if e.Status == "401" || e.Status == "403" {
			return nil, errs.New(errs.ErrorTypeAuth, "patreon: "+e.Title)
		}
		return nil, errs.New(errs.ErrorTypeClient, "patreon: "+e.Title)
	}

	doc := &document{included: make(map[identifier]resource, len(raw.Included))}
	for _, r := range raw.Included {
		doc.included[identifier{ID: r.ID, Type: r.Type}] = r
	}

	trimmed := bytes.TrimSpace(raw.Data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return nil, errs.Schemaf("json:api document has no data")
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &doc.primary); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "decode json:api data")
		}
	default:
		var one resource
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, err, "decode json:api data")
		}
		doc.primary = []resource{one}
	}

	next, err := parseLink(raw.Links.Next)
	if err != nil {
		return nil, err
	}
	doc.next = next
	return doc, nil
}

// parseLink accepts both "href" strings and {"href": ...} link objects
func parseLink(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Href string `json:"href"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, err, "decode next link")
	}
	return obj.Href, nil
}

// lookup resolves an identifier against the included resources
func (d *document) lookup(id *identifier) (resource, bool) {
	if id == nil {
		return resource{}, false
	}
	r, ok := d.included[*id]
	return r, ok
}

func (d *document) related(r resource, name string) (resource, bool, error) {
	id, err := r.Relationships[name].one()
	if err != nil {
		return resource{}, false, errs.Wrap(errs.ErrorTypeParsing, err, "relationship "+name)
	}
	res, ok := d.lookup(id)
	return res, ok, nil
}

func (d *document) relatedMany(r resource, name string) ([]resource, error) {
	ids, err := r.Relationships[name].many()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "relationship "+name)
	}
	out := make([]resource, 0, len(ids))
	for i := range ids {
		if res, ok := d.lookup(&ids[i]); ok {
			out = append(out, res)
		}
	}
	return out, nil
}

func attributes[T any](r resource) (T, error) {
	var v T
	if len(r.Attributes) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(r.Attributes, &v); err != nil {
		return v, errs.Wrap(errs.ErrorTypeParsing, err, "attributes of "+r.Type+" "+r.ID)
	}
	return v, nil
}
