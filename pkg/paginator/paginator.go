// Package paginator walks APIs that return one page of items plus a link
// to the next page.
package paginator

import (
	"context"
	"fmt"
	"iter"

	errs "archivist/pkg/errors"
)

// Fetcher retrieves the raw body behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// PageParser decodes one page into its items and the next page URL.
// An empty next ends the walk.
type PageParser[T any] func(body []byte) (items []T, next string, err error)

// Paginator lazily yields the items of a chain of pages. It holds no walk
// state, so one Paginator may run several walks concurrently.
type Paginator[T any] struct {
	fetcher Fetcher
	parse   PageParser[T]
}

func New[T any](fetcher Fetcher, parse PageParser[T]) *Paginator[T] {
	return &Paginator[T]{fetcher: fetcher, parse: parse}
}

// All yields every item starting at firstURL. The first fetch or parse
// error is yielded once and ends the sequence. A next link that was
// already visited is reported as a schema error.
func (p *Paginator[T]) All(ctx context.Context, firstURL string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		seen := make(map[string]struct{})

		for url := firstURL; url != ""; {
			if _, ok := seen[url]; ok {
				yield(zero, errs.Schemaf("pagination loop at %s", url))
				return
			}
			seen[url] = struct{}{}

			body, err := p.fetcher.Fetch(ctx, url)
			if err != nil {
				yield(zero, fmt.Errorf("fetch page %s: %w", url, err))
				return
			}

			items, next, err := p.parse(body)
			if err != nil {
				yield(zero, fmt.Errorf("parse page %s: %w", url, err))
				return
			}

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			url = next
		}
	}
}

// Collect gathers every item, or returns the first error and no items
func (p *Paginator[T]) Collect(ctx context.Context, firstURL string) ([]T, error) {
	var out []T
	for item, err := range p.All(ctx, firstURL) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
