package paginator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "archivist/pkg/errors"
)

type pageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *pageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, errs.FromStatus(404, "no page "+url)
	}
	return []byte(body), nil
}

type page struct {
	Items   []int  `json:"items"`
	NextURL string `json:"nextUrl"`
}

func parsePage(body []byte) ([]int, string, error) {
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, "", err
	}
	return p.Items, p.NextURL, nil
}

func TestCollectFollowsNextLinks(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		"p1": `{"items":[1,2],"nextUrl":"p2"}`,
		"p2": `{"items":[3],"nextUrl":"p3"}`,
		"p3": `{"items":[],"nextUrl":""}`,
	}}

	items, err := New(f, parsePage).Collect(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, items)
	assert.Equal(t, []string{"p1", "p2", "p3"}, f.calls)
}

func TestAllIsLazy(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		"p1": `{"items":[1,2],"nextUrl":"p2"}`,
		"p2": `{"items":[3],"nextUrl":""}`,
	}}

	for item, err := range New(f, parsePage).All(context.Background(), "p1") {
		require.NoError(t, err)
		if item == 1 {
			break
		}
	}
	assert.Equal(t, []string{"p1"}, f.calls, "second page must not be fetched after break")
}

func TestCollectDiscardsPartialResultsOnError(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		"p1": `{"items":[1,2],"nextUrl":"missing"}`,
	}}

	items, err := New(f, parsePage).Collect(context.Background(), "p1")
	require.Error(t, err)
	assert.Nil(t, items)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
}

func TestAllYieldsErrorOnce(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{"p1": `not json`}}

	var errCount, itemCount int
	for _, err := range New(f, parsePage).All(context.Background(), "p1") {
		if err != nil {
			errCount++
			continue
		}
		itemCount++
	}
	assert.Equal(t, 1, errCount)
	assert.Zero(t, itemCount)
}

func TestRepeatedNextIsSchemaError(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		"p1": `{"items":[1],"nextUrl":"p2"}`,
		"p2": `{"items":[2],"nextUrl":"p1"}`,
	}}

	_, err := New(f, parsePage).Collect(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeSchema))
	assert.Len(t, f.calls, 2)
}

func TestParserErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("bad page")
	f := &pageFetcher{pages: map[string]string{"p1": `{}`}}

	_, err := New(f, func([]byte) ([]int, string, error) {
		return nil, "", sentinel
	}).Collect(context.Background(), "p1")
	assert.ErrorIs(t, err, sentinel)
}

func TestIndependentWalks(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		"a1": `{"items":[1],"nextUrl":"a2"}`,
		"a2": `{"items":[2]}`,
		"b1": `{"items":[10],"nextUrl":""}`,
	}}
	p := New(f, parsePage)

	var wg sync.WaitGroup
	results := make([][]int, 2)
	for i, first := range []string{"a1", "b1"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := p.Collect(context.Background(), first)
			assert.NoError(t, err)
			results[i] = items
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{1, 2}, results[0])
	assert.Equal(t, []int{10}, results[1])
}
