package diff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivist/pkg/model"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func summary(link string, updated time.Time) model.PostSummary {
	return model.PostSummary{ID: link, SourceLink: link, UpdatedAt: updated}
}

func TestFilterBoundary(t *testing.T) {
	known := map[string]time.Time{
		"equal": base,
		"newer": base,
		"older": base,
	}
	posts := []model.PostSummary{
		summary("equal", base),
		summary("newer", base.Add(time.Second)),
		summary("older", base.Add(-time.Hour)),
		summary("unknown", base.Add(-time.Hour)),
	}

	got := Filter(posts, known)

	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].SourceLink)
	assert.Equal(t, "unknown", got[1].SourceLink)
}

func TestFilterEmptyKnownIncludesAll(t *testing.T) {
	posts := []model.PostSummary{summary("a", base), summary("b", base)}
	assert.Equal(t, posts, Filter(posts, nil))
	assert.Equal(t, posts, Filter(posts, map[string]time.Time{}))
}

type fakeStore struct {
	known map[string]time.Time
	err   error
	asked []string
}

func (f *fakeStore) KnownUpdates(ctx context.Context, links []string) (map[string]time.Time, error) {
	f.asked = links
	return f.known, f.err
}

func TestEngineChanged(t *testing.T) {
	store := &fakeStore{known: map[string]time.Time{"a": base}}
	posts := []model.PostSummary{summary("a", base), summary("b", base)}

	got, err := Engine{Store: store}.Changed(context.Background(), posts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].SourceLink)
	assert.Equal(t, []string{"a", "b"}, store.asked)
}

func TestEngineForce(t *testing.T) {
	store := &fakeStore{known: map[string]time.Time{"a": base}}
	posts := []model.PostSummary{summary("a", base)}

	got, err := Engine{Store: store, Force: true}.Changed(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, posts, got)
	assert.Nil(t, store.asked, "force must not consult the store")
}

func TestEngineStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	_, err := Engine{Store: store}.Changed(context.Background(), []model.PostSummary{summary("a", base)})
	assert.ErrorContains(t, err, "db down")
}

func TestReconcile(t *testing.T) {
	s := summary("a", base)

	stale := Reconcile(model.Post{UpdatedAt: base.Add(-time.Minute)}, s)
	assert.Equal(t, base, stale.UpdatedAt)

	fresh := Reconcile(model.Post{UpdatedAt: base.Add(time.Minute)}, s)
	assert.Equal(t, base.Add(time.Minute), fresh.UpdatedAt)
	assert.False(t, Stale(fresh, s))
}
