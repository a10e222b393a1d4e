package scheduler

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivist/pkg/logger"
)

func itoa(i int) string { return strconv.Itoa(i) }

func TestRunBoundsConcurrency(t *testing.T) {
	var current, peak int32
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	results := Run(2, items, itoa, func(ctx context.Context, i int) (int, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return i * i, nil
	})

	require.Len(t, results, 10)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunFailureDoesNotCancelSiblings(t *testing.T) {
	boom := errors.New("boom")
	items := []int{1, 2, 3, 4, 5}

	log := logger.NewTestLogger()
	results := RunWithLogger(log, 3, items, itoa, func(ctx context.Context, i int) (string, error) {
		if i == 2 {
			return "", boom
		}
		if i == 4 {
			panic("bad item")
		}
		return "done-" + itoa(i), nil
	})

	ok, failed := Split(results)
	require.Len(t, ok, 3)
	require.Len(t, failed, 2)

	sort.Slice(failed, func(a, b int) bool { return failed[a].Key < failed[b].Key })
	assert.ErrorIs(t, failed[0].Err, boom)
	assert.Equal(t, "4", failed[1].Key)
	assert.ErrorContains(t, failed[1].Err, "panicked")

	values := map[string]string{}
	for _, r := range ok {
		values[r.Key] = r.Value
		assert.Equal(t, r.Key, itoa(r.Item))
	}
	assert.Equal(t, map[string]string{"1": "done-1", "3": "done-3", "5": "done-5"}, values)

	var batch *logger.LogMessage
	for _, m := range log.GetMessages() {
		if m.Message == "Batch finished" {
			batch = &m
		}
	}
	require.NotNil(t, batch)
	assert.Equal(t, int64(5), batch.Fields["processed"])
	assert.Equal(t, 3, batch.Fields["workers"])
}

func TestRunEmpty(t *testing.T) {
	results := Run(4, nil, itoa, func(ctx context.Context, i int) (int, error) {
		t.Fatal("task must not run")
		return 0, nil
	})
	assert.Empty(t, results)
}

func TestRunRecordsDuration(t *testing.T) {
	results := Run(1, []int{1}, itoa, func(ctx context.Context, i int) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return i, nil
	})
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Duration, 5*time.Millisecond)
}
