package mcp

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memmcp/memmcp/internal/errors"
)

func TestRunBatchPreservesOrder(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	results := runBatch(context.Background(), items, nil, func(_ context.Context, i int) (any, error) {
		return i * 10, nil
	})

	require.Len(t, results, 5)
	for i, r := range results {
		assert.True(t, r.OK)
		assert.Equal(t, i*10, r.Value)
	}
}

func TestRunBatchIsolatesItemErrors(t *testing.T) {
	items := []int{1, 2, 3}
	results := runBatch(context.Background(), items, nil, func(_ context.Context, i int) (any, error) {
		if i == 2 {
			return nil, errors.New(errors.KindInvalidArgument, "bad item")
		}
		return i, nil
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, string(errors.KindInvalidArgument), results[1].Error.Kind)
	assert.Equal(t, "bad item", results[1].Error.Message)
	assert.True(t, results[2].OK)
}

func TestRunBatchRecoversPanics(t *testing.T) {
	items := []string{"ok", "boom", "ok"}
	results := runBatch(context.Background(), items, nil, func(_ context.Context, s string) (any, error) {
		if s == "boom" {
			panic("exploded")
		}
		return s, nil
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	require.NotNil(t, results[1].Error)
	assert.Equal(t, string(errors.KindInternal), results[1].Error.Kind)
	assert.Contains(t, results[1].Error.Message, "exploded")
	assert.True(t, results[2].OK)
}

func TestRunBatchSerializesSameKey(t *testing.T) {
	// All items share one key, so execution order must match input
	// order even though groups run on the errgroup.
	var mu sync.Mutex
	var executed []int

	items := []int{0, 1, 2, 3, 4, 5, 6, 7}
	results := runBatch(context.Background(), items, func(int) string { return "same-file" },
		func(_ context.Context, i int) (any, error) {
			mu.Lock()
			executed = append(executed, i)
			mu.Unlock()
			return i, nil
		})

	require.Len(t, results, 8)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, executed)
}

func TestRunBatchDistinctKeysAllComplete(t *testing.T) {
	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}
	results := runBatch(context.Background(), items, func(i int) string { return "file-" + strconv.Itoa(i) },
		func(_ context.Context, i int) (any, error) {
			return i, nil
		})

	require.Len(t, results, 40)
	for i, r := range results {
		require.True(t, r.OK)
		assert.Equal(t, i, r.Value)
	}
}

func TestRunBatchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := runBatch(ctx, []int{1, 2}, nil, func(_ context.Context, i int) (any, error) {
		return i, nil
	})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK)
		require.NotNil(t, r.Error)
		assert.Equal(t, string(errors.KindCancelled), r.Error.Kind)
	}
}

func TestRunBatchEmptyItems(t *testing.T) {
	results := runBatch(context.Background(), nil, nil, func(_ context.Context, i int) (any, error) {
		return i, nil
	})
	assert.Empty(t, results)
}
