package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/memmcp/memmcp/internal/errors"
)

// batchParallelism bounds how many item groups run at once.
const batchParallelism = 8

// ItemResult is one entry of a batch tool response. Results come back
// in input order, one per item, with either a value or an error.
type ItemResult struct {
	OK    bool       `json:"ok"`
	Value any        `json:"value,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
}

// BatchOutput is the common envelope of the batch tools.
type BatchOutput struct {
	Results []ItemResult `json:"results"`
}

// runBatch executes opFn for every item. Items sharing a non-empty key
// (a file path) run serialized in input order; distinct keys run
// concurrently, bounded by batchParallelism. Items with an empty key
// are freely parallel. A failing or panicking item is recorded in its
// slot and never aborts the rest of the batch.
func runBatch[T any](ctx context.Context, items []T, keyFn func(T) string, opFn func(context.Context, T) (any, error)) []ItemResult {
	results := make([]ItemResult, len(items))

	groups := make(map[string][]int)
	var order []string
	free := 0
	for i, item := range items {
		key := ""
		if keyFn != nil {
			key = keyFn(item)
		}
		if key == "" {
			// unique synthetic key: each free item is its own group
			key = fmt.Sprintf("\x00free-%d", free)
			free++
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	var g errgroup.Group
	g.SetLimit(batchParallelism)
	for _, key := range order {
		indexes := groups[key]
		g.Go(func() error {
			for _, i := range indexes {
				results[i] = runItem(ctx, items[i], opFn)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runItem executes one item with panic isolation.
func runItem[T any](ctx context.Context, item T, opFn func(context.Context, T) (any, error)) (res ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ItemResult{
				OK: false,
				Error: infoFromError(errors.Newf(errors.KindInternal,
					"operation panicked: %v", r)),
			}
			slog.Error("batch item panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	if err := ctx.Err(); err != nil {
		return ItemResult{OK: false, Error: infoFromError(err)}
	}
	value, err := opFn(ctx, item)
	if err != nil {
		return ItemResult{OK: false, Error: infoFromError(err)}
	}
	return ItemResult{OK: true, Value: value}
}
