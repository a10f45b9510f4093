package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"essync/core/search"

	"go.uber.org/zap"
)

const (
	scrollPageSize  = 100
	scrollKeepAlive = 60 * time.Second
	deleteChunk     = 10000
)

// DropClass deletes every indexed document of class. All pages of the scroll
// are read before the first delete is submitted. A missing index, or a class
// with no documents, changes nothing.
func DropClass(ctx context.Context, sink search.Sink, index, class string, logger *zap.Logger) (int, error) {
	page, err := sink.Scroll(ctx, index, class, scrollPageSize, scrollKeepAlive)
	if errors.Is(err, search.ErrIndexNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scroll %s documents: %w", class, err)
	}

	scrollID := page.ScrollID
	defer func() {
		if err := sink.ClearScroll(context.WithoutCancel(ctx), scrollID); err != nil {
			logger.Warn("Failed to clear scroll", zap.String("index", index), zap.Error(err))
		}
	}()

	var ops []search.Operation
	for len(page.Hits) > 0 {
		for _, hit := range page.Hits {
			ops = append(ops, search.Operation{Type: search.OpDelete, Index: index, DocType: class, ID: hit.ID})
		}
		page, err = sink.ScrollNext(ctx, scrollID, scrollKeepAlive)
		if err != nil {
			return 0, fmt.Errorf("failed to scroll %s documents: %w", class, err)
		}
		if page.ScrollID != "" {
			scrollID = page.ScrollID
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}

	deleted := 0
	var errs []error
	for start := 0; start < len(ops); start += deleteChunk {
		chunk := ops[start:min(start+deleteChunk, len(ops))]
		results, err := sink.Bulk(ctx, chunk, true)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete %s documents: %w", class, err)
		}
		for _, r := range results {
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.ID, r.Err))
				continue
			}
			deleted++
		}
	}

	logger.Info("Removed class from index",
		zap.String("index", index),
		zap.String("class", class),
		zap.Int("deleted", deleted))
	return deleted, errors.Join(errs...)
}

// Drop deletes the whole index. A missing index is not an error.
func Drop(ctx context.Context, sink search.Sink, index string, logger *zap.Logger) error {
	err := sink.DeleteIndex(ctx, index)
	if errors.Is(err, search.ErrIndexNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete index %s: %w", index, err)
	}
	logger.Info("Deleted index", zap.String("index", index))
	return nil
}
