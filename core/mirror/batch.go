package mirror

import (
	"context"
	"fmt"

	"essync/core/document"
	"essync/core/search"
	"essync/core/source"

	"go.uber.org/zap"
)

// BatchResult summarizes one SyncBatch run.
type BatchResult struct {
	// Synchronized counts records handed to the bulk processor, including
	// those the search engine later rejected.
	Synchronized int `json:"synchronized"`
	// Skipped counts records excluded by the policy.
	Skipped int `json:"skipped"`
	// Malformed counts records that could not be read or projected.
	Malformed int `json:"malformed"`
	// Confirmed counts operations the search engine acknowledged.
	Confirmed int64 `json:"confirmed"`
	// Rejected counts operations the search engine refused.
	Rejected int64 `json:"rejected"`
}

// Batcher runs batch synchronizations.
type Batcher struct {
	sinks  SinkFactory
	bulk   search.BulkConfig
	logger *zap.Logger
}

// NewBatcher creates a batcher that opens a dedicated sink per run.
func NewBatcher(sinks SinkFactory, bulk search.BulkConfig, logger *zap.Logger) *Batcher {
	return &Batcher{sinks: sinks, bulk: bulk, logger: logger}
}

// SyncBatch drains it once, in order, projecting every record and indexing the
// selected ones through a private bulk processor. The iterator, the processor
// and the sink are released on every return path; the final flush happens
// before the result is returned.
//
// Unreadable records and projection failures skip only that record. An error
// ending the iteration itself fails the run.
func (b *Batcher) SyncBatch(ctx context.Context, binding *Binding, clusters ClusterResolver, it source.Iterator) (res BatchResult, err error) {
	defer it.Close()

	sink, err := b.sinks(ctx, binding.Config)
	if err != nil {
		return res, fmt.Errorf("failed to open batch sink: %w", err)
	}
	defer sink.Close()

	log := b.logger.With(zap.String("database", binding.Database), zap.String("index", binding.Index))
	bulk := search.NewBulkProcessor(ctx, sink, b.bulk, search.LogListener{Logger: log})
	defer func() {
		_ = bulk.Close()
		stats := bulk.Stats()
		res.Confirmed = stats.Succeeded
		res.Rejected = stats.Failed
	}()

	projector := NewProjector(binding.Policy, clusters)
	for it.Next() {
		rec, err := it.Record()
		if err != nil {
			res.Malformed++
			log.Warn("Skipping unreadable record", zap.Error(err))
			continue
		}

		doc, err := projector.Project(rec)
		if err != nil {
			res.Malformed++
			log.Warn("Skipping record that cannot be projected", zap.Error(err))
			continue
		}
		if doc == nil {
			res.Skipped++
			continue
		}

		op := search.Operation{
			Type:    search.OpIndex,
			Index:   binding.Index,
			DocType: rec.ClassName(),
			ID:      rec.Identity().String(),
			Body:    doc,
		}
		if err := bulk.Add(op); err != nil {
			res.Malformed++
			log.Warn("Skipping record that cannot be encoded",
				zap.String("rid", op.ID), zap.Error(err))
			continue
		}
		res.Synchronized++
	}

	if err := it.Err(); err != nil {
		return res, fmt.Errorf("record iteration failed: %w", err)
	}
	return res, nil
}

// chain iterates the sequences returned by opens one after another, opening
// each only when the previous one is exhausted.
type chain struct {
	opens   []func() (source.Iterator, error)
	current source.Iterator
	err     error
	closed  bool
}

func newChain(opens ...func() (source.Iterator, error)) *chain {
	return &chain{opens: opens}
}

func (c *chain) Next() bool {
	for {
		if c.err != nil {
			return false
		}
		if c.closed {
			c.err = source.ErrIteratorClosed
			return false
		}
		if c.current == nil {
			if len(c.opens) == 0 {
				return false
			}
			open := c.opens[0]
			c.opens = c.opens[1:]
			it, err := open()
			if err != nil {
				c.err = err
				return false
			}
			c.current = it
		}
		if c.current.Next() {
			return true
		}
		err := c.current.Err()
		closeErr := c.current.Close()
		c.current = nil
		if err != nil {
			c.err = err
			return false
		}
		if closeErr != nil {
			c.err = closeErr
			return false
		}
	}
}

func (c *chain) Record() (*document.Record, error) {
	if c.current == nil {
		return nil, nil
	}
	return c.current.Record()
}

func (c *chain) Err() error {
	return c.err
}

func (c *chain) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.current != nil {
		err := c.current.Close()
		c.current = nil
		return err
	}
	return nil
}
