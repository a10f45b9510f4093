package search

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// BulkConfig holds the flush thresholds of a BulkProcessor.
// A zero threshold disables that trigger.
type BulkConfig struct {
	// Actions flushes once this many operations are buffered.
	Actions int
	// SizeBytes flushes once the estimated payload reaches this size.
	SizeBytes int
	// FlushInterval flushes when this much time has passed since the last flush.
	FlushInterval time.Duration
	// Refresh makes flushed operations visible to search immediately.
	Refresh bool
}

// DefaultBulkConfig returns 10000 actions, 10 MiB and 30 seconds.
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{
		Actions:       10000,
		SizeBytes:     10 << 20,
		FlushInterval: 30 * time.Second,
	}
}

// Listener observes bulk flushes.
type Listener interface {
	// BeforeBulk is called before a flush is submitted.
	BeforeBulk(executionID int64, ops []Operation)
	// AfterBulk is called with per-operation results, or with the error that
	// failed the whole request.
	AfterBulk(executionID int64, ops []Operation, results []ItemResult, err error)
}

// BulkStats counts the work done by a BulkProcessor.
type BulkStats struct {
	Flushes   int64
	Added     int64
	Succeeded int64
	Failed    int64
}

// BulkProcessor buffers operations for one sink and submits them in order.
// Sink failures are reported to the listener and never returned from Add.
type BulkProcessor struct {
	ctx      context.Context
	sink     Sink
	cfg      BulkConfig
	listener Listener

	mu     sync.Mutex
	buf    []Operation
	size   int
	closed bool
	timer  *time.Timer

	// serializes flushes so buffered order is kept across batches
	flushMu sync.Mutex
	execID  int64

	flushes   atomic.Int64
	added     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewBulkProcessor creates a processor. The interval timer starts immediately.
func NewBulkProcessor(ctx context.Context, sink Sink, cfg BulkConfig, listener Listener) *BulkProcessor {
	p := &BulkProcessor{
		ctx:      ctx,
		sink:     sink,
		cfg:      cfg,
		listener: listener,
	}
	if cfg.FlushInterval > 0 {
		p.timer = time.AfterFunc(cfg.FlushInterval, p.onTimer)
	}
	return p
}

// Add buffers one operation and flushes when a threshold is reached.
func (p *BulkProcessor) Add(op Operation) error {
	size := 64 + len(op.Index) + len(op.ID)
	if op.Type == OpIndex {
		raw, ok := op.Body.(json.RawMessage)
		if !ok {
			var err error
			if raw, err = json.Marshal(op.Body); err != nil {
				return err
			}
			op.Body = raw
		}
		size += len(raw)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errProcessorClosed
	}
	p.buf = append(p.buf, op)
	p.size += size
	full := (p.cfg.Actions > 0 && len(p.buf) >= p.cfg.Actions) ||
		(p.cfg.SizeBytes > 0 && p.size >= p.cfg.SizeBytes)
	p.mu.Unlock()

	p.added.Add(1)
	if full {
		p.flush()
	}
	return nil
}

// Flush submits everything buffered so far.
func (p *BulkProcessor) Flush() {
	p.flush()
}

// Close stops the timer and flushes what is left. It is safe to call twice.
func (p *BulkProcessor) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()

	p.flush()
	return nil
}

// Stats returns a snapshot of the counters.
func (p *BulkProcessor) Stats() BulkStats {
	return BulkStats{
		Flushes:   p.flushes.Load(),
		Added:     p.added.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *BulkProcessor) onTimer() {
	p.flush()
}

func (p *BulkProcessor) flush() {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	ops := p.buf
	p.buf = nil
	p.size = 0
	if p.timer != nil && !p.closed {
		p.timer.Reset(p.cfg.FlushInterval)
	}
	p.mu.Unlock()

	if len(ops) == 0 {
		return
	}

	p.execID++
	id := p.execID
	if p.listener != nil {
		p.listener.BeforeBulk(id, ops)
	}

	results, err := p.sink.Bulk(p.ctx, ops, p.cfg.Refresh)
	p.flushes.Add(1)
	if err != nil {
		p.failed.Add(int64(len(ops)))
	} else {
		for _, r := range results {
			if r.Err != nil {
				p.failed.Add(1)
			} else {
				p.succeeded.Add(1)
			}
		}
	}

	if p.listener != nil {
		p.listener.AfterBulk(id, ops, results, err)
	}
}

// LogListener logs bulk failures through zap.
type LogListener struct {
	Logger *zap.Logger
}

// BeforeBulk implements Listener.
func (l LogListener) BeforeBulk(executionID int64, ops []Operation) {
	l.Logger.Debug("Submitting bulk request",
		zap.Int64("execution_id", executionID),
		zap.Int("actions", len(ops)))
}

// AfterBulk implements Listener.
func (l LogListener) AfterBulk(executionID int64, ops []Operation, results []ItemResult, err error) {
	if err != nil {
		l.Logger.Error("Bulk request failed",
			zap.Int64("execution_id", executionID),
			zap.Int("actions", len(ops)),
			zap.Error(err))
		return
	}
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		failed++
		l.Logger.Warn("Bulk operation rejected",
			zap.Int64("execution_id", executionID),
			zap.String("id", r.ID),
			zap.Int("status", r.Status),
			zap.Error(r.Err))
	}
	l.Logger.Debug("Bulk request completed",
		zap.Int64("execution_id", executionID),
		zap.Int("actions", len(ops)),
		zap.Int("failed", failed))
}
