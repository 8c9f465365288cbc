package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/siomako12099999999999999999/XRANKING/internal/record"
)

// FlushInterval is how often the ingestion loop drains the buffer between
// scrape iterations.
const FlushInterval = 60 * time.Second

// Buffer is the in-memory holding area for records that failed to persist.
// A record leaves the buffer only when its most recent upsert attempt
// succeeded; records are never silently dropped.
type Buffer struct {
	engine *UpsertEngine
	logger *slog.Logger

	mu      sync.Mutex
	pending []record.PostRecord
}

// NewBuffer returns an empty buffer flushing through engine.
func NewBuffer(engine *UpsertEngine, logger *slog.Logger) *Buffer {
	return &Buffer{engine: engine, logger: logger}
}

// Enqueue appends a record whose upsert failed. Enqueue order is preserved
// across flushes.
func (b *Buffer) Enqueue(rec record.PostRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, rec)
	b.logger.Info("buffer: holding record for retry", "key", rec.Key, "pending", len(b.pending))
}

// Len reports how many records are waiting.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Snapshot copies the pending records in enqueue order, for spilling to disk
// at shutdown.
func (b *Buffer) Snapshot() []record.PostRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]record.PostRecord, len(b.pending))
	copy(out, b.pending)
	return out
}

// Restore prepends previously spilled records, ahead of anything enqueued in
// this run, keeping the overall oldest-first flush order.
func (b *Buffer) Restore(recs []record.PostRecord) {
	if len(recs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(append([]record.PostRecord{}, recs...), b.pending...)
	b.logger.Info("buffer: restored spilled records", "count", len(recs), "pending", len(b.pending))
}

// Flush retries every buffered record in enqueue order. Records that persist
// are removed; records that fail again stay buffered for the next flush.
// Returns how many were flushed and how many remain.
func (b *Buffer) Flush(ctx context.Context) (flushed, remaining int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return 0, 0
	}

	var still []record.PostRecord
	for _, rec := range b.pending {
		if res := b.engine.Upsert(ctx, rec); res.Outcome == Failed {
			still = append(still, rec)
			continue
		}
		flushed++
	}
	b.pending = still

	if flushed > 0 || len(still) > 0 {
		b.logger.Info("buffer: flush pass finished", "flushed", flushed, "remaining", len(still))
	}
	return flushed, len(still)
}

// FlushFinal is the best-effort drain bound to process shutdown. It retries
// full flush passes with exponential backoff for a bounded number of
// attempts and never fails the caller: if storage stays unreachable it logs
// the count left behind and returns. Returns how many records it persisted.
func (b *Buffer) FlushFinal(ctx context.Context) int {
	if b.Len() == 0 {
		return 0
	}
	b.logger.Info("buffer: final flush", "pending", b.Len())

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 15 * time.Second

	total := 0
	err := backoff.Retry(func() error {
		flushed, remaining := b.Flush(ctx)
		total += flushed
		if remaining > 0 {
			return fmt.Errorf("%d records still unflushed", remaining)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 4), ctx))

	if err != nil {
		b.logger.Error("buffer: records left unpersisted at shutdown", "remaining", b.Len(), "error", err)
		return total
	}
	b.logger.Info("buffer: drained")
	return total
}
