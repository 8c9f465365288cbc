// Package pipeline contains the write path of ingestion: the upsert engine
// that maps each scraped record onto at most one stored row, and the
// resilience buffer that holds records whose writes failed.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siomako12099999999999999999/XRANKING/internal/record"
	"github.com/siomako12099999999999999999/XRANKING/internal/store"
)

// Storage is the slice of the store the engine needs. FindByKey returns
// store.ErrNotFound when no row exists for the key.
type Storage interface {
	FindByKey(ctx context.Context, key string) (record.PostRecord, error)
	Insert(ctx context.Context, rec record.PostRecord) error
	Update(ctx context.Context, rec record.PostRecord) error
}

// Outcome classifies one upsert attempt.
type Outcome int

const (
	Inserted Outcome = iota
	Updated
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "failed"
	}
}

// UpsertResult reports what happened to one record. Reason is non-nil only
// when Outcome is Failed.
type UpsertResult struct {
	Outcome Outcome
	Reason  error
}

// UpsertEngine decides insert vs. field-preserving update per record key.
type UpsertEngine struct {
	store      Storage
	validMedia func(string) bool
	logger     *slog.Logger
}

// NewUpsertEngine returns an engine writing through st. validMedia is the
// media-domain validator used by the merge policy.
func NewUpsertEngine(st Storage, validMedia func(string) bool, logger *slog.Logger) *UpsertEngine {
	return &UpsertEngine{store: st, validMedia: validMedia, logger: logger}
}

// Upsert persists rec: a fresh insert when the key is unseen, otherwise a
// merge-then-update honoring the field conflict rules (record.Merge). Any
// storage error yields Failed with zero durable writes; the caller decides
// whether to buffer the record for retry.
func (e *UpsertEngine) Upsert(ctx context.Context, rec record.PostRecord) UpsertResult {
	rec.Metrics = rec.Metrics.Clamped()

	existing, err := e.store.FindByKey(ctx, rec.Key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := e.store.Insert(ctx, rec); err != nil {
			e.logger.Warn("upsert: insert failed", "key", rec.Key, "error", err)
			return UpsertResult{Outcome: Failed, Reason: err}
		}
		e.logger.Debug("upsert: inserted", "key", rec.Key)
		return UpsertResult{Outcome: Inserted}

	case err != nil:
		e.logger.Warn("upsert: lookup failed", "key", rec.Key, "error", err)
		return UpsertResult{Outcome: Failed, Reason: err}
	}

	merged := record.Merge(existing, rec, e.validMedia)
	if err := e.store.Update(ctx, merged); err != nil {
		e.logger.Warn("upsert: update failed", "key", rec.Key, "error", err)
		return UpsertResult{Outcome: Failed, Reason: err}
	}
	e.logger.Debug("upsert: updated", "key", rec.Key)
	return UpsertResult{Outcome: Updated}
}
