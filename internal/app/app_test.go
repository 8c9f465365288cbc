package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/siomako12099999999999999999/XRANKING/internal/config"
	"github.com/siomako12099999999999999999/XRANKING/internal/media"
	"github.com/siomako12099999999999999999/XRANKING/internal/pipeline"
	"github.com/siomako12099999999999999999/XRANKING/internal/record"
	"github.com/siomako12099999999999999999/XRANKING/internal/store"
)

// An interrupt cancels the run's context before the shutdown drain runs; the
// drain must still reach storage instead of spilling everything.
func TestSettle_DrainsAfterCancellation(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(config.Default(), st, logger)

	engine := pipeline.NewUpsertEngine(st, media.IsMediaURL, logger)
	buffer := pipeline.NewBuffer(engine, logger)
	spill := pipeline.NewSpillFile(filepath.Join(dir, "pending.json"), logger)

	buffer.Enqueue(record.PostRecord{
		Key:       "42",
		SourceURL: "https://x.com/a/status/42",
		Text:      "held back by a transient write failure",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var counts Counts
	a.settle(ctx, buffer, spill, &counts)

	if counts.Succeeded != 1 || counts.Pending != 0 {
		t.Fatalf("counts = %+v, want 1 succeeded 0 pending", counts)
	}
	if _, err := st.FindByKey(context.Background(), "42"); err != nil {
		t.Errorf("record not persisted: %v", err)
	}
	spilled, err := spill.Load()
	if err != nil {
		t.Fatalf("load spill: %v", err)
	}
	if len(spilled) != 0 {
		t.Errorf("spilled = %+v, want none", spilled)
	}
}
