package pipeline

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/siomako12099999999999999999/XRANKING/internal/record"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSpill_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	spill := NewSpillFile(path, discard())

	recs := []record.PostRecord{
		{Key: "111", SourceURL: "https://x.com/a/status/111", Metrics: record.Metrics{Likes: 5}},
		{Key: "222", SourceURL: "https://x.com/b/status/222"},
	}
	if err := spill.Save(recs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := spill.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].Key != "111" || got[1].Key != "222" {
		t.Errorf("loaded = %+v", got)
	}
	if got[0].Metrics.Likes != 5 {
		t.Errorf("likes = %d, want 5", got[0].Metrics.Likes)
	}
}

func TestSpill_MissingFileMeansEmpty(t *testing.T) {
	spill := NewSpillFile(filepath.Join(t.TempDir(), "absent.json"), discard())

	got, err := spill.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded = %+v, want none", got)
	}
}

func TestSpill_EmptySaveRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.json")
	spill := NewSpillFile(path, discard())

	if err := spill.Save([]record.PostRecord{{Key: "111"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := spill.Save(nil); err != nil {
		t.Fatalf("Save(nil): %v", err)
	}

	got, err := spill.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded = %+v after empty save", got)
	}
}

func TestBuffer_RestoreKeepsOldestFirst(t *testing.T) {
	f := newFakeStorage()
	b := NewBuffer(newEngine(f), discard())

	b.Enqueue(record.PostRecord{Key: "new", SourceURL: "https://x.com/n/status/3"})
	b.Restore([]record.PostRecord{
		{Key: "old1", SourceURL: "https://x.com/o/status/1"},
		{Key: "old2", SourceURL: "https://x.com/o/status/2"},
	})

	got := b.Snapshot()
	if len(got) != 3 || got[0].Key != "old1" || got[1].Key != "old2" || got[2].Key != "new" {
		t.Errorf("pending order = %+v", got)
	}
}
