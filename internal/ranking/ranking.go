// Package ranking produces the deterministic Top-N ordering of stored posts
// by composite popularity score.
package ranking

import (
	"context"
	"fmt"

	"github.com/siomako12099999999999999999/XRANKING/internal/record"
)

// Reader supplies ranking-eligible records (non-empty source URL) already
// ordered: composite score descending, ties by insertion order. The store's
// TopPosts satisfies this.
type Reader interface {
	TopPosts(ctx context.Context, limit int) ([]record.PostRecord, error)
}

// RankedPost pairs a record with its 1-based rank.
type RankedPost struct {
	record.PostRecord
	Rank int
}

// Engine is a pure read over the store; it never mutates anything.
type Engine struct {
	reader Reader
}

// NewEngine returns an Engine reading from r.
func NewEngine(r Reader) *Engine {
	return &Engine{reader: r}
}

// TopN returns up to n ranked posts. Two calls against the same storage
// snapshot return identical output.
func (e *Engine) TopN(ctx context.Context, n int) ([]RankedPost, error) {
	if n <= 0 {
		return nil, nil
	}

	posts, err := e.reader.TopPosts(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("fetch top posts: %w", err)
	}

	ranked := make([]RankedPost, 0, len(posts))
	for i, p := range posts {
		ranked = append(ranked, RankedPost{PostRecord: p, Rank: i + 1})
	}
	return ranked, nil
}
