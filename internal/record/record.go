// Package record defines the normalized post record that flows through the
// ingestion pipeline and the rules for building and merging it.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/metrics"
)

// Author holds whatever identity fields a scrape observation managed to pick
// up. Empty strings mean "not observed".
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatar_url"`
}

// Metrics are always normalized, non-negative counts.
type Metrics struct {
	Likes    int `json:"likes"`
	Retweets int `json:"retweets"`
	Views    int `json:"views"`
}

// Clamped returns the metrics with any negative count forced to zero.
// Stored metrics are never negative and never null.
func (m Metrics) Clamped() Metrics {
	if m.Likes < 0 {
		m.Likes = 0
	}
	if m.Retweets < 0 {
		m.Retweets = 0
	}
	if m.Views < 0 {
		m.Views = 0
	}
	return m
}

// Score is the composite popularity value used for ranking: the
// equal-weighted sum of all engagement signals. Views typically dominate in
// magnitude; that is expected.
func (m Metrics) Score() int {
	return m.Likes + m.Retweets + m.Views
}

// PostRecord is the unit of persistence. One stored row per Key.
type PostRecord struct {
	Key       string    `json:"key"`
	SourceURL string    `json:"source_url"`
	MediaURL  string    `json:"media_url"`
	Text      string    `json:"text"`
	Metrics   Metrics   `json:"metrics"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RawPost carries the unprocessed per-post fields handed over by the scrape
// loop: metric counts still in their on-screen textual form, the media URL as
// returned by the resolver (possibly empty).
type RawPost struct {
	SourceURL string
	MediaURL  string
	Text      string
	Likes     string
	Retweets  string
	Views     string
	Author    Author
}

// statusID matches the post-identifier segment of an X permalink,
// e.g. https://x.com/user/status/1234567890.
var statusID = regexp.MustCompile(`/status/(\d+)`)

// Build assembles a normalized PostRecord from one scrape observation.
// Pure: no I/O, no clock access (timestamps are owned by the store).
func Build(raw RawPost) PostRecord {
	return PostRecord{
		Key:       DeriveKey(raw.SourceURL),
		SourceURL: raw.SourceURL,
		MediaURL:  raw.MediaURL,
		Text:      raw.Text,
		Metrics: Metrics{
			Likes:    metrics.Normalize(raw.Likes),
			Retweets: metrics.Normalize(raw.Retweets),
			Views:    metrics.Normalize(raw.Views),
		},
		Author: raw.Author,
	}
}

// DeriveKey returns the stable key for a post URL: the numeric status ID when
// the URL contains one, otherwise a content hash of the URL itself so that
// the same URL always maps to the same key.
func DeriveKey(sourceURL string) string {
	if m := statusID.FindStringSubmatch(sourceURL); m != nil {
		return m[1]
	}
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:16])
}
