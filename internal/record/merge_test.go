package record

import (
	"strings"
	"testing"
)

func validMedia(u string) bool {
	return strings.Contains(u, "video.twimg.com")
}

func TestMerge_MediaURLMonotonic(t *testing.T) {
	valid := "https://video.twimg.com/vid/1.mp4"
	other := "https://video.twimg.com/vid/2.mp4"
	bogus := "https://x.com/user/status/1"

	tests := []struct {
		name     string
		existing string
		incoming string
		want     string
	}{
		{"fills empty", "", valid, valid},
		{"keeps validated over new valid", valid, other, valid},
		{"keeps validated over unvalidated", valid, bogus, valid},
		{"upgrades invalid to valid", bogus, valid, valid},
		{"keeps invalid over invalid", bogus, "https://twitter.com/other", bogus},
		{"ignores empty incoming", valid, "", valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(
				PostRecord{Key: "1", MediaURL: tt.existing},
				PostRecord{Key: "1", MediaURL: tt.incoming},
				validMedia,
			)
			if got.MediaURL != tt.want {
				t.Errorf("MediaURL = %q, want %q", got.MediaURL, tt.want)
			}
		})
	}
}

func TestMerge_SourceURLFillOnce(t *testing.T) {
	existing := PostRecord{Key: "1", SourceURL: "https://x.com/a/status/1"}
	incoming := PostRecord{Key: "1", SourceURL: "https://x.com/b/status/1"}

	if got := Merge(existing, incoming, validMedia); got.SourceURL != existing.SourceURL {
		t.Errorf("SourceURL overwritten: %q", got.SourceURL)
	}

	empty := PostRecord{Key: "1"}
	if got := Merge(empty, incoming, validMedia); got.SourceURL != incoming.SourceURL {
		t.Errorf("SourceURL not filled: %q", got.SourceURL)
	}
}

func TestMerge_AuthorFillMissing(t *testing.T) {
	existing := PostRecord{Author: Author{Handle: "original", AvatarURL: ""}}
	incoming := PostRecord{Author: Author{Handle: "impostor", AvatarURL: "https://pbs.twimg.com/a.jpg", DisplayName: "Name"}}

	got := Merge(existing, incoming, validMedia)

	if got.Author.Handle != "original" {
		t.Errorf("populated handle overwritten: %q", got.Author.Handle)
	}
	if got.Author.AvatarURL != incoming.Author.AvatarURL {
		t.Errorf("missing avatar not filled: %q", got.Author.AvatarURL)
	}
	if got.Author.DisplayName != "Name" {
		t.Errorf("missing display name not filled: %q", got.Author.DisplayName)
	}
}

func TestMerge_TextLastWriteWins(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		incoming string
		want     string
	}{
		{"fills empty", "", "fresh tweet text", "fresh tweet text"},
		{"newest non-empty wins", "stale text", "edited text", "edited text"},
		{"empty incoming keeps stored", "stored text", "", "stored text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(
				PostRecord{Key: "1", Text: tt.existing},
				PostRecord{Key: "1", Text: tt.incoming},
				validMedia,
			)
			if got.Text != tt.want {
				t.Errorf("Text = %q, want %q", got.Text, tt.want)
			}
		})
	}
}

func TestMerge_MetricsLastWriteWins(t *testing.T) {
	existing := PostRecord{Metrics: Metrics{Likes: 100, Retweets: 50, Views: 9000}}
	incoming := PostRecord{Metrics: Metrics{Likes: 90, Retweets: 60, Views: 9500}}

	got := Merge(existing, incoming, validMedia)
	if got.Metrics != incoming.Metrics {
		t.Errorf("Metrics = %+v, want %+v", got.Metrics, incoming.Metrics)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	existing := PostRecord{
		Key:       "7",
		SourceURL: "https://x.com/a/status/7",
		MediaURL:  "https://video.twimg.com/vid/7.mp4",
		Author:    Author{Handle: "a"},
		Metrics:   Metrics{Likes: 1, Retweets: 2, Views: 3},
	}

	once := Merge(existing, existing, validMedia)
	twice := Merge(once, existing, validMedia)
	if once != twice {
		t.Errorf("merge not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}
