// Package scraper extracts video posts from X.com search results.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/automation"
	"github.com/siomako12099999999999999999/XRANKING/internal/media"
	"github.com/siomako12099999999999999999/XRANKING/internal/record"
)

// Scraper drives the video-filtered search and hands each discovered post to
// the caller as raw fields.
type Scraper struct {
	session        *automation.Session
	resolver       *media.Resolver
	logger         *slog.Logger
	scrollInterval time.Duration
}

// New creates a new scraper over an authenticated session.
func New(session *automation.Session, resolver *media.Resolver, logger *slog.Logger, scrollInterval time.Duration) *Scraper {
	if scrollInterval <= 0 {
		scrollInterval = 2 * time.Second
	}
	return &Scraper{session: session, resolver: resolver, logger: logger, scrollInterval: scrollInterval}
}

// rawTweet is the per-post data pulled out of the DOM in one Evaluate pass.
type rawTweet struct {
	URL          string `json:"url"`
	Text         string `json:"text"`
	AuthorHandle string `json:"authorHandle"`
	AuthorName   string `json:"authorName"`
	AvatarURL    string `json:"avatarUrl"`
	Likes        string `json:"likes"`
	Retweets     string `json:"retweets"`
	Views        string `json:"views"`
	VideoSrc     string `json:"videoSrc"`
	HasVideo     bool   `json:"hasVideo"`
}

// extractJS pulls every currently rendered search result in one pass.
// Metric counts are returned in their on-screen textual form; normalization
// happens on the Go side.
const extractJS = `
	(function() {
		const tweets = document.querySelectorAll('article[data-testid="tweet"]');
		const results = [];

		tweets.forEach(el => {
			try {
				const statusLink = el.querySelector('a[href*="/status/"]');
				if (!statusLink || !statusLink.href.includes('/status/')) return;

				const userNameEl = el.querySelector('[data-testid="User-Name"]');
				let authorHandle = '';
				let authorName = '';
				if (userNameEl) {
					const handleLink = userNameEl.querySelector('a[href^="/"]');
					if (handleLink) {
						authorHandle = handleLink.getAttribute('href')?.replace('/', '') || '';
					}
					authorName = userNameEl.querySelector('span')?.textContent || '';
				}

				const avatarEl = el.querySelector('img[src*="profile_images"]');
				const avatarUrl = avatarEl?.src || '';

				const text = el.querySelector('[data-testid="tweetText"]')?.textContent || '';

				const getMetric = (testId) => {
					const metricEl = el.querySelector('[data-testid="' + testId + '"]');
					if (!metricEl) return '';
					const ariaLabel = metricEl.getAttribute('aria-label');
					if (ariaLabel) {
						const match = ariaLabel.match(/^([\d,.]+[KkMm]?)/);
						if (match) return match[1];
					}
					return metricEl.textContent?.trim() || '';
				};

				// Views hide behind the analytics link rather than a testid.
				const viewsEl = el.querySelector('a[href*="/analytics"]');
				const views = viewsEl?.textContent?.trim() || '';

				const videoEl = el.querySelector('[data-testid="videoPlayer"] video, video');
				const hasVideo = videoEl !== null;
				const videoSrc = videoEl?.src || videoEl?.getAttribute('src') || '';

				results.push({
					url: statusLink.href,
					text,
					authorHandle,
					authorName,
					avatarUrl,
					likes: getMetric('like'),
					retweets: getMetric('retweet'),
					views,
					videoSrc,
					hasVideo
				});
			} catch (e) {
				console.error('extract failed:', e);
			}
		});

		return results;
	})()
`

// SearchVideos runs the keyword search with the video filter, scrolls until
// limit unique video posts have been seen (or the result feed stops
// yielding), and calls handle for each one. Failures local to one post are
// logged and skipped, never fatal to the run.
func (s *Scraper) SearchVideos(ctx context.Context, keyword string, limit int, handle func(record.RawPost)) error {
	searchURL := fmt.Sprintf("https://x.com/search?q=%s&src=typed_query&f=video", url.QueryEscape(keyword))

	s.logger.Info("scrape: opening video search", "keyword", keyword, "limit", limit)
	if err := s.session.Navigate(ctx, searchURL, 60*time.Second); err != nil {
		return fmt.Errorf("open search results: %w", err)
	}
	if err := s.session.WaitFor(ctx, TweetArticle, 30*time.Second); err != nil {
		return fmt.Errorf("search results never rendered: %w", err)
	}

	seen := make(map[string]bool)
	processed := 0
	scrollAttempts := 0
	maxScrollAttempts := limit/4 + 5

	for processed < limit && scrollAttempts < maxScrollAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		var tweets []rawTweet
		if err := s.session.Evaluate(ctx, extractJS, &tweets); err != nil {
			s.logger.Warn("scrape: extraction pass failed", "error", err)
		}

		for _, tw := range tweets {
			if processed >= limit {
				break
			}
			if tw.URL == "" || seen[tw.URL] || !tw.HasVideo {
				continue
			}
			seen[tw.URL] = true

			handle(s.toRawPost(ctx, tw))
			processed++
		}

		if err := s.scroll(ctx); err != nil {
			s.logger.Warn("scrape: scroll failed", "error", err)
		}
		pause(ctx, s.scrollInterval)
		scrollAttempts++
	}

	s.logger.Info("scrape: finished", "keyword", keyword, "posts", processed)
	return nil
}

// toRawPost converts one DOM extraction into builder input. When the inline
// video src is not a real media-host URL (X often exposes a blob: handle),
// the resolver takes over with its fallback strategies; an empty result is
// fine, the post is persisted anyway and re-resolved on a later refresh.
func (s *Scraper) toRawPost(ctx context.Context, tw rawTweet) record.RawPost {
	mediaURL := tw.VideoSrc
	if !media.IsMediaURL(mediaURL) {
		mediaURL = s.resolver.Resolve(ctx, tw.URL)
	}

	return record.RawPost{
		SourceURL: tw.URL,
		MediaURL:  mediaURL,
		Text:      tw.Text,
		Likes:     tw.Likes,
		Retweets:  tw.Retweets,
		Views:     tw.Views,
		Author: record.Author{
			Handle:      tw.AuthorHandle,
			DisplayName: tw.AuthorName,
			AvatarURL:   tw.AvatarURL,
		},
	}
}

// Revisit navigates to a single stored post and re-extracts its fields, for
// the metric-refresh passes. resolveMedia additionally re-runs media
// resolution (skipped when only metrics are wanted, it costs a navigation
// per post).
func (s *Scraper) Revisit(ctx context.Context, postURL string, resolveMedia bool) (record.RawPost, error) {
	if err := s.session.Navigate(ctx, postURL, 30*time.Second); err != nil {
		return record.RawPost{}, fmt.Errorf("open post: %w", err)
	}
	if err := s.session.WaitFor(ctx, TweetArticle, 15*time.Second); err != nil {
		return record.RawPost{}, fmt.Errorf("post never rendered: %w", err)
	}

	var tweets []rawTweet
	if err := s.session.Evaluate(ctx, extractJS, &tweets); err != nil {
		return record.RawPost{}, fmt.Errorf("extract post: %w", err)
	}
	if len(tweets) == 0 {
		return record.RawPost{}, fmt.Errorf("no post content found at %s", postURL)
	}

	// The first article on a permalink page is the post itself.
	tw := tweets[0]
	tw.URL = postURL

	raw := record.RawPost{
		SourceURL: tw.URL,
		Text:      tw.Text,
		Likes:     tw.Likes,
		Retweets:  tw.Retweets,
		Views:     tw.Views,
		Author: record.Author{
			Handle:      tw.AuthorHandle,
			DisplayName: tw.AuthorName,
			AvatarURL:   tw.AvatarURL,
		},
	}

	if resolveMedia {
		if media.IsMediaURL(tw.VideoSrc) {
			raw.MediaURL = tw.VideoSrc
		} else {
			raw.MediaURL = s.resolver.Resolve(ctx, postURL)
		}
	}

	return raw, nil
}

// scroll scrolls the page down
func (s *Scraper) scroll(ctx context.Context) error {
	return s.session.Evaluate(ctx, `window.scrollBy(0, window.innerHeight)`, nil)
}

func pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
