// Package media resolves the canonical hosted-video URL for a post. X serves
// video files from a dedicated media host, distinct from the permalink
// domain, and the DOM exposes the URL in several inconsistent places, so
// resolution is an ordered set of fallback strategies.
package media

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/automation"
)

// MediaHost is the dedicated video-hosting domain. A resolved URL is accepted
// only if it lives here.
const MediaHost = "video.twimg.com"

// permalinkHosts are the post-page domains. A "media" candidate pointing back
// at one of these is a permalink, not a video file.
var permalinkHosts = map[string]bool{
	"x.com":           true,
	"www.x.com":       true,
	"twitter.com":     true,
	"www.twitter.com": true,
}

// IsMediaURL reports whether raw points at the platform's media host.
func IsMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	return host == MediaHost || strings.HasSuffix(host, "."+MediaHost)
}

// isPermalink reports whether raw points back at a post page.
func isPermalink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return permalinkHosts[strings.ToLower(u.Host)]
}

const (
	postNavTimeout  = 30 * time.Second
	postWaitTimeout = 15 * time.Second
)

// postBodySelector marks the post page as loaded enough to inspect.
const postBodySelector = `article[data-testid="tweet"]`

// Resolver locates the hosted-video URL for one post at a time. It shares
// the browsing session with whichever loop owns it; it never runs
// concurrently with another consumer of the same driver.
type Resolver struct {
	driver automation.Driver
	logger *slog.Logger
}

// NewResolver returns a Resolver over the given driver.
func NewResolver(d automation.Driver, logger *slog.Logger) *Resolver {
	return &Resolver{driver: d, logger: logger}
}

// Resolve navigates to the post page, tries each strategy in order, and
// returns the first candidate that validates against the media host. It
// returns "" when no strategy produced a valid URL; the post can still be
// persisted and re-resolved on a later pass. The page is returned to its
// prior location on every exit path. Transient automation failures are
// logged and treated as "strategy failed", never escalated.
func (r *Resolver) Resolve(ctx context.Context, postURL string) string {
	prior, err := r.driver.Location(ctx)
	if err != nil {
		r.logger.Warn("media: could not record current location", "error", err)
		prior = ""
	}

	if prior != postURL {
		if err := r.driver.Navigate(ctx, postURL, postNavTimeout); err != nil {
			r.logger.Warn("media: post page navigation failed", "url", postURL, "error", err)
			return ""
		}
		defer r.restore(ctx, prior)
	}

	if err := r.driver.WaitFor(ctx, postBodySelector, postWaitTimeout); err != nil {
		r.logger.Warn("media: post body never appeared", "url", postURL, "error", err)
		// The page may still hold a usable video element; fall through.
	}

	strategies := []struct {
		name string
		fn   func(context.Context) string
	}{
		{"video element", r.fromVideoElement},
		{"nested source", r.fromNestedSource},
		{"network log", r.fromResponseLog},
	}

	for _, s := range strategies {
		candidate := s.fn(ctx)
		if candidate == "" {
			continue
		}
		if isPermalink(candidate) {
			r.logger.Debug("media: candidate is a permalink, rejecting", "strategy", s.name, "candidate", candidate)
			continue
		}
		if !IsMediaURL(candidate) {
			r.logger.Debug("media: candidate off media host, rejecting", "strategy", s.name, "candidate", candidate)
			continue
		}
		r.logger.Info("media: resolved", "strategy", s.name, "url", candidate)
		return candidate
	}

	return ""
}

// restore makes a best-effort return to the page the resolver started on.
func (r *Resolver) restore(ctx context.Context, prior string) {
	if prior == "" {
		return
	}
	if err := r.driver.Navigate(ctx, prior, postNavTimeout); err != nil {
		r.logger.Warn("media: failed to restore prior page", "url", prior, "error", err)
	}
}

// fromVideoElement inspects the src attribute of the page's video element.
func (r *Resolver) fromVideoElement(ctx context.Context) string {
	src, ok, err := r.driver.ReadAttribute(ctx, "video", "src")
	if err != nil {
		r.logger.Warn("media: video element inspection failed", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return src
}

// fromNestedSource inspects source children of the video element, where the
// player sometimes parks the file URL instead of the src attribute.
func (r *Resolver) fromNestedSource(ctx context.Context) string {
	src, ok, err := r.driver.ReadAttribute(ctx, "video source", "src")
	if err != nil {
		r.logger.Warn("media: nested source inspection failed", "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return src
}

// fromResponseLog scans the passive network log for a media-host response.
// Only useful if the page attempted playback; the newest match wins.
func (r *Resolver) fromResponseLog(_ context.Context) string {
	log := r.driver.ResponseLog()
	for i := len(log) - 1; i >= 0; i-- {
		if IsMediaURL(log[i]) {
			return log[i]
		}
	}
	return ""
}
