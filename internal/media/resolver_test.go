package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeDriver struct {
	location string
	navs     []string
	navErr   error
	attrs    map[string]string
	attrErrs map[string]error
	respLog  []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		location: "https://x.com/search?q=dogs&f=video",
		attrs:    map[string]string{},
		attrErrs: map[string]error{},
	}
}

func (d *fakeDriver) Navigate(_ context.Context, url string, _ time.Duration) error {
	if d.navErr != nil {
		return d.navErr
	}
	d.navs = append(d.navs, url)
	d.location = url
	return nil
}

func (d *fakeDriver) WaitFor(context.Context, string, time.Duration) error { return nil }

func (d *fakeDriver) ReadText(context.Context, string) (string, error) { return "", nil }

func (d *fakeDriver) ReadAttribute(_ context.Context, selector, name string) (string, bool, error) {
	key := selector + "/" + name
	if err := d.attrErrs[key]; err != nil {
		return "", false, err
	}
	v, ok := d.attrs[key]
	return v, ok, nil
}

func (d *fakeDriver) Click(context.Context, string, time.Duration) error { return nil }
func (d *fakeDriver) TypeText(context.Context, string) error             { return nil }
func (d *fakeDriver) PressEnter(context.Context) error                   { return nil }

func (d *fakeDriver) Location(context.Context) (string, error) { return d.location, nil }
func (d *fakeDriver) ResponseLog() []string                    { return d.respLog }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const postURL = "https://twitter.com/user/status/123"

func TestResolve_DirectVideoElement(t *testing.T) {
	d := newFakeDriver()
	d.attrs["video/src"] = "https://video.twimg.com/ext_tw_video/123/vid.mp4"

	got := NewResolver(d, discard()).Resolve(context.Background(), postURL)
	if got != d.attrs["video/src"] {
		t.Fatalf("Resolve = %q", got)
	}
	// Prior page restored after the post-page visit.
	if len(d.navs) != 2 || d.navs[0] != postURL || d.navs[1] != "https://x.com/search?q=dogs&f=video" {
		t.Fatalf("navigations = %v", d.navs)
	}
}

func TestResolve_FallsBackToNestedSource(t *testing.T) {
	d := newFakeDriver()
	d.attrErrs["video/src"] = errors.New("node not found")
	d.attrs["video source/src"] = "https://video.twimg.com/ext_tw_video/123/source.mp4"

	got := NewResolver(d, discard()).Resolve(context.Background(), postURL)
	if got != d.attrs["video source/src"] {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestResolve_FallsBackToResponseLog(t *testing.T) {
	d := newFakeDriver()
	d.respLog = []string{
		"https://abs.twimg.com/responsive-web/client.js",
		"https://video.twimg.com/ext_tw_video/123/older.mp4",
		"https://video.twimg.com/ext_tw_video/123/newer.mp4",
		"https://pbs.twimg.com/profile_images/x.jpg",
	}

	got := NewResolver(d, discard()).Resolve(context.Background(), postURL)
	if got != "https://video.twimg.com/ext_tw_video/123/newer.mp4" {
		t.Fatalf("Resolve = %q, want newest media-host entry", got)
	}
}

func TestResolve_RejectsPermalinkCandidate(t *testing.T) {
	d := newFakeDriver()
	d.attrs["video/src"] = "https://x.com/user/status/123"

	if got := NewResolver(d, discard()).Resolve(context.Background(), postURL); got != "" {
		t.Fatalf("Resolve = %q, want empty for permalink candidate", got)
	}
}

func TestResolve_AllStrategiesFail(t *testing.T) {
	d := newFakeDriver()

	if got := NewResolver(d, discard()).Resolve(context.Background(), postURL); got != "" {
		t.Fatalf("Resolve = %q, want empty", got)
	}
	// Restoration still happened.
	if d.location != "https://x.com/search?q=dogs&f=video" {
		t.Fatalf("location = %q, prior page not restored", d.location)
	}
}

func TestResolve_NavigationFailureIsNotFatal(t *testing.T) {
	d := newFakeDriver()
	d.navErr = errors.New("net::ERR_TIMED_OUT")

	if got := NewResolver(d, discard()).Resolve(context.Background(), postURL); got != "" {
		t.Fatalf("Resolve = %q, want empty on navigation failure", got)
	}
}

func TestIsMediaURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://video.twimg.com/ext_tw_video/1/vid.mp4", true},
		{"https://eu.video.twimg.com/vid.mp4", true},
		{"https://x.com/user/status/1", false},
		{"https://twitter.com/user/status/1", false},
		{"https://pbs.twimg.com/media/a.jpg", false},
		{"", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		if got := IsMediaURL(tt.url); got != tt.want {
			t.Errorf("IsMediaURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
