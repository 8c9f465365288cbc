package replybot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/automation"
	"github.com/siomako12099999999999999999/XRANKING/internal/ranking"
	"github.com/siomako12099999999999999999/XRANKING/internal/record"
)

func TestMain(m *testing.M) {
	settle = func(context.Context, time.Duration) {}
	os.Exit(m.Run())
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fakeDriver records the reply interactions. Selectors listed in hidden time
// out on WaitFor; navFails makes navigation fail for matching URLs.
type fakeDriver struct {
	hidden   map[string]bool
	navFails map[string]bool

	navigated []string
	clicked   []string
	typed     []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{hidden: map[string]bool{}, navFails: map[string]bool{}}
}

func (d *fakeDriver) Navigate(_ context.Context, url string, _ time.Duration) error {
	if d.navFails[url] {
		return &automation.Error{Op: "navigate", Err: errors.New("net::ERR_CONNECTION_RESET")}
	}
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	if d.hidden[selector] {
		return automation.ErrTimeout
	}
	return nil
}

func (d *fakeDriver) ReadText(context.Context, string) (string, error) { return "", nil }
func (d *fakeDriver) ReadAttribute(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

func (d *fakeDriver) Click(_ context.Context, selector string, _ time.Duration) error {
	d.clicked = append(d.clicked, selector)
	return nil
}

func (d *fakeDriver) TypeText(_ context.Context, text string) error {
	d.typed = append(d.typed, text)
	return nil
}

func (d *fakeDriver) PressEnter(context.Context) error         { return nil }
func (d *fakeDriver) Location(context.Context) (string, error) { return "", nil }
func (d *fakeDriver) ResponseLog() []string                    { return nil }

func authOK() Authenticator {
	return AuthenticatorFunc(func(context.Context) error { return nil })
}

func rankedItems(urls ...string) []ranking.RankedPost {
	items := make([]ranking.RankedPost, 0, len(urls))
	for i, u := range urls {
		items = append(items, ranking.RankedPost{
			PostRecord: record.PostRecord{SourceURL: u},
			Rank:       i + 1,
		})
	}
	return items
}

func TestRun_TestModeSkipsSubmission(t *testing.T) {
	d := newFakeDriver()
	w := New(d, authOK(), testLogger(), WithTestMode(true))

	sum, err := w.Run(context.Background(),
		rankedItems("https://x.com/a/status/1", "https://x.com/b/status/2"),
		"https://xranking.example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Succeeded != 2 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want 2 succeeded 0 failed", sum)
	}
	for _, sel := range d.clicked {
		if sel == submitButton {
			t.Error("test mode clicked the submit button")
		}
	}
	if w.State() != StateDone {
		t.Errorf("final state = %v, want done", w.State())
	}
}

func TestRun_ComposesRankedMessage(t *testing.T) {
	d := newFakeDriver()
	w := New(d, authOK(), testLogger(), WithTestMode(true))

	_, err := w.Run(context.Background(),
		rankedItems("https://x.com/a/status/1", "https://x.com/b/status/2"),
		"https://xranking.example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(d.typed) != 2 {
		t.Fatalf("typed %d messages, want 2", len(d.typed))
	}
	if !strings.Contains(d.typed[0], "1位") || !strings.Contains(d.typed[0], "https://xranking.example.com") {
		t.Errorf("first message = %q", d.typed[0])
	}
	if !strings.Contains(d.typed[1], "2位") {
		t.Errorf("second message = %q", d.typed[1])
	}
}

func TestRun_LiveModeSubmits(t *testing.T) {
	d := newFakeDriver()
	w := New(d, authOK(), testLogger())

	sum, err := w.Run(context.Background(),
		rankedItems("https://x.com/a/status/1"), "https://example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	submitted := false
	for _, sel := range d.clicked {
		if sel == submitButton {
			submitted = true
		}
	}
	if !submitted {
		t.Error("live mode never clicked the submit button")
	}
}

func TestRun_FallbackLocator(t *testing.T) {
	d := newFakeDriver()
	d.hidden[replyButton] = true
	w := New(d, authOK(), testLogger(), WithTestMode(true))

	sum, err := w.Run(context.Background(),
		rankedItems("https://x.com/a/status/1"), "https://example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	if len(d.clicked) == 0 || d.clicked[0] != replyButtonFallback {
		t.Errorf("clicked = %v, want fallback locator first", d.clicked)
	}
}

func TestRun_ItemFailureContinuesRun(t *testing.T) {
	d := newFakeDriver()
	d.navFails["https://x.com/a/status/1"] = true
	w := New(d, authOK(), testLogger(), WithTestMode(true))

	sum, err := w.Run(context.Background(),
		rankedItems("https://x.com/a/status/1", "https://x.com/b/status/2"),
		"https://example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.Succeeded != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v, want 1 succeeded 1 failed", sum)
	}
	if len(d.typed) != 1 {
		t.Errorf("typed %d messages, want 1", len(d.typed))
	}
}

func TestRun_BothLocatorsFailCountsItemFailed(t *testing.T) {
	d := newFakeDriver()
	d.hidden[replyButton] = true
	d.hidden[replyButtonFallback] = true
	w := New(d, authOK(), testLogger(), WithTestMode(true))

	sum, err := w.Run(context.Background(),
		rankedItems("https://x.com/a/status/1"), "https://example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 0 || sum.Failed != 1 {
		t.Errorf("summary = %+v, want 0 succeeded 1 failed", sum)
	}
}

func TestRun_AuthFailureAbandonsRun(t *testing.T) {
	d := newFakeDriver()
	authErr := errors.New("credentials rejected")
	w := New(d, AuthenticatorFunc(func(context.Context) error { return authErr }), testLogger())

	sum, err := w.Run(context.Background(),
		rankedItems("https://x.com/a/status/1"), "https://example.com")
	if !errors.Is(err, authErr) {
		t.Fatalf("err = %v, want auth error", err)
	}

	if sum.Succeeded != 0 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want no items attempted", sum)
	}
	if len(d.navigated) != 0 {
		t.Errorf("navigated %v after auth failure", d.navigated)
	}
	if w.State() != StateFailed {
		t.Errorf("final state = %v, want failed", w.State())
	}
}

func TestRun_CancellationStopsBetweenItems(t *testing.T) {
	d := newFakeDriver()
	w := New(d, authOK(), testLogger(), WithTestMode(true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Run(ctx, rankedItems("https://x.com/a/status/1"), "https://example.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
