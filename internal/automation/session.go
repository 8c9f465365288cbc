package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// readTimeout bounds element reads that carry no explicit timeout parameter.
const readTimeout = 10 * time.Second

// responseLogCap caps the in-memory network log; older entries are dropped.
const responseLogCap = 512

// Session is the chromedp-backed Driver. It owns one browser tab; the scrape
// loop and the reply workflow are never run concurrently against the same
// Session.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	responses []string
}

// NewSession launches a browser with the given allocator options and returns
// a Session bound to a fresh tab with network capture enabled.
func NewSession(parent context.Context, opts []chromedp.ExecAllocatorOption) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	s := &Session{ctx: browserCtx, cancel: cancel}

	chromedp.ListenTarget(browserCtx, func(ev any) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			s.record(resp.Response.URL)
		}
	})

	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		cancel()
		return nil, &Error{Op: "start", Err: err}
	}

	return s, nil
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) record(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, url)
	if len(s.responses) > responseLogCap {
		s.responses = s.responses[len(s.responses)-responseLogCap:]
	}
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return &Error{Op: op, Err: err}
}

// Navigate implements Driver.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return opErr("navigate", s.run(ctx, timeout, chromedp.Navigate(url)))
}

// WaitFor implements Driver.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return opErr("wait", s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)))
}

// ReadText implements Driver.
func (s *Session) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.run(ctx, readTimeout, chromedp.Text(selector, &text, chromedp.ByQuery))
	return text, opErr("read text", err)
}

// ReadAttribute implements Driver.
func (s *Session) ReadAttribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	err := s.run(ctx, readTimeout, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery))
	return value, ok, opErr("read attribute", err)
}

// Click implements Driver.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return opErr("click", s.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery)))
}

// TypeText implements Driver. Text goes to the focused element, the way a
// user would type after clicking into a compose box.
func (s *Session) TypeText(ctx context.Context, text string) error {
	err := s.run(ctx, readTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	}))
	return opErr("type", err)
}

// PressEnter implements Driver.
func (s *Session) PressEnter(ctx context.Context) error {
	return opErr("press enter", s.run(ctx, readTimeout, chromedp.KeyEvent(kb.Enter)))
}

// Location implements Driver.
func (s *Session) Location(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, readTimeout, chromedp.Location(&url))
	return url, opErr("location", err)
}

// ResponseLog implements Driver.
func (s *Session) ResponseLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.responses))
	copy(out, s.responses)
	return out
}

// Evaluate runs a JavaScript expression in the page and unmarshals the
// result into out. Used by the scrape loop for bulk DOM extraction.
func (s *Session) Evaluate(ctx context.Context, expression string, out any) error {
	return opErr("evaluate", s.run(ctx, readTimeout, chromedp.Evaluate(expression, out)))
}

// SetCookies injects session cookies before navigation.
func (s *Session) SetCookies(ctx context.Context, cookies []*network.Cookie) error {
	err := s.run(ctx, readTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
	return opErr("set cookies", err)
}

// Cookies returns all cookies currently held by the browser.
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, readTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, opErr("get cookies", err)
}
