// Package replybot posts ranked-position replies to the top posts. It is a
// small state machine: authenticate once, then per ranked item navigate,
// find the reply control, compose, submit (unless in test mode), and cool
// down before the next item.
package replybot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/automation"
	"github.com/siomako12099999999999999999/XRANKING/internal/ranking"
)

// Reply flow selectors. Same deal as the scraper's: X rotates these, keep
// them in one place.
const (
	replyButton         = `button[data-testid="reply"]`
	replyButtonFallback = `[aria-label*="Reply"][role="button"]`
	replyTextarea       = `div[data-testid="tweetTextarea_0"]`
	submitButton        = `button[data-testid="tweetButton"]`
)

// State identifies where the workflow currently is. Failed is reachable from
// every state.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateReady
	StateNavigating
	StateLocatingAffordance
	StateComposing
	StateSubmitting
	StateCooldown
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateLocatingAffordance:
		return "locating_affordance"
	case StateComposing:
		return "composing"
	case StateSubmitting:
		return "submitting"
	case StateCooldown:
		return "cooldown"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Summary reports per-run item counts.
type Summary struct {
	Succeeded int
	Failed    int
}

// Authenticator establishes a signed-in session on the driver. auth.Manager
// bound to a live session satisfies this.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context) error { return f(ctx) }

// Workflow drives the reply run over a single exclusively-owned browsing
// session.
type Workflow struct {
	driver   automation.Driver
	auth     Authenticator
	logger   *slog.Logger
	cooldown time.Duration
	testMode bool

	state State
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithCooldown overrides the inter-item delay.
func WithCooldown(d time.Duration) Option {
	return func(w *Workflow) { w.cooldown = d }
}

// WithTestMode skips the submission step; items still count as succeeded.
func WithTestMode(enabled bool) Option {
	return func(w *Workflow) { w.testMode = enabled }
}

// New creates a reply workflow. The default cooldown is 60 seconds, which
// stays under X's reply-rate thresholds.
func New(driver automation.Driver, auth Authenticator, logger *slog.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		driver:   driver,
		auth:     auth,
		logger:   logger,
		cooldown: 60 * time.Second,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the workflow's current state.
func (w *Workflow) State() State { return w.state }

// composeMessage renders the fixed reply template for one ranked item.
func composeMessage(rank int, appURL string) string {
	return fmt.Sprintf("現在XRANKINGで%d位にランクインです。 %s", rank, appURL)
}

// Run processes the ranked items in order. Authentication failure abandons
// the whole run before any item is attempted; per-item failures are counted
// and the run moves on. The cooldown applies after every item, success or
// failure.
func (w *Workflow) Run(ctx context.Context, items []ranking.RankedPost, appURL string) (Summary, error) {
	var sum Summary

	w.state = StateAuthenticating
	w.logger.Info("reply: authenticating", "items", len(items), "test_mode", w.testMode)
	if err := w.auth.Authenticate(ctx); err != nil {
		w.state = StateFailed
		return sum, fmt.Errorf("authenticate: %w", err)
	}
	w.state = StateReady

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			w.state = StateFailed
			return sum, err
		}

		if err := w.replyTo(ctx, item, appURL); err != nil {
			w.logger.Warn("reply: item failed",
				"rank", item.Rank, "url", item.SourceURL, "error", err)
			sum.Failed++
		} else {
			w.logger.Info("reply: item done", "rank", item.Rank, "url", item.SourceURL)
			sum.Succeeded++
		}

		// Unconditional, success or failure. Keeps the reply rate under the
		// platform's abuse thresholds.
		w.state = StateCooldown
		w.rest(ctx)
	}

	w.state = StateDone
	w.logger.Info("reply: run complete", "succeeded", sum.Succeeded, "failed", sum.Failed)
	return sum, nil
}

// replyTo runs the per-item states for a single ranked post.
func (w *Workflow) replyTo(ctx context.Context, item ranking.RankedPost, appURL string) error {
	w.state = StateNavigating
	if err := w.driver.Navigate(ctx, item.SourceURL, 30*time.Second); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	w.state = StateLocatingAffordance
	affordance, err := w.locateReplyControl(ctx)
	if err != nil {
		return fmt.Errorf("locate reply control: %w", err)
	}
	if err := w.driver.Click(ctx, affordance, 10*time.Second); err != nil {
		return fmt.Errorf("open composer: %w", err)
	}

	w.state = StateComposing
	if err := w.driver.WaitFor(ctx, replyTextarea, 10*time.Second); err != nil {
		return fmt.Errorf("composer did not open: %w", err)
	}
	if err := w.driver.Click(ctx, replyTextarea, 5*time.Second); err != nil {
		return fmt.Errorf("focus composer: %w", err)
	}
	if err := w.driver.TypeText(ctx, composeMessage(item.Rank, appURL)); err != nil {
		return fmt.Errorf("type message: %w", err)
	}

	w.state = StateSubmitting
	if w.testMode {
		w.logger.Info("reply: test mode, skipping submission", "rank", item.Rank)
		return nil
	}
	if err := w.driver.Click(ctx, submitButton, 10*time.Second); err != nil {
		return fmt.Errorf("submit reply: %w", err)
	}
	settle(ctx, 3*time.Second)
	return nil
}

// locateReplyControl tries the primary selector, then the aria-label
// fallback. Either timing out is not retried within the run.
func (w *Workflow) locateReplyControl(ctx context.Context) (string, error) {
	if err := w.driver.WaitFor(ctx, replyButton, 10*time.Second); err == nil {
		return replyButton, nil
	}
	w.logger.Debug("reply: primary selector timed out, trying fallback")
	if err := w.driver.WaitFor(ctx, replyButtonFallback, 5*time.Second); err != nil {
		return "", err
	}
	return replyButtonFallback, nil
}

func (w *Workflow) rest(ctx context.Context) {
	settle(ctx, w.cooldown)
}

// settle sleeps cooperatively, returning early on cancellation.
var settle = func(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
