// Package automation exposes the narrow browser capability the pipeline and
// the reply workflow are written against. The chromedp-backed Session is the
// production implementation; tests substitute fakes.
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout reports that a navigation, element wait, or click exceeded its
// bounded wait. It is always recoverable by the caller: the affected
// operation failed, not the run.
var ErrTimeout = errors.New("operation timed out")

// Error wraps a non-timeout driver failure with the operation that caused it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("automation %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a bounded-wait expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Driver is the set of browser operations the core consumes. Every call is a
// suspension point; none proceed while an operation is outstanding. All
// methods may return ErrTimeout or *Error, both recoverable.
type Driver interface {
	// Navigate loads url and waits for the document, bounded by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitFor blocks until the selector is visible or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// ReadText returns the text content of the first matching element.
	ReadText(ctx context.Context, selector string) (string, error)
	// ReadAttribute returns an attribute of the first matching element;
	// the bool reports whether the attribute exists.
	ReadAttribute(ctx context.Context, selector, name string) (string, bool, error)
	// Click waits for the selector and activates it, bounded by timeout.
	Click(ctx context.Context, selector string, timeout time.Duration) error
	// TypeText inserts text into the currently focused element.
	TypeText(ctx context.Context, text string) error
	// PressEnter sends an Enter keystroke to the focused element.
	PressEnter(ctx context.Context) error
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// ResponseLog returns the URLs of network responses observed so far on
	// this page, most recent last. Passive: reading it causes no navigation.
	ResponseLog() []string
}
