// Package auth handles X.com authentication: the automated credential login
// sequence and the persistence of session cookies between runs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/automation"
)

// ErrTwoFactorRequired reports that X presented a 2FA challenge. The flow
// never guesses a code; the run fails and the account owner has to log in
// manually once (the cookies are then reused).
var ErrTwoFactorRequired = errors.New("two-factor challenge presented")

// ErrNotLoggedIn reports that the post-login landing page never appeared
// within the bounded wait.
var ErrNotLoggedIn = errors.New("home timeline did not appear after login")

// Credentials are supplied externally (config file or environment).
type Credentials struct {
	Email    string
	Password string
	Username string // only needed when X asks for username confirmation
}

const loginURL = "https://x.com/i/flow/login"

// Login flow selectors. X rotates these occasionally; they live here so a
// breakage is a one-file fix.
const (
	emailInput           = `input[autocomplete="username"]`
	usernameConfirmInput = `input[data-testid="ocfEnterTextTextInput"]`
	passwordInput        = `input[name="password"]`
)

// loggedInIndicators are elements that only render on the signed-in home
// screen. Any one of them counts as success.
var loggedInIndicators = []string{
	`a[aria-label="Home"]`,
	`a[data-testid="AppTabBar_Home_Link"]`,
	`div[data-testid="primaryColumn"]`,
	`div[aria-label="Home timeline"]`,
}

// Login drives the credential login sequence: email, the optional username
// confirmation screen, password, then a bounded wait for the home timeline.
// A 2FA prompt aborts with ErrTwoFactorRequired; credential rejection
// surfaces as ErrNotLoggedIn. Both are fatal to the current run.
func Login(ctx context.Context, d automation.Driver, creds Credentials, logger *slog.Logger) error {
	if creds.Email == "" || creds.Password == "" {
		return errors.New("missing credentials: set TWITTER_EMAIL and TWITTER_PASSWORD")
	}

	logger.Info("auth: opening login page")
	if err := d.Navigate(ctx, loginURL, 60*time.Second); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	logger.Info("auth: entering email")
	if err := fillAndSubmit(ctx, d, emailInput, creds.Email, 30*time.Second); err != nil {
		return fmt.Errorf("enter email: %w", err)
	}
	pause(ctx, 3*time.Second)

	// X sometimes inserts a username-confirmation screen here.
	if err := d.WaitFor(ctx, usernameConfirmInput, 5*time.Second); err == nil {
		if creds.Username == "" {
			return errors.New("username confirmation requested but TWITTER_ID is not set")
		}
		logger.Info("auth: confirming username")
		if err := fillAndSubmit(ctx, d, usernameConfirmInput, creds.Username, 10*time.Second); err != nil {
			return fmt.Errorf("confirm username: %w", err)
		}
		pause(ctx, 2*time.Second)
	}

	logger.Info("auth: entering password")
	if err := fillAndSubmit(ctx, d, passwordInput, creds.Password, 15*time.Second); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	pause(ctx, 5*time.Second)

	// The same text input reappearing after the password step means a 2FA
	// code prompt.
	if err := d.WaitFor(ctx, usernameConfirmInput, 5*time.Second); err == nil {
		return ErrTwoFactorRequired
	}

	logger.Info("auth: waiting for home timeline")
	for _, indicator := range loggedInIndicators {
		if err := d.WaitFor(ctx, indicator, 5*time.Second); err == nil {
			logger.Info("auth: login successful")
			return nil
		}
	}
	return ErrNotLoggedIn
}

// fillAndSubmit waits for an input, focuses it, types the value, and
// presses Enter.
func fillAndSubmit(ctx context.Context, d automation.Driver, selector, value string, wait time.Duration) error {
	if err := d.WaitFor(ctx, selector, wait); err != nil {
		return err
	}
	if err := d.Click(ctx, selector, 5*time.Second); err != nil {
		return err
	}
	if err := d.TypeText(ctx, value); err != nil {
		return err
	}
	return d.PressEnter(ctx)
}

// pause sleeps cooperatively, returning early on cancellation. Overridable
// so tests don't sit through real settle delays.
var pause = func(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
