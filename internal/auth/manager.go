package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/siomako12099999999999999999/XRANKING/internal/automation"
)

// Manager establishes an authenticated browsing session, preferring stored
// cookies over a fresh credential login.
type Manager struct {
	creds   Credentials
	cookies *CookieStore
	logger  *slog.Logger
}

// NewManager creates a new auth manager
func NewManager(creds Credentials, cookies *CookieStore, logger *slog.Logger) *Manager {
	return &Manager{creds: creds, cookies: cookies, logger: logger}
}

// EnsureSession leaves s authenticated or returns an error fatal to the run.
// Valid stored cookies are injected and verified first; otherwise the full
// credential login runs and the fresh cookies are saved for next time.
func (m *Manager) EnsureSession(ctx context.Context, s *automation.Session) error {
	if m.cookies.IsValid() {
		if err := m.resumeFromCookies(ctx, s); err == nil {
			m.logger.Info("auth: resumed session from stored cookies")
			return nil
		}
		m.logger.Warn("auth: stored cookies rejected, falling back to credential login")
	}

	if err := Login(ctx, s, m.creds, m.logger); err != nil {
		return err
	}

	cookies, err := s.Cookies(ctx)
	if err != nil {
		m.logger.Warn("auth: could not capture session cookies", "error", err)
		return nil
	}
	if err := m.cookies.Save(cookies); err != nil {
		m.logger.Warn("auth: could not persist session cookies", "error", err)
	}
	return nil
}

// resumeFromCookies injects the stored cookies and confirms the session is
// actually signed in.
func (m *Manager) resumeFromCookies(ctx context.Context, s *automation.Session) error {
	cookies, err := m.cookies.XCookies()
	if err != nil {
		return err
	}
	if err := s.SetCookies(ctx, cookies); err != nil {
		return err
	}
	if err := s.Navigate(ctx, "https://x.com/home", 30*time.Second); err != nil {
		return err
	}

	var lastErr error = ErrNotLoggedIn
	for _, indicator := range loggedInIndicators {
		if err := s.WaitFor(ctx, indicator, 5*time.Second); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookies.Clear()
}
