package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/siomako12099999999999999999/XRANKING/internal/config"
)

// CookieStore persists X.com session cookies so later runs can skip the
// login flow while the session is still valid.
type CookieStore struct {
	path string
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// Save persists cookies to disk
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// The session lives as long as the earliest-expiring auth cookie.
	var earliestExpiry time.Time
	for _, c := range cookies {
		if c.Name == "auth_token" || c.Name == "ct0" {
			exp := time.Unix(int64(c.Expires), 0)
			if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
				earliestExpiry = exp
			}
		}
	}

	stored := StoredCookies{
		Cookies:    cookies,
		CapturedAt: time.Now(),
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

// IsValid checks if stored cookies are still valid
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}

	if time.Now().After(stored.ExpiresAt) {
		return false
	}

	hasAuthToken := false
	hasCT0 := false
	for _, c := range stored.Cookies {
		if c.Name == "auth_token" {
			hasAuthToken = true
		}
		if c.Name == "ct0" {
			hasCT0 = true
		}
	}

	return hasAuthToken && hasCT0
}

// Clear removes stored cookies
func (cs *CookieStore) Clear() error {
	return os.Remove(cs.path)
}

// XCookies returns only the x.com related cookies for injection
func (cs *CookieStore) XCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var xCookies []*network.Cookie
	for _, c := range stored.Cookies {
		if c.Domain == ".x.com" || c.Domain == "x.com" {
			xCookies = append(xCookies, c)
		}
	}

	return xCookies, nil
}
