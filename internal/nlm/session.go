package nlm

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// SessionTokens are the three secrets that sign every RPC. They are embedded
// inline in the server-rendered root page, not served by any API, and go
// stale after an unobservable server-side TTL.
type SessionTokens struct {
	// CSRFToken is the anti-CSRF "at" form field (SNlM0e in the page).
	CSRFToken string
	// BuildLabel is the backend build ("bl" routing parameter).
	BuildLabel string
	// SessionID is the "f.sid" parameter (FdrFJe). Optional; some sessions
	// ship without one.
	SessionID string
}

// Valid reports whether the mandatory fields are present.
func (t SessionTokens) Valid() bool {
	return t.CSRFToken != "" && t.BuildLabel != ""
}

// Three isolated patterns: one failing must not mask the others, and text
// search beats HTML parsing here because the values live inside inline
// <script> blobs, not DOM attributes.
var (
	csrfTokenRe  = regexp.MustCompile(`"SNlM0e":"([^"]+)"`)
	buildLabelRe = regexp.MustCompile(`"(boq_labs-tailwind-[^"]+)"`)
	sessionIDRe  = regexp.MustCompile(`"FdrFJe":"([^"]+)"`)
)

// hydrationRetryDelay is how long to wait before the single re-scrape when
// the first pass finds nothing — the SPA may still be writing its boot data.
const hydrationRetryDelay = 2 * time.Second

// Session owns one authenticated identity: a transport plus the scraped
// tokens. One Session per logical user; never share token state across users.
type Session struct {
	transport Transport

	mu     sync.RWMutex
	tokens SessionTokens

	// refreshGroup collapses concurrent refreshes into one in-flight scrape.
	refreshGroup singleflight.Group
}

// NewSession wraps a transport. Call Refresh before the first RPC.
func NewSession(t Transport) *Session {
	return &Session{transport: t}
}

// Transport returns the underlying identity transport.
func (s *Session) Transport() Transport { return s.transport }

// Tokens returns the current token snapshot.
func (s *Session) Tokens() SessionTokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Refresh fetches the root page and re-scrapes the session tokens.
// Concurrent callers share a single in-flight refresh. Fails with
// ErrAuthenticationRequired when navigation terminates on a login domain, and
// with ErrTokensNotFound when the page loads but the tokens stay missing
// after one bounded retry.
func (s *Session) Refresh(ctx context.Context) (SessionTokens, error) {
	v, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return SessionTokens{}, err
	}
	return v.(SessionTokens), nil
}

func (s *Session) refresh(ctx context.Context) (SessionTokens, error) {
	incrTokenRefreshes()
	slog.Info("refreshing session tokens")

	page, err := s.transport.FetchRootPage(ctx)
	if err != nil {
		return SessionTokens{}, fmt.Errorf("fetch root page: %w", err)
	}
	if isLoginURL(page.FinalURL) {
		incrAuthFailures()
		return SessionTokens{}, fmt.Errorf("%w (redirected to %s)", ErrAuthenticationRequired, page.FinalURL)
	}

	tok := scrapeTokens(page.Body)
	if !tok.Valid() {
		// The page may still be hydrating client-side state; one short retry.
		select {
		case <-ctx.Done():
			return SessionTokens{}, ctx.Err()
		case <-time.After(hydrationRetryDelay):
		}
		page, err = s.transport.FetchRootPage(ctx)
		if err != nil {
			return SessionTokens{}, fmt.Errorf("fetch root page (retry): %w", err)
		}
		if isLoginURL(page.FinalURL) {
			incrAuthFailures()
			return SessionTokens{}, fmt.Errorf("%w (redirected to %s)", ErrAuthenticationRequired, page.FinalURL)
		}
		tok = scrapeTokens(page.Body)
	}
	if !tok.Valid() {
		return SessionTokens{}, ErrTokensNotFound
	}

	s.mu.Lock()
	s.tokens = tok
	s.mu.Unlock()

	slog.Info("session tokens acquired", slog.String("build_label", tok.BuildLabel))
	return tok, nil
}

// scrapeTokens runs the three extractions independently over the page body.
func scrapeTokens(body string) SessionTokens {
	var tok SessionTokens
	if m := csrfTokenRe.FindStringSubmatch(body); m != nil {
		tok.CSRFToken = m[1]
	}
	if m := buildLabelRe.FindStringSubmatch(body); m != nil {
		tok.BuildLabel = m[1]
	}
	if m := sessionIDRe.FindStringSubmatch(body); m != nil {
		tok.SessionID = m[1]
	}
	return tok
}
