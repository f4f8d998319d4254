package nlm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"
)

// fakeTransport scripts transport behavior for session and client tests.
type fakeTransport struct {
	mu sync.Mutex

	pages      []RootPage // consumed in order; last one repeats
	pageErr    error
	fetchCalls int

	postFunc  func(rawURL string, form url.Values) ([]byte, int, error)
	postCalls []string // rawURLs in order

	downloadFunc func(rawURL string) ([]byte, int, error)
}

func (f *fakeTransport) FetchRootPage(ctx context.Context) (RootPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.pageErr != nil {
		return RootPage{}, f.pageErr
	}
	if len(f.pages) == 0 {
		return RootPage{}, errors.New("fakeTransport: no pages scripted")
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return page, nil
}

func (f *fakeTransport) PostForm(ctx context.Context, rawURL string, form url.Values, _ time.Duration) ([]byte, int, error) {
	f.mu.Lock()
	f.postCalls = append(f.postCalls, rawURL)
	fn := f.postFunc
	f.mu.Unlock()
	if fn == nil {
		return nil, 0, errors.New("fakeTransport: no post scripted")
	}
	return fn(rawURL, form)
}

func (f *fakeTransport) Download(ctx context.Context, rawURL string) ([]byte, int, error) {
	if f.downloadFunc == nil {
		return nil, 0, errors.New("fakeTransport: no download scripted")
	}
	return f.downloadFunc(rawURL)
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.postCalls)
}

const testBuildLabel = "boq_labs-tailwind-ui_20251101.00_p0"

func tokenPage() RootPage {
	return RootPage{
		FinalURL: "https://notebooklm.google.com/",
		Body: fmt.Sprintf(`<script>window.WIZ_global_data = {"SNlM0e":"csrf-abc:123","FdrFJe":"-55443322","x":"%s"};</script>`,
			testBuildLabel),
	}
}

func TestScrapeTokens(t *testing.T) {
	t.Run("all present", func(t *testing.T) {
		tok := scrapeTokens(tokenPage().Body)
		if tok.CSRFToken != "csrf-abc:123" {
			t.Errorf("CSRFToken = %q", tok.CSRFToken)
		}
		if tok.BuildLabel != testBuildLabel {
			t.Errorf("BuildLabel = %q", tok.BuildLabel)
		}
		if tok.SessionID != "-55443322" {
			t.Errorf("SessionID = %q", tok.SessionID)
		}
		if !tok.Valid() {
			t.Error("expected valid tokens")
		}
	})

	t.Run("session id optional", func(t *testing.T) {
		body := `"SNlM0e":"tok" "` + testBuildLabel + `"`
		tok := scrapeTokens(body)
		if !tok.Valid() {
			t.Errorf("tokens without f.sid should still be valid: %+v", tok)
		}
		if tok.SessionID != "" {
			t.Errorf("SessionID = %q, want empty", tok.SessionID)
		}
	})

	t.Run("missing csrf invalid", func(t *testing.T) {
		tok := scrapeTokens(`"` + testBuildLabel + `"`)
		if tok.Valid() {
			t.Error("expected invalid tokens")
		}
	})
}

func TestSessionRefresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ft := &fakeTransport{pages: []RootPage{tokenPage()}}
		s := NewSession(ft)
		tok, err := s.Refresh(context.Background())
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if tok.BuildLabel != testBuildLabel {
			t.Errorf("BuildLabel = %q", tok.BuildLabel)
		}
		if got := s.Tokens(); got != tok {
			t.Errorf("Tokens() = %+v, want %+v", got, tok)
		}
	})

	t.Run("login redirect", func(t *testing.T) {
		ft := &fakeTransport{pages: []RootPage{{
			FinalURL: "https://accounts.google.com/v3/signin/identifier?x=1",
			Body:     "<html>sign in</html>",
		}}}
		s := NewSession(ft)
		_, err := s.Refresh(context.Background())
		if !errors.Is(err, ErrAuthenticationRequired) {
			t.Errorf("err = %v, want ErrAuthenticationRequired", err)
		}
	})

	t.Run("hydration retry", func(t *testing.T) {
		empty := RootPage{FinalURL: "https://notebooklm.google.com/", Body: "<html>loading</html>"}
		ft := &fakeTransport{pages: []RootPage{empty, tokenPage()}}
		s := NewSession(ft)
		tok, err := s.Refresh(context.Background())
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if !tok.Valid() {
			t.Errorf("tokens invalid after retry: %+v", tok)
		}
		if ft.fetchCalls != 2 {
			t.Errorf("fetchCalls = %d, want 2", ft.fetchCalls)
		}
	})

	t.Run("tokens never appear", func(t *testing.T) {
		empty := RootPage{FinalURL: "https://notebooklm.google.com/", Body: "<html></html>"}
		ft := &fakeTransport{pages: []RootPage{empty}}
		s := NewSession(ft)
		_, err := s.Refresh(context.Background())
		if !errors.Is(err, ErrTokensNotFound) {
			t.Errorf("err = %v, want ErrTokensNotFound", err)
		}
	})
}

func TestIsLoginURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://accounts.google.com/signin", true},
		{"https://accounts.youtube.com/accounts/SetSID", true},
		{"https://myaccount.accounts.google.com/", true},
		{"https://notebooklm.google.com/", false},
		{"https://accounts.google.com.evil.example/", false},
		{"not a url at all://", false},
	}
	for _, tt := range tests {
		if got := isLoginURL(tt.in); got != tt.want {
			t.Errorf("isLoginURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
