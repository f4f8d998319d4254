package nlm

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// RootPage is the outcome of loading the site root with redirects followed.
type RootPage struct {
	// FinalURL is where the navigation terminated. A login-domain URL here
	// means the session is not authenticated.
	FinalURL string
	Body     string
}

// Transport supplies authenticated HTTP identity for everything the client
// does. Two interchangeable implementations exist: a raw cookie-jar HTTP
// client (HTTPTransport) and a real Chrome profile (ChromeTransport).
type Transport interface {
	// FetchRootPage loads the NotebookLM root page, following redirects.
	FetchRootPage(ctx context.Context) (RootPage, error)

	// PostForm executes an authenticated form POST against rawURL and returns
	// the raw response body and HTTP status.
	PostForm(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) ([]byte, int, error)

	// Download fetches a binary resource with session cookies attached.
	// Returns body bytes and HTTP status; content validation is the caller's
	// job (the backend serves login pages with a 200).
	Download(ctx context.Context, rawURL string) ([]byte, int, error)

	Close() error
}

// loginDomains are navigation targets that indicate an unauthenticated
// session.
var loginDomains = []string{
	"accounts.google.com",
	"accounts.youtube.com",
}

// isLoginURL reports whether u terminated on a login domain.
func isLoginURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	for _, d := range loginDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
