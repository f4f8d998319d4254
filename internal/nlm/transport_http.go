package nlm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// HTTPTransport drives bare HTTP requests with a Chrome 131 TLS fingerprint
// and a cookie jar seeded from a captured cookie export. Lighter than a real
// browser, but the jar has to recreate the cookie scoping and redirect
// behavior Chrome provides for free.
type HTTPTransport struct {
	client    tls_client.HttpClient
	userAgent string
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// clientTimeout is the tls-client-level request cap. It must sit above the
// largest per-request timeout the config allows, or the client aborts slow
// streamed generations before the caller's context does; the per-request
// context in PostForm enforces the real bound.
func clientTimeout() time.Duration {
	t := cfg.StreamTimeout
	if cfg.RPCTimeout > t {
		t = cfg.RPCTimeout
	}
	return t + 30*time.Second
}

// NewHTTPTransport creates a cookie transport. cookieFile is a JSON cookie
// export (Chrome extension or Playwright storage format); empty means an
// unseeded jar, which will fail authentication until cookies arrive some
// other way. Call after Init: the request cap derives from the configured
// timeouts.
func NewHTTPTransport(cookieFile string) (*HTTPTransport, error) {
	jar := tls_client.NewCookieJar()
	opts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(clientTimeout().Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithCookieJar(jar),
	}
	client, err := tls_client.NewHttpClient(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("tls-client init: %w", err)
	}
	t := &HTTPTransport{client: client, userAgent: chromeUA}

	if cookieFile != "" {
		if err := t.loadCookies(cookieFile); err != nil {
			return nil, fmt.Errorf("load cookies: %w", err)
		}
	}
	return t, nil
}

// cookieRecord accepts both Chrome-extension exports (expirationDate) and
// Playwright storage state (expires).
type cookieRecord struct {
	Name           string  `json:"name"`
	Value          string  `json:"value"`
	Domain         string  `json:"domain"`
	Path           string  `json:"path"`
	Expires        float64 `json:"expires"`
	ExpirationDate float64 `json:"expirationDate"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
}

func (t *HTTPTransport) loadCookies(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var records []cookieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		// Playwright wraps the list in {"cookies": [...]}.
		var wrapped struct {
			Cookies []cookieRecord `json:"cookies"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		records = wrapped.Cookies
	}

	byHost := make(map[string][]*fhttp.Cookie)
	for _, r := range records {
		host := strings.TrimPrefix(r.Domain, ".")
		if host == "" {
			continue
		}
		exp := r.Expires
		if exp == 0 {
			exp = r.ExpirationDate
		}
		c := &fhttp.Cookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			Secure:   r.Secure,
			HttpOnly: r.HTTPOnly,
		}
		if exp > 0 {
			c.Expires = time.Unix(int64(exp), 0)
		}
		byHost[host] = append(byHost[host], c)
	}
	for host, cookies := range byHost {
		u := &url.URL{Scheme: "https", Host: host, Path: "/"}
		t.client.SetCookies(u, cookies)
	}
	return nil
}

func (t *HTTPTransport) do(ctx context.Context, method, rawURL string, headers map[string]string, body io.Reader) (*fhttp.Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "*/*")
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("user-agent", t.userAgent)
	req.Header.Set("referer", cfg.BaseURL+"/")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	// Chrome-like header order matters for fingerprinting
	req.Header[fhttp.HeaderOrderKey] = []string{
		"accept",
		"accept-language",
		"content-type",
		"origin",
		"referer",
		"cookie",
		"user-agent",
		"x-same-domain",
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tls request: %w", err)
	}
	return resp, nil
}

// FetchRootPage loads the site root. tls-client follows redirects by default,
// so a login bounce shows up in the final request URL.
func (t *HTTPTransport) FetchRootPage(ctx context.Context) (RootPage, error) {
	resp, err := t.do(ctx, fhttp.MethodGet, cfg.BaseURL, map[string]string{
		"accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}, nil)
	if err != nil {
		return RootPage{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return RootPage{}, fmt.Errorf("read root page: %w", err)
	}
	final := cfg.BaseURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return RootPage{FinalURL: final, Body: string(body)}, nil
}

// PostForm executes one authenticated form POST.
func (t *HTTPTransport) PostForm(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := t.do(ctx, fhttp.MethodPost, rawURL, map[string]string{
		"content-type":  "application/x-www-form-urlencoded;charset=UTF-8",
		"origin":        cfg.BaseURL,
		"x-same-domain": "1",
	}, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// Download fetches a binary resource with session cookies attached.
func (t *HTTPTransport) Download(ctx context.Context, rawURL string) ([]byte, int, error) {
	resp, err := t.do(ctx, fhttp.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
