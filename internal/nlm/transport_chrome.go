package nlm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromeTransport drives a real Chrome profile. Heavier than the cookie
// transport but the most robust option: the browser owns cookie scoping,
// redirects, and any anti-automation checks. RPC POSTs run as in-page fetch
// calls so they inherit the page's session exactly like the web app's own
// requests.
type ChromeTransport struct {
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	ctx         context.Context
}

// NewChromeTransport launches (or attaches to) a Chrome instance with a
// persistent user-data dir. The first run must be headed so the user can log
// in; afterwards the profile carries the session.
func NewChromeTransport(userDataDir string, headless bool) (*ChromeTransport, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserDataDir(userDataDir),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a broken Chrome install fails here, not on
	// the first RPC.
	if err := chromedp.Run(ctx); err != nil {
		ctxCancel()
		allocCancel()
		return nil, fmt.Errorf("chrome start: %w", err)
	}
	return &ChromeTransport{allocCancel: allocCancel, ctxCancel: ctxCancel, ctx: ctx}, nil
}

// FetchRootPage navigates to the root and captures the final location plus
// the rendered document, which carries the inline session tokens.
func (t *ChromeTransport) FetchRootPage(ctx context.Context) (RootPage, error) {
	runCtx, cancel := context.WithTimeout(t.ctx, 60*time.Second)
	defer cancel()

	var loc, body string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(cfg.BaseURL),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&loc),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return RootPage{}, ctx.Err()
		}
		return RootPage{}, fmt.Errorf("navigate root: %w", err)
	}
	return RootPage{FinalURL: loc, Body: body}, nil
}

// fetchResult carries an in-page fetch outcome back from the browser.
type fetchResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"` // base64 of the response bytes
	Error  string `json:"error"`
}

// pageFetchJS runs fetch inside the page and returns {status, body, error}
// with the body base64-encoded, so binary and text responses travel the same
// way.
const pageFetchJS = `(async () => {
	try {
		const opts = %s;
		if (opts.form) {
			const body = new URLSearchParams();
			for (const [k, v] of Object.entries(opts.form)) body.append(k, v);
			opts.body = body;
			delete opts.form;
		}
		const resp = await fetch(%s, opts);
		const buf = new Uint8Array(await resp.arrayBuffer());
		let bin = "";
		const chunk = 0x8000;
		for (let i = 0; i < buf.length; i += chunk) {
			bin += String.fromCharCode.apply(null, buf.subarray(i, i + chunk));
		}
		return {status: resp.status, body: btoa(bin), error: ""};
	} catch (e) {
		return {status: 0, body: "", error: String(e)};
	}
})()`

func (t *ChromeTransport) evalFetch(ctx context.Context, rawURL string, opts map[string]any, timeout time.Duration) ([]byte, int, error) {
	runCtx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, 0, fmt.Errorf("encode fetch options: %w", err)
	}
	urlJSON, _ := json.Marshal(rawURL)
	script := fmt.Sprintf(pageFetchJS, optsJSON, urlJSON)

	var res fetchResult
	awaitPromise := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &res, awaitPromise)); err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("page fetch: %w", err)
	}
	if res.Error != "" {
		return nil, res.Status, fmt.Errorf("page fetch: %s", res.Error)
	}
	data, err := base64.StdEncoding.DecodeString(res.Body)
	if err != nil {
		return nil, res.Status, fmt.Errorf("decode page fetch body: %w", err)
	}
	return data, res.Status, nil
}

// PostForm executes the RPC POST as an in-page fetch.
func (t *ChromeTransport) PostForm(ctx context.Context, rawURL string, form url.Values, timeout time.Duration) ([]byte, int, error) {
	formMap := make(map[string]string, len(form))
	for k := range form {
		formMap[k] = form.Get(k)
	}
	return t.evalFetch(ctx, rawURL, map[string]any{
		"method": "POST",
		"headers": map[string]string{
			"Content-Type":  "application/x-www-form-urlencoded;charset=UTF-8",
			"X-Same-Domain": "1",
		},
		"form": formMap,
	}, timeout)
}

// Download fetches a resource from inside the page so it rides the session
// cookies. Generated image URLs are referer-gated, so one is attached.
func (t *ChromeTransport) Download(ctx context.Context, rawURL string) ([]byte, int, error) {
	return t.evalFetch(ctx, rawURL, map[string]any{
		"method":   "GET",
		"referrer": cfg.BaseURL + "/",
	}, 60*time.Second)
}

// WaitForLogin blocks until navigation lands back on the NotebookLM origin,
// for headed first-run login flows.
func (t *ChromeTransport) WaitForLogin(ctx context.Context) error {
	for {
		var loc string
		if err := chromedp.Run(t.ctx, chromedp.Location(&loc)); err != nil {
			return fmt.Errorf("poll location: %w", err)
		}
		if !isLoginURL(loc) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (t *ChromeTransport) Close() error {
	t.ctxCancel()
	t.allocCancel()
	return nil
}
