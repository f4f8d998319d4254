package nlm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// summaryPrompt is the canonical prompt for the summarize action.
const summaryPrompt = "give me summary of the video"

// failedAnswerText is returned when the streamed miner could not recover any
// answer from the response.
const failedAnswerText = "Failed to generate an answer."

// notebookURLRe matches a direct link to an existing notebook.
var notebookURLRe = regexp.MustCompile(`notebooklm\.google\.com/notebook/([0-9a-f-]{36})`)

// Client is the notebook orchestrator: it owns one Session (tokens +
// transport) and the durable notebook cache, and exposes the per-URL
// workflow operations. One Client per logical user.
type Client struct {
	session *Session
	store   *NotebookStore

	// mutations on the same notebook must be sequenced; the backend's
	// consistency window after a mutating RPC is unknown.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewClient builds a Client. store may be nil to disable durable caching.
func NewClient(session *Session, store *NotebookStore) *Client {
	return &Client{
		session: session,
		store:   store,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Session returns the client's session, for callers that need the transport
// (resource downloads).
func (c *Client) Session() *Session { return c.session }

// Start eagerly refreshes session tokens so the first RPC doesn't pay the
// scrape latency.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.session.Refresh(ctx)
	return err
}

func (c *Client) notebookLock(notebookID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	mu, ok := c.locks[notebookID]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[notebookID] = mu
	}
	return mu
}

// --- RPC execution ---

// executeRPC runs one batchexecute call and decodes its envelope. A nil
// envelope with a nil error means the backend returned no data for this
// procedure — polling callers treat that as "not yet".
func (c *Client) executeRPC(ctx context.Context, rpcID string, args any) (*Envelope, error) {
	tok := c.session.Tokens()
	if !tok.Valid() {
		var err error
		if tok, err = c.session.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	if err := rpcLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	query, form, err := EncodeEnvelope(rpcID, args, tok, cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", rpcID, err)
	}
	endpoint := cfg.BaseURL + cfg.RPCPath + "?" + query.Encode()

	incrRPCRequests()
	body, status, err := c.session.Transport().PostForm(ctx, endpoint, form, cfg.RPCTimeout)
	if err != nil {
		incrRPCErrors()
		return nil, fmt.Errorf("rpc %s: %w", rpcID, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusFound {
		incrAuthFailures()
		return nil, fmt.Errorf("rpc %s: %w", rpcID, ErrAuthenticationRequired)
	}
	if status != http.StatusOK {
		incrRPCErrors()
		return nil, fmt.Errorf("rpc %s: %w", rpcID, &StatusError{StatusCode: status})
	}
	// Redirects are followed, so an expired session comes back as a 200 HTML
	// login page rather than a 3xx/4xx.
	if strings.HasPrefix(http.DetectContentType(body), "text/html") {
		incrAuthFailures()
		return nil, fmt.Errorf("rpc %s: %w (endpoint served an HTML page)", rpcID, ErrAuthenticationRequired)
	}

	env := DecodeEnvelope(string(body))
	if env == nil {
		slog.Debug("rpc returned no envelope",
			slog.String("rpc", rpcID),
			slog.String("raw_prefix", truncate(string(body), 120)))
	}
	return env, nil
}

// requirePayload runs an RPC that must produce a decodable payload.
func (c *Client) requirePayload(ctx context.Context, rpcID string, args any) (any, error) {
	env, err := c.executeRPC(ctx, rpcID, args)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("rpc %s: %w", rpcID, ErrMalformedResponse)
	}
	return env.Payload()
}

// executeStream runs the streamed free-form generation endpoint and returns
// the raw response bytes for the miner.
func (c *Client) executeStream(ctx context.Context, fReq string) ([]byte, error) {
	tok := c.session.Tokens()
	if !tok.Valid() {
		var err error
		if tok, err = c.session.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	if err := rpcLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	query, form, err := EncodeEnvelope("", nil, tok, cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("stream rpc: %w", err)
	}
	// The streamed endpoint routes by path, not rpcids, and takes a
	// pre-serialized f.req instead of the generic envelope.
	query.Del("rpcids")
	query.Del("source-path")
	form.Set("f.req", fReq)
	endpoint := cfg.BaseURL + cfg.StreamRPCPath + "?" + query.Encode()

	incrStreamRequests()
	body, status, err := c.session.Transport().PostForm(ctx, endpoint, form, cfg.StreamTimeout)
	if err != nil {
		incrRPCErrors()
		return nil, fmt.Errorf("stream rpc: %w", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusFound {
		incrAuthFailures()
		return nil, fmt.Errorf("stream rpc: %w", ErrAuthenticationRequired)
	}
	if status != http.StatusOK {
		incrRPCErrors()
		return nil, fmt.Errorf("stream rpc: %w", &StatusError{StatusCode: status})
	}
	if strings.HasPrefix(http.DetectContentType(body), "text/html") {
		incrAuthFailures()
		return nil, fmt.Errorf("stream rpc: %w (endpoint served an HTML page)", ErrAuthenticationRequired)
	}
	return body, nil
}

// --- notebook resolution ---

// notebookIDFromURL extracts the notebook id from a direct notebook link.
func notebookIDFromURL(rawURL string) string {
	if m := notebookURLRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// PrepareNotebook ensures a notebook + attached source exist for videoURL.
// Returns the ref and whether the source was created by this call (fresh
// sources need indexing time before they answer queries). Cached refs are
// reused unconditionally.
func (c *Client) PrepareNotebook(ctx context.Context, videoURL string) (NotebookRef, bool, error) {
	if ref, ok, err := c.store.Get(ctx, videoURL); err != nil {
		slog.Warn("notebook cache read failed", slog.Any("error", err))
	} else if ok {
		incrNotebookCacheHits()
		slog.Info("notebook cache hit", slog.String("notebook_id", ref.NotebookID))
		return ref, false, nil
	}

	// A direct notebook link names an existing container: discover its
	// primary source instead of importing anything.
	if id := notebookIDFromURL(videoURL); id != "" {
		ref, err := c.adoptNotebook(ctx, id)
		if err != nil {
			return NotebookRef{}, false, err
		}
		if err := c.store.Put(ctx, videoURL, ref); err != nil {
			slog.Warn("notebook cache write failed", slog.Any("error", err))
		}
		return ref, false, nil
	}

	notebookID, err := c.createNotebook(ctx)
	if err != nil {
		return NotebookRef{}, false, err
	}

	sourceID, err := c.addSource(ctx, notebookID, videoURL)
	if err != nil {
		return NotebookRef{}, false, err
	}

	ref := NotebookRef{NotebookID: notebookID, SourceID: sourceID}
	if err := c.store.Put(ctx, videoURL, ref); err != nil {
		slog.Warn("notebook cache write failed", slog.Any("error", err))
	}
	return ref, true, nil
}

// adoptNotebook resolves the primary source of an existing notebook.
func (c *Client) adoptNotebook(ctx context.Context, notebookID string) (NotebookRef, error) {
	sources, err := c.listSourcesByNotebook(ctx, notebookID)
	if err != nil {
		return NotebookRef{}, err
	}
	if len(sources) == 0 {
		return NotebookRef{}, fmt.Errorf("notebook %s: %w", notebookID, ErrSourceRejected)
	}
	return NotebookRef{NotebookID: notebookID, SourceID: sources[0].SourceID}, nil
}

// createNotebook invokes the create-container RPC with the default
// configuration payload. Schema (v1): new notebook id at payload index 2.
func (c *Client) createNotebook(ctx context.Context) (string, error) {
	slog.Info("creating notebook")
	payload, err := c.requirePayload(ctx, RPCCreateNotebook, createNotebookArgs())
	if err != nil {
		return "", fmt.Errorf("create notebook: %w", err)
	}
	id, ok := notebookIDFromCreate(payload)
	if !ok {
		return "", ErrCreationFailed
	}
	incrNotebooksCreated()
	slog.Info("notebook created", slog.String("notebook_id", id))

	if err := c.store.SetLastNotebook(ctx, id); err != nil {
		slog.Warn("persist last notebook failed", slog.Any("error", err))
	}
	return id, nil
}

// addSource attaches videoURL to the notebook and mines the new source id.
// No UUID anywhere in the result means the backend rejected the content
// (usually: no transcript), which the user can act on — surface it distinctly.
func (c *Client) addSource(ctx context.Context, notebookID, videoURL string) (string, error) {
	mu := c.notebookLock(notebookID)
	mu.Lock()
	defer mu.Unlock()

	slog.Info("adding source", slog.String("notebook_id", notebookID), slog.String("url", videoURL))
	payload, err := c.requirePayload(ctx, RPCAddSource, addSourceArgs(notebookID, videoURL))
	if err != nil {
		return "", fmt.Errorf("add source: %w", err)
	}
	sourceID, ok := FindString(payload, IsUUID)
	if !ok {
		return "", fmt.Errorf("add source %s: %w", videoURL, ErrSourceRejected)
	}
	incrSourcesAdded()
	slog.Info("source added", slog.String("source_id", sourceID))

	// Empirical settle window: the backend needs time to ingest the
	// transcript before dependent RPCs see the new source.
	if err := sleepCtx(ctx, cfg.PostMutationSettleDelay); err != nil {
		return "", err
	}
	return sourceID, nil
}

// --- actions ---

// Summarize generates a text summary for the video behind videoURL.
func (c *Client) Summarize(ctx context.Context, videoURL string) (string, NotebookRef, error) {
	return c.query(ctx, videoURL, summaryPrompt, "")
}

// Ask answers a free-form question about the video behind videoURL.
// sourceIDOverride targets a specific source instead of the primary one.
func (c *Client) Ask(ctx context.Context, videoURL, question, sourceIDOverride string) (string, NotebookRef, error) {
	if strings.TrimSpace(question) == "" {
		return "", NotebookRef{}, fmt.Errorf("question is required")
	}
	return c.query(ctx, videoURL, question, sourceIDOverride)
}

func (c *Client) query(ctx context.Context, videoURL, prompt, sourceIDOverride string) (string, NotebookRef, error) {
	ref, created, err := c.PrepareNotebook(ctx, videoURL)
	if err != nil {
		return "", NotebookRef{}, err
	}
	if created {
		// Fresh sources answer with empty or truncated results until the
		// backend finishes indexing.
		slog.Info("waiting for source indexing", slog.Duration("delay", cfg.SummaryIndexDelay))
		if err := sleepCtx(ctx, cfg.SummaryIndexDelay); err != nil {
			return "", NotebookRef{}, err
		}
	}

	sourceID := ref.SourceID
	if sourceIDOverride != "" {
		sourceID = sourceIDOverride
	}

	fReq, err := streamQueryRequest(sourceID, prompt, ref.NotebookID)
	if err != nil {
		return "", NotebookRef{}, err
	}
	raw, err := c.executeStream(ctx, fReq)
	if err != nil {
		return "", NotebookRef{}, err
	}

	text := ParseStream(raw)
	if text == "" {
		slog.Warn("streamed query yielded no answer",
			slog.String("notebook_id", ref.NotebookID),
			slog.String("raw_prefix", truncate(string(raw), 120)))
		return failedAnswerText, ref, nil
	}
	return text, ref, nil
}

// GenerateInfographic triggers infographic generation for videoURL and polls
// until an image reference materializes. Long-running: settle delay plus up
// to ArtifactPollAttempts × ArtifactPollInterval.
func (c *Client) GenerateInfographic(ctx context.Context, videoURL string) (string, error) {
	ref, _, err := c.PrepareNotebook(ctx, videoURL)
	if err != nil {
		return "", err
	}

	mu := c.notebookLock(ref.NotebookID)
	mu.Lock()
	slog.Info("triggering infographic generation", slog.String("notebook_id", ref.NotebookID))
	_, err = c.executeRPC(ctx, RPCGenerateInfographic, triggerInfographicArgs(ref.NotebookID, ref.SourceID))
	mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("trigger generation: %w", err)
	}

	return c.PollArtifacts(ctx, ref.NotebookID)
}

// PollArtifacts polls the artifact list until a generated image reference
// (hosted URL or data URI) appears. A single failed poll is logged and
// retried; the attempt budget exhausting is the only escalation.
func (c *Client) PollArtifacts(ctx context.Context, notebookID string) (string, error) {
	slog.Info("polling for artifacts", slog.String("notebook_id", notebookID))
	for attempt := 1; attempt <= cfg.ArtifactPollAttempts; attempt++ {
		incrArtifactPolls()
		env, err := c.executeRPC(ctx, RPCListArtifacts, listArtifactsArgs(notebookID))
		switch {
		case err != nil && errors.Is(err, ErrAuthenticationRequired):
			return "", err
		case err != nil:
			slog.Warn("artifact poll failed", slog.Int("attempt", attempt), slog.Any("error", err))
		case env != nil:
			if payload, perr := env.Payload(); perr == nil {
				if imageRef, ok := FindString(payload, IsImageRef); ok {
					slog.Info("artifact image found", slog.String("image", truncate(imageRef, 80)))
					return imageRef, nil
				}
			}
		}

		slog.Debug("artifact not ready",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.ArtifactPollAttempts))
		if err := sleepCtx(ctx, cfg.ArtifactPollInterval); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("notebook %s: %w", notebookID, ErrGenerationTimeout)
}

// Source describes one content source attached to a notebook.
type Source struct {
	SourceID    string `json:"source_id"`
	Title       string `json:"title"`
	Kind        string `json:"type"`
	OriginalURL string `json:"original_url,omitempty"`
}

// ListSources returns the sources attached to the notebook behind videoURL.
func (c *Client) ListSources(ctx context.Context, videoURL string) ([]Source, error) {
	notebookID := notebookIDFromURL(videoURL)
	if notebookID == "" {
		ref, _, err := c.PrepareNotebook(ctx, videoURL)
		if err != nil {
			return nil, err
		}
		notebookID = ref.NotebookID
	}
	return c.listSourcesByNotebook(ctx, notebookID)
}

func (c *Client) listSourcesByNotebook(ctx context.Context, notebookID string) ([]Source, error) {
	payload, err := c.requirePayload(ctx, RPCGetProject, getProjectArgs(notebookID))
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return mineSources(payload), nil
}

// DeleteNotebook removes the notebook behind videoURL upstream and evicts
// the cache entry.
func (c *Client) DeleteNotebook(ctx context.Context, videoURL string) error {
	ref, ok, err := c.store.Get(ctx, videoURL)
	if err != nil {
		return err
	}
	notebookID := ref.NotebookID
	if !ok {
		if notebookID = notebookIDFromURL(videoURL); notebookID == "" {
			return fmt.Errorf("no notebook known for %s", videoURL)
		}
	}

	mu := c.notebookLock(notebookID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := c.executeRPC(ctx, RPCDeleteNotebook, deleteNotebookArgs(notebookID)); err != nil {
		return fmt.Errorf("delete notebook: %w", err)
	}
	if err := c.store.Delete(ctx, videoURL); err != nil {
		slog.Warn("notebook cache delete failed", slog.Any("error", err))
	}
	slog.Info("notebook deleted", slog.String("notebook_id", notebookID))
	return nil
}

// LastNotebook returns the most recently created notebook id, for recovering
// a generation that outlived its caller.
func (c *Client) LastNotebook(ctx context.Context) (string, error) {
	return c.store.LastNotebook(ctx)
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
