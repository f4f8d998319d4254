// nlm-yt — NotebookLM YouTube MCP server.
//
// Turns YouTube videos into summaries, grounded Q&A, and infographics by
// driving Google NotebookLM over its private batchexecute RPC surface.
// Exposes the workflow as MCP tools; runs as HTTP MCP server or stdio
// transport.
package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hari20258/chrome-extension-notebooklm-yt/internal/nlm"
	"github.com/hari20258/chrome-extension-notebooklm-yt/internal/nlmserver"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8892")
)

func main() {
	client, jobStore, err := initClient()
	if err != nil {
		slog.Error("init failed", slog.Any("error", err))
		return
	}
	defer jobStore.Close()

	slog.Info("starting nlm-yt",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "nlm-yt",
		Version: version,
	}, nil)

	nlmserver.Init(client, jobStore)
	nlmserver.RegisterTools(server)
	slog.Info("tools registered", slog.Int("count", 7))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "nlm-yt",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      nlm.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initClient() (*nlm.Client, *nlmserver.JobStore, error) {
	c := nlm.Config{
		BaseURL:                 env.Str("NLM_BASE_URL", ""),
		Language:                env.Str("NLM_LANGUAGE", "en"),
		PostMutationSettleDelay: env.Duration("NLM_SETTLE_DELAY", 10*time.Second),
		SummaryIndexDelay:       env.Duration("NLM_INDEX_DELAY", 30*time.Second),
		ArtifactPollInterval:    env.Duration("NLM_POLL_INTERVAL", 10*time.Second),
		ArtifactPollAttempts:    env.Int("NLM_POLL_ATTEMPTS", 30),
		StreamTimeout:           env.Duration("NLM_STREAM_TIMEOUT", 2*time.Minute),
		RPCTimeout:              env.Duration("NLM_RPC_TIMEOUT", 30*time.Second),
		RPCRateLimit:            env.Float("NLM_RPC_RATE", 1),
		CookieFile:              env.Str("NLM_COOKIE_FILE", ""),
		CachePath:               env.Str("NLM_CACHE_PATH", "data/notebooks.db"),
		ChromeUserDataDir:       env.Str("CHROME_USER_DATA_DIR", "data/chrome-profile"),
		Headless:                env.Str("HEADLESS", "true") == "true",
	}
	nlm.Init(c)

	var (
		transport nlm.Transport
		err       error
	)
	switch mode := env.Str("NLM_TRANSPORT", "http"); mode {
	case "chrome":
		transport, err = nlm.NewChromeTransport(c.ChromeUserDataDir, c.Headless)
	default:
		transport, err = nlm.NewHTTPTransport(c.CookieFile)
	}
	if err != nil {
		return nil, nil, err
	}

	store, err := nlm.OpenNotebookStore(c.CachePath)
	if err != nil {
		return nil, nil, err
	}

	session := nlm.NewSession(transport)
	client := nlm.NewClient(session, store)

	// Warm up the session eagerly so auth problems surface at startup, but
	// keep serving: chrome transport users log in interactively later.
	startCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := client.Start(startCtx); err != nil {
		switch {
		case !errors.Is(err, nlm.ErrAuthenticationRequired):
			slog.Warn("session warmup failed", slog.Any("error", err))
		default:
			ct, headed := transport.(*nlm.ChromeTransport)
			if !headed || c.Headless {
				slog.Warn("not logged in to NotebookLM; tools will fail until cookies are refreshed")
				break
			}
			// Headed chrome: the browser window is on screen, so wait for
			// the user to complete the Google login and retry warmup.
			slog.Info("waiting for interactive NotebookLM login in the browser window")
			loginCtx, loginCancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := ct.WaitForLogin(loginCtx); err != nil {
				slog.Warn("interactive login did not complete", slog.Any("error", err))
			} else if err := client.Start(loginCtx); err != nil {
				slog.Warn("session warmup failed after login", slog.Any("error", err))
			}
			loginCancel()
		}
	}

	jobStore, err := nlmserver.OpenJobStore(env.Str("NLM_JOBS_PATH", "data/jobs.db"))
	if err != nil {
		return nil, nil, err
	}

	cacheTTL := env.Duration("CACHE_TTL", 24*time.Hour)
	nlm.InitCache(env.Str("REDIS_URL", ""), cacheTTL,
		env.Int("CACHE_MAX_ENTRIES", 1000),
		env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second))

	return client, jobStore, nil
}
