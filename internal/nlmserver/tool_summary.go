package nlmserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hari20258/chrome-extension-notebooklm-yt/internal/nlm"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// VideoSummaryInput is the input for video_summary.
type VideoSummaryInput struct {
	VideoURL string `json:"video_url"`
}

// VideoSummaryResult is the output for video_summary.
type VideoSummaryResult struct {
	VideoURL   string `json:"video_url"`
	NotebookID string `json:"notebook_id"`
	Summary    string `json:"summary"`
	Cached     bool   `json:"cached,omitempty"`
}

func registerVideoSummary(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_summary",
		Description: "Summarize a YouTube video via NotebookLM. Imports the video as a notebook source (reusing an existing notebook when the URL was seen before) and returns the generated summary. First call for a new video can take a minute while NotebookLM indexes the transcript.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input VideoSummaryInput) (*mcp.CallToolResult, *VideoSummaryResult, error) {
		if input.VideoURL == "" {
			return nil, nil, fmt.Errorf("video_url is required")
		}

		cacheKey := nlm.CacheKey("summary", input.VideoURL)
		if cached, ok := nlm.CacheLoadJSON[VideoSummaryResult](ctx, cacheKey); ok {
			cached.Cached = true
			return nil, &cached, nil
		}

		summary, ref, err := client.Summarize(ctx, input.VideoURL)
		if err != nil {
			return nil, nil, err
		}
		result := &VideoSummaryResult{
			VideoURL:   input.VideoURL,
			NotebookID: ref.NotebookID,
			Summary:    summary,
		}
		nlm.CacheStoreJSON(ctx, cacheKey, *result)
		slog.Info("video summarized", slog.String("notebook_id", ref.NotebookID), slog.Int("summary_len", len(summary)))
		return nil, result, nil
	})
}
