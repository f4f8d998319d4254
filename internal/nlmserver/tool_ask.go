package nlmserver

import (
	"context"
	"fmt"

	"github.com/hari20258/chrome-extension-notebooklm-yt/internal/nlm"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// VideoAskInput is the input for video_ask.
type VideoAskInput struct {
	VideoURL string `json:"video_url"`
	Question string `json:"question"`
	SourceID string `json:"source_id,omitempty"`
}

// VideoAskResult is the output for video_ask.
type VideoAskResult struct {
	VideoURL   string `json:"video_url"`
	NotebookID string `json:"notebook_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Cached     bool   `json:"cached,omitempty"`
}

func registerVideoAsk(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_ask",
		Description: "Ask a free-form question about a YouTube video via NotebookLM. Grounded in the video transcript; reuses the notebook created by earlier calls for the same URL. Pass source_id (from notebook_sources) to target a specific source in a multi-source notebook.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input VideoAskInput) (*mcp.CallToolResult, *VideoAskResult, error) {
		if input.VideoURL == "" {
			return nil, nil, fmt.Errorf("video_url is required")
		}
		if input.Question == "" {
			return nil, nil, fmt.Errorf("question is required")
		}

		cacheKey := nlm.CacheKey("ask", input.VideoURL, input.SourceID, input.Question)
		if cached, ok := nlm.CacheLoadJSON[VideoAskResult](ctx, cacheKey); ok {
			cached.Cached = true
			return nil, &cached, nil
		}

		answer, ref, err := client.Ask(ctx, input.VideoURL, input.Question, input.SourceID)
		if err != nil {
			return nil, nil, err
		}
		result := &VideoAskResult{
			VideoURL:   input.VideoURL,
			NotebookID: ref.NotebookID,
			Question:   input.Question,
			Answer:     answer,
		}
		nlm.CacheStoreJSON(ctx, cacheKey, *result)
		return nil, result, nil
	})
}
