package nlmserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hari20258/chrome-extension-notebooklm-yt/internal/nlm"
)

// NotebookSourcesInput is the input for notebook_sources.
type NotebookSourcesInput struct {
	VideoURL string `json:"video_url"`
}

// NotebookSourcesResult is the output for notebook_sources.
type NotebookSourcesResult struct {
	VideoURL string       `json:"video_url"`
	Sources  []nlm.Source `json:"sources"`
}

// NotebookDeleteInput is the input for notebook_delete.
type NotebookDeleteInput struct {
	VideoURL string `json:"video_url"`
}

// NotebookDeleteResult is the output for notebook_delete.
type NotebookDeleteResult struct {
	VideoURL string `json:"video_url"`
	Deleted  bool   `json:"deleted"`
}

func registerNotebookSources(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "notebook_sources",
		Description: "List the sources of the NotebookLM notebook backing a YouTube or notebook URL. Returns source ids, titles, and kinds; source ids feed video_ask's source_id parameter.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input NotebookSourcesInput) (*mcp.CallToolResult, *NotebookSourcesResult, error) {
		if input.VideoURL == "" {
			return nil, nil, fmt.Errorf("video_url is required")
		}
		sources, err := client.ListSources(ctx, input.VideoURL)
		if err != nil {
			return nil, nil, err
		}
		return nil, &NotebookSourcesResult{VideoURL: input.VideoURL, Sources: sources}, nil
	})
}

func registerNotebookDelete(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "notebook_delete",
		Description: "Delete the NotebookLM notebook backing a YouTube or notebook URL and forget its cached mapping. The next video_summary or video_ask for the same video creates a fresh notebook.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input NotebookDeleteInput) (*mcp.CallToolResult, *NotebookDeleteResult, error) {
		if input.VideoURL == "" {
			return nil, nil, fmt.Errorf("video_url is required")
		}
		if err := client.DeleteNotebook(ctx, input.VideoURL); err != nil {
			return nil, nil, err
		}
		slog.Info("notebook deleted", slog.String("video_url", input.VideoURL))
		return nil, &NotebookDeleteResult{VideoURL: input.VideoURL, Deleted: true}, nil
	})
}
