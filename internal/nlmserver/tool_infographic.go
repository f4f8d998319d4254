package nlmserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hari20258/chrome-extension-notebooklm-yt/internal/nlm"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// InfographicGenerateInput is the input for infographic_generate.
type InfographicGenerateInput struct {
	VideoURL string `json:"video_url"`
}

// InfographicJobResult is the output for infographic_generate and
// infographic_status.
type InfographicJobResult struct {
	JobID       string `json:"job_id"`
	VideoURL    string `json:"video_url"`
	Status      string `json:"status"`
	ImageURL    string `json:"image_url,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// InfographicStatusInput is the input for infographic_status.
type InfographicStatusInput struct {
	JobID string `json:"job_id"`
}

// InfographicFetchInput is the input for infographic_fetch.
type InfographicFetchInput struct {
	NotebookID string `json:"notebook_id,omitempty"`
}

// InfographicFetchResult is the output for infographic_fetch.
type InfographicFetchResult struct {
	NotebookID string `json:"notebook_id"`
	ImageURL   string `json:"image_url"`
	MIMEType   string `json:"mime_type"`
}

func jobResult(job InfographicJob) *InfographicJobResult {
	r := &InfographicJobResult{
		JobID:     job.ID,
		VideoURL:  job.VideoURL,
		Status:    string(job.Status),
		ImageURL:  job.ImageURL,
		MIMEType:  job.MIMEType,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if !job.CompletedAt.IsZero() {
		r.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return r
}

// jobDeadline bounds the background worker: notebook setup, generation
// trigger, the full poll window, and the download, with slack.
func jobDeadline() time.Duration {
	c := nlm.Cfg
	poll := time.Duration(c.ArtifactPollAttempts) * c.ArtifactPollInterval
	return c.PostMutationSettleDelay + c.SummaryIndexDelay + poll + 5*time.Minute
}

// terminalWriteTimeout bounds the status writes that must land even after the
// worker's own context has expired: a job that cannot record its outcome
// stays processing forever.
const terminalWriteTimeout = 10 * time.Second

// failJob records a terminal failure on its own context, since the worker
// context is usually already dead by the time a timeout-shaped error arrives.
func failJob(jobID string, cause error) {
	slog.Error("infographic job failed", slog.String("job_id", jobID), slog.Any("error", cause))
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()
	if err := jobStore.Fail(ctx, jobID, cause.Error()); err != nil {
		slog.Error("failed to record job failure", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

// completeJob records completion on its own context, like failJob.
func completeJob(jobID, imageURL string, imageData []byte, mimeType string) {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()
	if err := jobStore.Complete(ctx, jobID, imageURL, imageData, mimeType); err != nil {
		slog.Error("failed to complete job", slog.String("job_id", jobID), slog.Any("error", err))
		return
	}
	slog.Info("infographic job completed",
		slog.String("job_id", jobID),
		slog.Int("image_bytes", len(imageData)),
		slog.String("mime_type", mimeType))
}

func runInfographicJob(jobID, videoURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), jobDeadline())
	defer cancel()

	if err := jobStore.MarkProcessing(ctx, jobID); err != nil {
		slog.Error("failed to claim job", slog.String("job_id", jobID), slog.Any("error", err))
		return
	}

	imageURL, err := client.GenerateInfographic(ctx, videoURL)
	if err != nil {
		failJob(jobID, err)
		return
	}

	data, _, err := nlm.DownloadResource(ctx, client.Session().Transport(), imageURL)
	if err != nil {
		failJob(jobID, fmt.Errorf("download infographic: %w", err))
		return
	}
	normalized, mimeType, err := NormalizeImage(data)
	if err != nil {
		failJob(jobID, err)
		return
	}

	completeJob(jobID, imageURL, normalized, mimeType)
}

func registerInfographicGenerate(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "infographic_generate",
		Description: "Start generating an infographic for a YouTube video via NotebookLM. Returns immediately with a job_id; generation runs in the background and typically takes 3-6 minutes. Poll infographic_status with the job_id to retrieve the image.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input InfographicGenerateInput) (*mcp.CallToolResult, *InfographicJobResult, error) {
		if input.VideoURL == "" {
			return nil, nil, fmt.Errorf("video_url is required")
		}
		job, err := jobStore.Create(ctx, input.VideoURL)
		if err != nil {
			return nil, nil, err
		}
		go runInfographicJob(job.ID, job.VideoURL)
		return nil, jobResult(job), nil
	})
}

func registerInfographicStatus(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "infographic_status",
		Description: "Check an infographic generation job started by infographic_generate. While pending or processing, returns the status only. Once completed, the response includes the rendered infographic image.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input InfographicStatusInput) (*mcp.CallToolResult, *InfographicJobResult, error) {
		if input.JobID == "" {
			return nil, nil, fmt.Errorf("job_id is required")
		}
		job, ok, err := jobStore.Get(ctx, input.JobID)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, fmt.Errorf("unknown job: %s", input.JobID)
		}
		result := jobResult(job)
		if job.Status != StatusCompleted {
			return nil, result, nil
		}
		callResult := &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Infographic for %s", job.VideoURL)},
				&mcp.ImageContent{Data: job.ImageData, MIMEType: job.MIMEType},
			},
		}
		return callResult, result, nil
	})
}

func registerInfographicFetch(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "infographic_fetch",
		Description: "Fetch the latest infographic artifact from a notebook directly, bypassing the job queue. Useful after a restart or when generation was triggered in the NotebookLM UI. Defaults to the most recently used notebook when notebook_id is omitted.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input InfographicFetchInput) (*mcp.CallToolResult, *InfographicFetchResult, error) {
		notebookID := input.NotebookID
		if notebookID == "" {
			last, err := client.LastNotebook(ctx)
			if err != nil {
				return nil, nil, err
			}
			if last == "" {
				return nil, nil, fmt.Errorf("notebook_id is required: no notebook has been used yet")
			}
			notebookID = last
		}

		imageURL, err := client.PollArtifacts(ctx, notebookID)
		if err != nil {
			return nil, nil, err
		}
		data, _, err := nlm.DownloadResource(ctx, client.Session().Transport(), imageURL)
		if err != nil {
			return nil, nil, fmt.Errorf("download infographic: %w", err)
		}
		normalized, mimeType, err := NormalizeImage(data)
		if err != nil {
			return nil, nil, err
		}

		result := &InfographicFetchResult{
			NotebookID: notebookID,
			ImageURL:   imageURL,
			MIMEType:   mimeType,
		}
		callResult := &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Infographic from notebook %s", notebookID)},
				&mcp.ImageContent{Data: normalized, MIMEType: mimeType},
			},
		}
		return callResult, result, nil
	})
}
