package nlm

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the core.
var metrics struct {
	RPCRequests       atomic.Int64
	RPCErrors         atomic.Int64
	StreamRequests    atomic.Int64
	TokenRefreshes    atomic.Int64
	AuthFailures      atomic.Int64
	NotebooksCreated  atomic.Int64
	SourcesAdded      atomic.Int64
	ArtifactPolls     atomic.Int64
	Downloads         atomic.Int64
	NotebookCacheHits atomic.Int64
}

func incrRPCRequests()       { metrics.RPCRequests.Add(1) }
func incrRPCErrors()         { metrics.RPCErrors.Add(1) }
func incrStreamRequests()    { metrics.StreamRequests.Add(1) }
func incrTokenRefreshes()    { metrics.TokenRefreshes.Add(1) }
func incrAuthFailures()      { metrics.AuthFailures.Add(1) }
func incrNotebooksCreated()  { metrics.NotebooksCreated.Add(1) }
func incrSourcesAdded()      { metrics.SourcesAdded.Add(1) }
func incrArtifactPolls()     { metrics.ArtifactPolls.Add(1) }
func incrDownloads()         { metrics.Downloads.Add(1) }
func incrNotebookCacheHits() { metrics.NotebookCacheHits.Add(1) }

// GetMetrics returns a snapshot of all core counters plus answer-cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"rpc_requests":        metrics.RPCRequests.Load(),
		"rpc_errors":          metrics.RPCErrors.Load(),
		"stream_requests":     metrics.StreamRequests.Load(),
		"token_refreshes":     metrics.TokenRefreshes.Load(),
		"auth_failures":       metrics.AuthFailures.Load(),
		"notebooks_created":   metrics.NotebooksCreated.Load(),
		"sources_added":       metrics.SourcesAdded.Load(),
		"artifact_polls":      metrics.ArtifactPolls.Load(),
		"downloads":           metrics.Downloads.Load(),
		"notebook_cache_hits": metrics.NotebookCacheHits.Load(),
		"cache_hits":          hits,
		"cache_misses":        misses,
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"rpc_requests", "rpc_errors", "stream_requests",
		"token_refreshes", "auth_failures",
		"notebooks_created", "sources_added", "artifact_polls", "downloads",
		"notebook_cache_hits", "cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}
