// Package nlmserver exposes the NotebookLM automation core as MCP tools:
// video summarization, Q&A, infographic generation (sync and job-based),
// source listing, and notebook management.
package nlmserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hari20258/chrome-extension-notebooklm-yt/internal/nlm"
)

var (
	client   *nlm.Client
	jobStore *JobStore
)

// Init wires the shared client and job store for all tools. Call before
// RegisterTools.
func Init(c *nlm.Client, js *JobStore) {
	client = c
	jobStore = js
}

// RegisterTools registers all NotebookLM tools on the given MCP server.
func RegisterTools(server *mcp.Server) {
	registerVideoSummary(server)
	registerVideoAsk(server)
	registerInfographicGenerate(server)
	registerInfographicStatus(server)
	registerInfographicFetch(server)
	registerNotebookSources(server)
	registerNotebookDelete(server)
}
