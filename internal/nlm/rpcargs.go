package nlm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RPC argument trees, captured from the web client's network traffic.
// All of these are positional "proto-JSON": the backend can reorder or
// renumber fields without notice, so each shape is isolated here with a
// schema version note and built by exactly one function.

// createNotebookArgs — create-container defaults. Schema (v1, observed
// 2025-11): ["", null, null, [2], [1, null ×9, [1]]].
func createNotebookArgs() []any {
	return []any{"", nil, nil, []any{2},
		[]any{1, nil, nil, nil, nil, nil, nil, nil, nil, nil, []any{1}},
	}
}

// addSourceArgs — attach an external URL as a source. Schema (v1): the URL
// rides at index 7 of the source descriptor, wrapped in its own array; the
// trailing 1 marks "external content".
func addSourceArgs(notebookID, videoURL string) []any {
	return []any{
		[]any{[]any{nil, nil, nil, nil, nil, nil, nil, []any{videoURL}, nil, nil, 1}},
		notebookID,
		[]any{2},
		[]any{1, nil, nil, nil, nil, nil, nil, nil, nil, nil, []any{1}},
	}
}

// triggerInfographicArgs — request artifact generation. Schema (v1): the
// literal 7 at index 2 selects the infographic artifact kind; the source id
// is triple-wrapped at index 3.
func triggerInfographicArgs(notebookID, sourceID string) []any {
	return []any{
		[]any{2},
		notebookID,
		[]any{nil, nil, 7, []any{[]any{[]any{sourceID}}},
			nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
			[]any{[]any{nil, nil, nil, 1, 2}},
		},
	}
}

// listArtifactsArgs — list materialized artifacts, excluding suggested
// (not-yet-generated) ones. Schema (v1): the filter is a literal query string.
func listArtifactsArgs(notebookID string) []any {
	return []any{[]any{2}, notebookID, `NOT artifact.status = "ARTIFACT_STATUS_SUGGESTED"`}
}

// getProjectArgs — fetch notebook metadata including its source list.
// Schema (v1).
func getProjectArgs(notebookID string) []any {
	return []any{notebookID}
}

// deleteNotebookArgs — remove a notebook. Schema (v1).
func deleteNotebookArgs(notebookID string) []any {
	return []any{[]any{notebookID}, []any{2}}
}

// streamQueryRequest builds the f.req form value for the streamed free-form
// endpoint. Unlike batchexecute, the outer shape is [null, "<inner JSON>"]
// with the inner request serialized separately. Schema (v1): source id
// triple-wrapped at 0, prompt at 1, mode flags at 3, notebook id at 7.
func streamQueryRequest(sourceID, prompt, notebookID string) (string, error) {
	inner := []any{
		[]any{[]any{[]any{sourceID}}},
		prompt,
		nil,
		[]any{2, nil, []any{1}, []any{1}},
		nil, nil, nil,
		notebookID,
		1,
	}
	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return "", fmt.Errorf("encode stream request: %w", err)
	}
	fReq, err := json.Marshal([]any{nil, string(innerJSON)})
	if err != nil {
		return "", fmt.Errorf("encode stream request: %w", err)
	}
	return string(fReq), nil
}

// --- source mining ---

// mineSources extracts source entries from a decoded get-project payload
// without trusting fixed offsets. A source entry is recognized as an array
// subtree containing exactly one distinct UUID; title and original URL are
// picked up from sibling strings as the walk narrows in on each entry.
func mineSources(payload any) []Source {
	entries := make(map[string]Source)
	var order []string

	Walk(payload, WalkOptions{}, func(node any) bool {
		arr, ok := node.([]any)
		if !ok {
			return false
		}
		uuids := collectUUIDs(arr)
		if len(uuids) != 1 {
			return false
		}
		id := uuids[0]
		title, origURL := mineSourceMeta(arr, id)

		cur, seen := entries[id]
		if !seen {
			order = append(order, id)
			cur = Source{SourceID: id}
		}
		if cur.Title == "" && title != "" {
			cur.Title = title
		}
		if cur.OriginalURL == "" && origURL != "" {
			cur.OriginalURL = origURL
		}
		cur.Kind = classifySource(cur.OriginalURL)
		entries[id] = cur
		return false
	})

	out := make([]Source, 0, len(order))
	for _, id := range order {
		out = append(out, entries[id])
	}
	return out
}

// collectUUIDs returns the distinct UUID leaf strings in a subtree.
func collectUUIDs(v any) []string {
	seen := make(map[string]bool)
	var out []string
	Walk(v, WalkOptions{}, func(node any) bool {
		if s, ok := node.(string); ok && IsUUID(s) && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
		return false
	})
	return out
}

// mineSourceMeta picks a display title and original URL out of a source
// subtree: the first plausible prose string and the first http(s) string.
func mineSourceMeta(v any, sourceID string) (title, origURL string) {
	Walk(v, WalkOptions{}, func(node any) bool {
		s, ok := node.(string)
		if !ok || s == sourceID {
			return false
		}
		switch {
		case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
			if origURL == "" {
				origURL = s
			}
		case looksLikeTitle(s):
			if title == "" {
				title = s
			}
		}
		return title != "" && origURL != ""
	})
	return title, origURL
}

// looksLikeTitle filters out ids, enum tokens, and oversized blobs.
func looksLikeTitle(s string) bool {
	if s == "" || len(s) > 300 || IsUUID(s) {
		return false
	}
	// Enum-ish tokens (ARTIFACT_STATUS_…) are upper-snake.
	if strings.ToUpper(s) == s && strings.Contains(s, "_") {
		return false
	}
	return true
}

// classifySource labels a source by its origin URL.
func classifySource(origURL string) string {
	switch {
	case origURL == "":
		return "unknown"
	case strings.Contains(origURL, "youtube.com"), strings.Contains(origURL, "youtu.be"):
		return "youtube"
	default:
		return "web"
	}
}
