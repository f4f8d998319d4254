package nlm

import (
	"regexp"
	"strings"
)

// The backend speaks "proto-JSON": deeply nested untyped arrays whose field
// meaning is positional. Everything we need out of a response (a source id, an
// image URL, answer prose) is mined by walking that tree with a predicate
// rather than by trusting fixed offsets.

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsUUID reports whether s looks like a lowercase/uppercase hex UUID.
func IsUUID(s string) bool {
	return uuidRe.MatchString(strings.ToLower(s))
}

// IsImageRef reports whether s is a hosted image URL or an inline data URI as
// produced by the artifact list.
func IsImageRef(s string) bool {
	return strings.Contains(s, "googleusercontent.com") || strings.HasPrefix(s, "data:image/")
}

// WalkOptions controls which subtrees and leaves are suppressed during a walk.
type WalkOptions struct {
	// SkipTimestampSpans skips arrays shaped like raw transcript spans:
	// [num, num, ...] or [null, num, num, ...]. Their children are never
	// visited — transcript text must not leak into mined prose.
	SkipTimestampSpans bool
	// SkipUUIDStrings drops leaf strings of exactly 36 characters. Citation
	// and source ids are UUIDs; prose never is.
	SkipUUIDStrings bool
}

// isTimestampSpan reports whether arr matches a transcript span shape.
func isTimestampSpan(arr []any) bool {
	if len(arr) >= 2 {
		if _, ok := arr[0].(float64); ok {
			if _, ok := arr[1].(float64); ok {
				return true
			}
		}
	}
	if len(arr) >= 3 && arr[0] == nil {
		if _, ok := arr[1].(float64); ok {
			if _, ok := arr[2].(float64); ok {
				return true
			}
		}
	}
	return false
}

// Walk visits every node of an untyped JSON value depth-first, calling visit
// on each. visit returning true stops the walk; Walk reports whether it was
// stopped. Suppressed subtrees/leaves are neither visited nor descended into.
func Walk(v any, opts WalkOptions, visit func(node any) bool) bool {
	switch n := v.(type) {
	case []any:
		if opts.SkipTimestampSpans && isTimestampSpan(n) {
			return false
		}
		if visit(n) {
			return true
		}
		for _, c := range n {
			if Walk(c, opts, visit) {
				return true
			}
		}
	case map[string]any:
		if visit(n) {
			return true
		}
		for _, c := range n {
			if Walk(c, opts, visit) {
				return true
			}
		}
	case string:
		if opts.SkipUUIDStrings && len(n) == 36 {
			return false
		}
		return visit(n)
	default:
		return visit(n)
	}
	return false
}

// FindString returns the first leaf string satisfying pred, depth-first.
func FindString(v any, pred func(string) bool) (string, bool) {
	var found string
	stopped := Walk(v, WalkOptions{}, func(node any) bool {
		s, ok := node.(string)
		if ok && pred(s) {
			found = s
			return true
		}
		return false
	})
	return found, stopped
}

// CollectStrings gathers every non-empty leaf string surviving the suppression
// rules, in document order.
func CollectStrings(v any, opts WalkOptions) []string {
	var out []string
	Walk(v, opts, func(node any) bool {
		if s, ok := node.(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				out = append(out, t)
			}
		}
		return false
	})
	return out
}
