package nlm

import (
	"encoding/json"
	"strings"
)

// The streamed generation endpoint does not return one envelope. It returns a
// feed of independently-parseable JSON arrays concatenated back-to-back (with
// chunk-length counters and other junk interleaved), each re-sending a more
// complete version of the answer. Mining strategy: find every parseable
// bracketed value, extract the wrb.fr payload text from each, and keep only
// the last successful extraction.

// xssiPrefix is the anti-hijacking guard some responses start with.
const xssiPrefix = ")]}'"

// ParseStream extracts the final answer text from a raw streamed response
// body. Returns "" when no chunk ever yielded text; callers treat that as a
// failed generation.
func ParseStream(raw []byte) string {
	text := string(raw)
	if strings.HasPrefix(text, xssiPrefix) {
		text = strings.TrimSpace(text[len(xssiPrefix):])
	}

	var final string
	pos := 0
	for pos < len(text) {
		next := strings.IndexByte(text[pos:], '[')
		if next < 0 {
			break
		}
		pos += next

		end, ok := scanBalanced(text, pos)
		if !ok {
			pos++
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(text[pos:end]), &v); err != nil {
			// False positive (chunk counter noise or a truncated frame);
			// skip this bracket and keep scanning.
			pos++
			continue
		}
		if extracted := extractAnswer(v); extracted != "" {
			// Last-write-wins: the stream re-sends refined answers, so the
			// most recent successfully mined chunk is the most complete one.
			final = extracted
		}
		pos = end
	}
	return strings.TrimSpace(final)
}

// scanBalanced finds the end (exclusive) of the bracketed JSON value starting
// at s[start] == '['. Bracket counting skips brackets inside quoted strings
// and honors escape sequences. Returns false if the value never closes.
func scanBalanced(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// extractAnswer walks one parsed top-level value, decodes every wrb.fr-marked
// payload inside it, and mines the answer prose. Later payloads within the
// same value replace earlier ones.
func extractAnswer(v any) string {
	var out string
	Walk(v, WalkOptions{}, func(node any) bool {
		arr, ok := node.([]any)
		if !ok || len(arr) < 3 {
			return false
		}
		marker, ok := arr[0].(string)
		if !ok || marker != envelopeMarker {
			return false
		}
		rawPayload, ok := arr[2].(string)
		if !ok || !strings.HasPrefix(strings.TrimSpace(rawPayload), "[") {
			return false
		}
		var payload any
		if json.Unmarshal([]byte(rawPayload), &payload) != nil {
			return false
		}
		// Schema (v1): a final answer payload is [answerBlock, citations,
		// metadata, ...]. Short payloads are intermediate thought frames —
		// mining them would leak exploratory reasoning into the answer.
		frame, ok := payload.([]any)
		if !ok || len(frame) <= 2 {
			return false
		}
		texts := CollectStrings(frame[0], WalkOptions{
			SkipTimestampSpans: true,
			SkipUUIDStrings:    true,
		})
		if len(texts) > 0 {
			out = strings.Join(texts, "\n")
		}
		return false
	})
	return out
}
