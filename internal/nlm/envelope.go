package nlm

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
)

// batchexecute wire format. One request carries a triple-nested array
// [[[rpcID, jsonEncodedArgs, null, "generic"]]] as the f.req form field plus
// the anti-CSRF token as the at field. Responses are line-oriented: garbage
// prefixes and length counters interleaved with JSON lines, of which the one
// we want starts with [[ and carries the "wrb.fr" marker.
const envelopeMarker = "wrb.fr"

// EncodeEnvelope builds the URL query parameters and form body for one RPC.
// Schema (v1, observed 2025-11): routing in the query string, payload and
// signing token in the form body. The args are JSON-encoded into a *string*
// inside the envelope — the double encoding is required by the protocol.
func EncodeEnvelope(rpcID string, args any, tok SessionTokens, lang string) (url.Values, url.Values, error) {
	inner, err := json.Marshal(args)
	if err != nil {
		return nil, nil, fmt.Errorf("encode rpc args: %w", err)
	}
	envelope, err := json.Marshal([][]any{{[]any{rpcID, string(inner), nil, "generic"}}})
	if err != nil {
		return nil, nil, fmt.Errorf("encode envelope: %w", err)
	}

	query := url.Values{
		"rpcids":      {rpcID},
		"source-path": {"/"},
		"bl":          {tok.BuildLabel},
		"f.sid":       {tok.SessionID},
		"hl":          {lang},
		"rt":          {"c"},
		"_reqid":      {strconv.Itoa(randomRequestID())},
	}
	form := url.Values{
		"f.req": {string(envelope)},
		"at":    {tok.CSRFToken},
	}
	return query, form, nil
}

// randomRequestID mimics the web client's per-request counter seed.
func randomRequestID() int {
	return 100000 + rand.IntN(100000)
}

// Envelope is one decoded wrb.fr response frame set.
type Envelope struct {
	frames []any
}

// DecodeEnvelope scans a raw batchexecute response for the first line that
// starts with [[, parses as JSON, and carries the wrb.fr marker. Returns nil
// when no line qualifies — callers in polling loops treat that as "no data
// yet", not as a hard error.
func DecodeEnvelope(raw string) *Envelope {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[[") {
			continue
		}
		var frames []any
		if err := json.Unmarshal([]byte(line), &frames); err != nil {
			continue
		}
		if len(frames) == 0 {
			continue
		}
		first, ok := frames[0].([]any)
		if !ok || len(first) == 0 || first[0] != envelopeMarker {
			continue
		}
		return &Envelope{frames: frames}
	}
	return nil
}

// first returns the leading wrb.fr frame.
func (e *Envelope) first() []any {
	if e == nil || len(e.frames) == 0 {
		return nil
	}
	frame, _ := e.frames[0].([]any)
	return frame
}

// RawPayload returns the JSON-string payload at frame index 2, or "" when the
// backend returned no data for this procedure.
func (e *Envelope) RawPayload() string {
	frame := e.first()
	if len(frame) < 3 {
		return ""
	}
	s, _ := frame[2].(string)
	return s
}

// Payload decodes the double-encoded result payload into an untyped tree.
func (e *Envelope) Payload() (any, error) {
	raw := e.RawPayload()
	if raw == "" {
		return nil, fmt.Errorf("%w: envelope has no payload", ErrMalformedResponse)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: inner payload: %v", ErrMalformedResponse, err)
	}
	return v, nil
}

// notebookIDFromCreate extracts the new notebook id from a decoded
// create-notebook payload. Schema (v1): id sits at index 2 of the top-level
// array; fall back to the first UUID anywhere in the tree if the offset moves.
func notebookIDFromCreate(payload any) (string, bool) {
	if arr, ok := payload.([]any); ok && len(arr) > 2 {
		if id, ok := arr[2].(string); ok && id != "" {
			return id, true
		}
	}
	return FindString(payload, IsUUID)
}
