package nlm

import "errors"

// Error taxonomy for the NotebookLM backend protocol. The backend is
// reverse-engineered, so callers need to distinguish "session died" from
// "backend rejected this input" from "response drifted out from under us".
var (
	// ErrAuthenticationRequired means the session cookies/tokens are invalid
	// or expired. Recoverable only by an out-of-band re-login; never retried
	// automatically here.
	ErrAuthenticationRequired = errors.New("authentication required: please re-login to NotebookLM")

	// ErrTokensNotFound means the root page loaded but the embedded session
	// tokens could not be scraped. Usually transient (page still hydrating).
	ErrTokensNotFound = errors.New("session tokens not found in page")

	// ErrCreationFailed means the create-notebook RPC returned no notebook id.
	ErrCreationFailed = errors.New("notebook creation failed")

	// ErrSourceRejected means the backend accepted the RPC but produced no
	// source id — typically the video has no extractable transcript. Not
	// retryable with the same URL; the user should try different content.
	ErrSourceRejected = errors.New("source rejected: no transcript or content available for this video")

	// ErrGenerationTimeout means the artifact poll budget was exhausted.
	ErrGenerationTimeout = errors.New("timed out waiting for artifact generation")

	// ErrMalformedResponse means no recognizable RPC envelope was found where
	// one was required.
	ErrMalformedResponse = errors.New("malformed RPC response")
)
