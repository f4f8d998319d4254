package nlm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// DownloadResource fetches a session-bound binary resource (generated
// infographic image). Always goes through the authenticated transport: a bare
// unauthenticated fetch of these URLs returns an HTML login page with a 200
// status, so the downloaded bytes are sniffed instead of trusting the status
// code alone. Data URIs are decoded locally without a network round trip.
func DownloadResource(ctx context.Context, t Transport, rawURL string) ([]byte, string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURI(rawURL)
	}

	incrDownloads()
	slog.Info("downloading resource", slog.String("url", truncate(rawURL, 80)))

	data, err := RetryDo(ctx, DefaultRetryConfig, func() ([]byte, error) {
		b, status, err := t.Download(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, &StatusError{StatusCode: status}
		}
		return b, nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("download resource: %w", err)
	}

	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "text/html") {
		// 200 + HTML means the backend bounced us to a login page.
		incrAuthFailures()
		return nil, "", fmt.Errorf("%w: resource URL served an HTML page", ErrAuthenticationRequired)
	}
	return data, mime, nil
}

// decodeDataURI splits and decodes an inline data:…;base64,… reference.
func decodeDataURI(uri string) ([]byte, string, error) {
	header, payload, found := strings.Cut(uri, ",")
	if !found {
		return nil, "", fmt.Errorf("malformed data URI")
	}
	mime := strings.TrimPrefix(header, "data:")
	mime = strings.TrimSuffix(mime, ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI: %w", err)
	}
	return data, mime, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
