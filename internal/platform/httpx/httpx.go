package httpx

import (
	"io"
	"net/http"
)

// IsThrottleStatus reports whether an HTTP status indicates the request was
// rejected for pacing reasons and may be retried as-is.
func IsThrottleStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// DrainAndClose discards the remainder of a response body and closes it so
// the underlying connection can be reused.
func DrainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
