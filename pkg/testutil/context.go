package testutil

import (
	"net/http"

	"onboard/pkg/requestcontext"
)

// WithClientMetadata attaches a client IP and User-Agent to the request context,
// as the ClientMetadata middleware would.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
