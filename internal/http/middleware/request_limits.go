package middleware

import (
	"net/http"

	"github.com/tendant/simple-todo/internal/httputil"
)

// RequestSizeLimit caps the request body at maxBytes. A declared length over
// the limit is rejected up front; otherwise reads past the limit fail with
// *http.MaxBytesError, which httputil.DecodeJSON reports as 413.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, r, nil, httputil.ErrBodyTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}
