package middleware

import (
	"fmt"
	"net/http"
)

// RequestSizeLimitMiddleware rejects bodies larger than maxRequestSize bytes.
//
// A declared Content-Length over the limit is refused up front; chunked bodies are cut off
// by http.MaxBytesReader and surface as a parse error in the handler.
func RequestSizeLimitMiddleware(maxRequestSize int64) func(http.Handler) http.Handler {
	tooLarge := []byte(fmt.Sprintf(`{"error":"request body too large","limit":%d}`, maxRequestSize))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				w.Write(tooLarge)
				return
			}

			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
