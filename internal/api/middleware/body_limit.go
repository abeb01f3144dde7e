package middleware

import "net/http"

// DefaultMaxBodyBytes bounds request bodies. The only bodies accepted are small
// JSON workload-action payloads.
const DefaultMaxBodyBytes = 64 * 1024

// MaxBodySize returns middleware that caps request bodies at max bytes.
// Reads past the cap fail and handlers answer 413.
func MaxBodySize(max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
