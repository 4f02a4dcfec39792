package middleware

import (
	"net/http"
)

const (
	// DefaultMaxBodySize is 1MB for JSON endpoints.
	DefaultMaxBodySize int64 = 1 << 20

	// PhotoMaxBodySize is 10MB for photo uploads, which may carry the image
	// inline as a data URI.
	PhotoMaxBodySize int64 = 10 << 20
)

// RequestSize limits request bodies to maxBytes. Handlers see a read error
// past the limit and answer 413.
//
//	mux.Handle("POST /api/photo-sections", middleware.RequestSize(middleware.PhotoMaxBodySize)(h))
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
