package middleware

import (
	"net/http"

	apperrors "staybook/pkg/errors"
)

// MaxRequestSize rejects declared oversize bodies up front and caps the
// reader for chunked ones.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				_ = apperrors.WriteError(w, apperrors.New(apperrors.CodeInvalidInput,
					"Request body too large", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
