package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Pinash124/bike-hub-sub000/pkg/logger"
)

// UserIDFunc resolves the id of the user a request acts for, or "" when the
// session is anonymous.
type UserIDFunc func(r *http.Request) string

// RequestLogger builds a request-scoped logger carrying correlation_id,
// user_id, trace_id and span_id and stores it in the request context.
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger, userID UserIDFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if userID != nil {
				if id := userID(r); id != "" {
					ctx = logger.WithUserID(ctx, id)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
