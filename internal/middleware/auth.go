package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type userIDKey struct{}

// WithUserID stores the requesting user id in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext extracts the requesting user id from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// UserIdentity reads the requesting user id from header and stores it in the
// request context. Requests without the header are rejected with 401.
// Authentication itself happens upstream; the header is trusted.
func UserIdentity(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(header))
			if id == "" || !validID(id) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"code":    401,
					"message": "unauthorized: missing or invalid " + header + " header",
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
		})
	}
}
