// Package api exposes the core's operations over HTTP: post CRUD, search,
// task launch and status, and notification polling.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pdenham/microblog/internal/api/shared"
)

// userIDHeader carries the authenticated user's id, set by the upstream
// gateway that owns authentication and session handling.
const userIDHeader = "X-User-ID"

// RequireUser rejects requests without a forwarded user identity and puts
// the user id on the request context for handlers.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(userIDHeader)
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Missing or invalid user identity")
			return
		}
		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
