// Package shared holds helpers used across API handlers: context keys and
// JSON request/response plumbing.
package shared

import "context"

// ContextKey is the type for context values set by API middleware.
type ContextKey string

// UserIDContextKey is the context key for the authenticated user's id.
// Authentication itself happens upstream; the router middleware only
// extracts the identity it forwarded.
const UserIDContextKey ContextKey = "userID"

// UserID retrieves the authenticated user id from the context. The second
// return is false when no user is set.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDContextKey).(int64)
	return id, ok
}
