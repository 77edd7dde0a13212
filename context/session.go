package context

import (
	"context"

	"github.com/smartsoil/smartsoil/internal/state"
)

type contextkey string

const (
	sessionKey contextkey = "session"
)

// ContextSetSession binds the visitor's state to ctx.
func ContextSetSession(ctx context.Context, s *state.AppState) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// ContextGetSession retrieves the visitor's state from request context.
// Returns nil if the session middleware did not run.
func ContextGetSession(ctx context.Context) *state.AppState {
	val := ctx.Value(sessionKey)
	s, ok := val.(*state.AppState)
	if !ok {
		return nil
	}
	return s
}
