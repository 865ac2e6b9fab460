package handler

import (
	"context"
	"net/http"
)

// Role of an authenticated actor, as asserted by the upstream gateway.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Actor is the already-authenticated identity attached to a request.
// Authentication itself happens upstream; this core only consumes the result.
type Actor struct {
	ID   string
	Role Role
}

type actorKey struct{}

// ActorFromContext extracts the request actor. ok is false when the request
// carried no identity headers.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// WithActor returns a middleware that reads the X-User-ID and X-User-Role
// headers set by the upstream gateway and stores them in the request context.
// Requests without identity pass through; individual handlers decide whether
// an actor is required.
func WithActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-User-ID")
		if id != "" {
			a := Actor{ID: id, Role: Role(r.Header.Get("X-User-Role"))}
			r = r.WithContext(context.WithValue(r.Context(), actorKey{}, a))
		}
		next.ServeHTTP(w, r)
	})
}

// requireActor fetches the actor or writes a 401 and returns ok=false.
func requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	a, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return Actor{}, false
	}
	return a, true
}

// requireRole fetches the actor and checks its role.
func requireRole(w http.ResponseWriter, r *http.Request, role Role) (Actor, bool) {
	a, ok := requireActor(w, r)
	if !ok {
		return Actor{}, false
	}
	if a.Role != role {
		writeError(w, http.StatusForbidden, "insufficient role")
		return Actor{}, false
	}
	return a, true
}
