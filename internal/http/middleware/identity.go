package middleware

import (
	"context"
	"net/http"

	"driverlink/internal/domain"
)

type actorKey struct{}

// Identity resolves the acting identity from the X-Actor-ID and
// X-Actor-Role headers set by the fronting auth layer. Requests without a
// valid pair pass through anonymous; handlers that need an actor reject
// them.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := domain.Actor{
				Role: domain.ActorRole(r.Header.Get("X-Actor-Role")),
				ID:   r.Header.Get("X-Actor-ID"),
			}
			if actor.Valid() {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithActor stores an actor in the context.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the acting identity from the context.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok && actor.Valid()
}
