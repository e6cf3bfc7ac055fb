package httppresentation

import (
	"context"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/minishop-settlement/internal/application"
	"github.com/Zhima-Mochi/minishop-settlement/internal/domain/identity"
)

const roleStaff = "staff"

type actorKey struct{}

// requireActor reads the identity forwarded by the authentication
// collaborator and rejects requests that carry none.
func requireActor(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := identity.Actor{
			UserID: strings.TrimSpace(r.Header.Get(headerUserID)),
			Staff:  strings.EqualFold(strings.TrimSpace(r.Header.Get(headerUserRole)), roleStaff),
		}
		if !actor.Authenticated() {
			writeDomainError(w, r, application.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) identity.Actor {
	actor, _ := ctx.Value(actorKey{}).(identity.Actor)
	return actor
}
