package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/idsync/pkg/contextkeys"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/sirupsen/logrus"
)

// StateObserver is fed the auth state of every request
type StateObserver interface {
	Observe(ctx context.Context, key string, state identity.AuthState)
}

// Middleware resolves the request's session into an AuthState, stores it in
// the context and reports it to the observer.
func Middleware(store Store, observer StateObserver, log *logrus.Logger) mux.MiddlewareFunc {
	if log == nil {
		log = logrus.New()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ReadCookie(r)
			if id == "" {
				next.ServeHTTP(w, r.WithContext(WithState(r.Context(), identity.Unauthenticated)))
				return
			}

			ctx := r.Context()
			state := identity.Unauthenticated

			sess, err := store.Get(ctx, id)
			switch {
			case err == nil:
				state = sess.State()
				ctx = contextkeys.WithSubjectID(ctx, sess.Claims.SubjectID)
			case errors.Is(err, ErrNotFound):
			default:
				log.WithError(err).Warn("failed to load session")
			}

			ctx = contextkeys.WithSessionID(ctx, id)
			ctx = WithState(ctx, state)

			if observer != nil {
				observer.Observe(ctx, id, state)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithState stores state in ctx
func WithState(ctx context.Context, state identity.AuthState) context.Context {
	return contextkeys.WithAuthState(ctx, state)
}

// StateFromContext returns the auth state resolved by Middleware
func StateFromContext(ctx context.Context) identity.AuthState {
	if state, ok := ctx.Value(contextkeys.AuthStateKey).(identity.AuthState); ok {
		return state
	}
	return identity.Unauthenticated
}
