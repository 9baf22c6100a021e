package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/odysseus/internal/hunt"
)

type ctxKey int

const (
	ctxKeySession ctxKey = iota
)

// sessionMiddleware resolves the participant's live session.
func sessionMiddleware(att *attempts) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := att.session(chi.URLParam(r, "participant"))
			if err != nil {
				writeErr(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFrom(r *http.Request) *hunt.Session {
	return r.Context().Value(ctxKeySession).(*hunt.Session)
}

func participantFrom(r *http.Request) string {
	return chi.URLParam(r, "participant")
}
