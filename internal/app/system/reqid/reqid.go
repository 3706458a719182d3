// Package reqid assigns every request an ID and carries it in the context
// so log lines and error envelopes can be correlated.
package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the request/response header that carries the ID.
const Header = "X-Request-Id"

type ctxKey struct{}

// Middleware reuses an incoming X-Request-Id or mints a new one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(With(r.Context(), id)))
	})
}

// With returns ctx carrying id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the request ID in ctx, or "".
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
