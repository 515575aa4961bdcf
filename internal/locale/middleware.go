package locale

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// URLParam is the chi route parameter carrying the locale segment.
const URLParam = "locale"

type contextKey int

const codeKey contextKey = iota

// WithCode returns a context carrying the resolved locale.
func WithCode(ctx context.Context, c Code) context.Context {
	return context.WithValue(ctx, codeKey, c)
}

// FromContext returns the locale stored by Middleware, or Default.
func FromContext(ctx context.Context) Code {
	if c, ok := ctx.Value(codeKey).(Code); ok {
		return c
	}
	return Default
}

// Middleware rejects requests whose {locale} segment is not supported before
// any handler runs. notFound renders the rejection; nil means http.NotFound.
func Middleware(notFound http.Handler) func(http.Handler) http.Handler {
	if notFound == nil {
		notFound = http.HandlerFunc(http.NotFound)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidate := chi.URLParam(r, URLParam)
			if !IsValid(candidate) {
				notFound.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCode(r.Context(), Code(candidate))))
		})
	}
}
