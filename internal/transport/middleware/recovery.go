package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/transport"
	"github.com/frahmantamala/securemind/pkg/logger"
)

// RecoveryMiddleware turns a panic into a 500 with the usual error body and
// logs it with the stack.
func RecoveryMiddleware(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.From(r.Context()).ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"method", r.Method,
					"url", r.URL.String(),
					"stack", string(debug.Stack()))

				base.WriteAppError(w, r, internal.NewInternalError("Internal server error", nil))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
