package mw

import (
	"log/slog"
	"net/http"

	"github.com/kestrel-sec/authgate/internal/httpx"
	"github.com/kestrel-sec/authgate/internal/identity"
	"github.com/kestrel-sec/authgate/internal/metrics"
	"github.com/kestrel-sec/authgate/internal/trace"
)

// Authenticate verifies the bearer token on every protected request and
// stashes the resulting identity in the context. Any verification failure is
// a 401; the introspection detail stays in the log.
func Authenticate(v *identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				metrics.IntrospectionFailures.Inc()
				slog.Info("auth_reject",
					"trace", trace.From(r.Context()),
					"path", r.URL.Path,
					"err", httpx.SafeErrMsg(err),
				)
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.NewContext(r.Context(), id)))
		})
	}
}
