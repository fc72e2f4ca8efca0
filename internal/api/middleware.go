package api

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"canvas-sync/internal/docstore"
	applog "canvas-sync/internal/logging"
)

type ownerKey struct{}

func logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return applog.Middleware(logger.Named("http"))
}

// ownerMiddleware rejects requests without a usable owner id.
func ownerMiddleware(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := strings.TrimSpace(r.Header.Get(header))
			if owner == "" {
				writeError(w, http.StatusUnauthorized, "missing "+header+" header")
				return
			}
			if err := docstore.ValidSegment(owner); err != nil {
				writeError(w, http.StatusBadRequest, "invalid owner id")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
		})
	}
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
