package http

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler reports liveness. It deliberately checks nothing: a deploy
// that can serve this route is alive even while its dependencies flap.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Pinger is the dependency probe used by the readiness route.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleReady returns the readiness handler. It pings the ledger store so
// load balancers stop routing to an instance that lost its database.
func HandleReady(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, codeInternalError, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
