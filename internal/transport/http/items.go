package http

import (
	"context"
	"net/http"
)

// ItemMaintainer is the owner-facing item maintenance surface.
type ItemMaintainer interface {
	Archive(ctx context.Context, itemID, actorID string) error
	Restore(ctx context.Context, itemID, actorID string) error
}

// HandleArchiveItem returns the handler for POST /items/{id}/archive.
func HandleArchiveItem(svc ItemMaintainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorID(r)
		if actor == "" {
			writeError(w, http.StatusUnauthorized, codeMissingUser, "missing user")
			return
		}
		if err := svc.Archive(r.Context(), r.PathValue("id"), actor); err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"archived": true})
	}
}

// HandleRestoreItem returns the handler for POST /items/{id}/restore.
func HandleRestoreItem(svc ItemMaintainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorID(r)
		if actor == "" {
			writeError(w, http.StatusUnauthorized, codeMissingUser, "missing user")
			return
		}
		if err := svc.Restore(r.Context(), r.PathValue("id"), actor); err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"restored": true})
	}
}
