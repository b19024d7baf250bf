package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/askline-dev/askline/internal/docstore"
	"github.com/askline-dev/askline/shared/errors"
)

// Health is a liveness probe. 200 means the process is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready is a readiness probe. It round-trips the document store and
// reports 503 while the store is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	_, err := h.store.Get(ctx, docstore.DocPath("healthz", "probe"))
	if err != nil && !errors.IsNotFound(err) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
