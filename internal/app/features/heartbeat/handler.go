// internal/app/features/heartbeat/handler.go
package heartbeat

import "net/http"

// Handler serves the liveness probe. No dependencies: a process that can
// answer at all is alive; /health is the one that checks the database.
type Handler struct{}

// NewHandler creates a new heartbeat handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Serve handles GET /heartbeat with a plain-text "ok".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
