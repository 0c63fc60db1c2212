package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vytor/lingorun/internal/logger"
)

// handleHealth returns a liveness probe - always returns 200 OK.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady returns 200 when the database answers, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.checkDatabase(r.Context()); err != nil {
		logger.FromContext(r.Context()).Warn("readiness check failed - database: %v", err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) checkDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}
