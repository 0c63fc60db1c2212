package api

import (
	"net/http"

	"github.com/vytor/lingorun/internal/adaptive"
	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/models"
)

type warmupRequest struct {
	Language string `json:"language"`
}

type prefetchRequest struct {
	CurrentDifficulty int     `json:"current_difficulty"`
	Language          string  `json:"language"`
	TentativeAccuracy float64 `json:"tentative_accuracy"`
	ErrorSummary      string  `json:"error_summary,omitempty"`
	VocabHint         string  `json:"vocab_hint,omitempty"`
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Content.Stats())
}

func (s *Server) handleCacheWarmup(w http.ResponseWriter, r *http.Request) {
	req := warmupRequest{Language: models.DefaultLanguage}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if !s.Content.ScheduleWarmup(req.Language) {
		handleError(w, r, errors.NewBusyError("prefetch queue is full, try again later"))
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "queued", "language": req.Language})
}

func (s *Server) handleCachePrefetch(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	var req prefetchRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if req.TentativeAccuracy < 0 || req.TentativeAccuracy > 100 {
		handleError(w, r, errors.NewValidationError("tentative_accuracy", "must be between 0 and 100"))
		return
	}

	predicted := s.Content.PrefetchTentative(r.Context(), userID, adaptive.Clamp(req.CurrentDifficulty),
		req.Language, req.TentativeAccuracy, req.ErrorSummary, req.VocabHint)
	writeJSON(w, r, http.StatusAccepted, map[string]int{"predicted_difficulty": predicted})
}

func (s *Server) handleRateLimitUsage(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	usage, err := s.Limiter.Usage(r.Context(), userID)
	if err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}
	writeJSON(w, r, http.StatusOK, usage)
}
