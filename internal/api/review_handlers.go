package api

import (
	"net/http"
	"time"

	"github.com/vytor/lingorun/internal/logger"
)

type reviewRequest struct {
	Quality *int `json:"quality"`
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	cards, err := s.Reviews.List(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cards)
}

func (s *Server) handleDueReviews(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	cards, err := s.Reviews.Due(r.Context(), userID, time.Now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cards)
}

func (s *Server) handleDueReviewCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	n, err := s.Reviews.DueCount(r.Context(), userID, time.Now())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"due": n})
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	subjectID, err := pathID(r, "subjectID")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	quality := -1
	if req.Quality != nil {
		quality = *req.Quality
	}

	log := logger.FromContext(r.Context()).WithFields(map[string]any{
		"subject_id": subjectID,
		"quality":    quality,
	})
	log.Debug("reviewing card")

	card, err := s.Reviews.Submit(r.Context(), userID, subjectID, quality)
	if err != nil {
		handleError(w, r, err)
		return
	}
	log.Info("review recorded, next due %s", card.NextDueAt.Format(time.RFC3339))
	writeJSON(w, r, http.StatusOK, card)
}
