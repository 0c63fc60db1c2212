package api

import (
	"net/http"

	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/models"
)

type createRunRequest struct {
	Difficulty int    `json:"difficulty"`
	Language   string `json:"language"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	req := createRunRequest{Difficulty: models.MinDifficulty}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	run, err := s.Runs.CreateRun(r.Context(), userID, req.Difficulty, req.Language)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	runs, err := s.Runs.ListRuns(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) handleEndRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}
	ended, err := s.Runs.EndRun(r.Context(), run.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ended)
}

func (s *Server) handleNextUnit(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}
	unit, err := s.Runs.NextUnit(r.Context(), run.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, unit)
}

func (s *Server) handleSkipUnit(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}
	updated, err := s.Runs.SkipUnit(r.Context(), run.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) handleCompleteUnit(w http.ResponseWriter, r *http.Request) {
	run, ok := s.ownedRun(w, r)
	if !ok {
		return
	}
	unitID, err := pathID(r, "unitID")
	if err != nil {
		handleError(w, r, err)
		return
	}
	var req models.UnitCompletion
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if req.Accuracy < 0 || req.Accuracy > 100 {
		handleError(w, r, errors.NewValidationError("accuracy", "must be between 0 and 100"))
		return
	}

	updated, err := s.Runs.CompleteUnit(r.Context(), run.ID, unitID, req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) ownedRun(w http.ResponseWriter, r *http.Request) (*models.RandomRun, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	run, err := s.Runs.GetRun(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	if userID, _ := userFromContext(r.Context()); run.UserID != userID {
		handleError(w, r, errors.NewNotFoundError("run", id))
		return nil, false
	}
	return run, true
}
