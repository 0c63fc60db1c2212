package api

import (
	"context"
	"net/http"

	"github.com/vytor/lingorun/internal/db"
	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/paragraphcache"
	"github.com/vytor/lingorun/internal/ratelimit"
	"github.com/vytor/lingorun/internal/repository"
	"github.com/vytor/lingorun/internal/services"
)

type Server struct {
	DB         *db.DB
	Paragraphs repository.ParagraphRepository
	Sessions   services.SessionService
	Runs       services.RunService
	Reviews    services.ReviewService
	Content    *paragraphcache.Pipeline
	Limiter    *ratelimit.Limiter
}

type createSessionRequest struct {
	ParagraphID int64 `json:"paragraph_id"`
}

// sentenceResponse extends a submit or skip result with what happened to the
// surrounding run.
type sentenceResponse struct {
	*services.SentenceResult
	Run                 *models.RandomRun `json:"run,omitempty"`
	PredictedDifficulty *int              `json:"predicted_difficulty,omitempty"`
}

func (s *Server) handleListParagraphs(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("difficulty")
	if bucket != "" && !models.ValidBucket(bucket) {
		handleError(w, r, errors.NewValidationError("difficulty", "must be easy, medium or hard"))
		return
	}
	paragraphs, err := s.Paragraphs.ListSeed(r.Context(), bucket)
	if err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}
	writeJSON(w, r, http.StatusOK, paragraphs)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if req.ParagraphID <= 0 {
		handleError(w, r, errors.NewValidationError("paragraph_id", "required"))
		return
	}

	session, err := s.Sessions.CreateSession(r.Context(), userID, req.ParagraphID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := userFromContext(r.Context())
	sessions, err := s.Sessions.ListSessions(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}

func (s *Server) handleSubmitAttempt(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	var req services.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	req.SessionID = session.ID

	res, err := s.Sessions.Submit(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.afterSentence(r.Context(), res))
}

func (s *Server) handleSkipSentence(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	res, err := s.Sessions.Skip(r.Context(), session.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.afterSentence(r.Context(), res))
}

func (s *Server) handleSessionProgress(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	progress, err := s.Sessions.Progress(r.Context(), session.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	session, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	summary, err := s.Sessions.Summary(r.Context(), session.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// afterSentence rolls a completed session into its run, or prefetches for
// the run's predicted next level while the session is still going. Both are
// best effort; the sentence result has already been committed.
func (s *Server) afterSentence(ctx context.Context, res *services.SentenceResult) sentenceResponse {
	log := logger.FromContext(ctx)
	out := sentenceResponse{SentenceResult: res}

	if res.Completed {
		run, err := s.Runs.OnSessionCompleted(ctx, res.Session.ID)
		if err != nil {
			log.Warn("failed to roll session %d into its run: %v", res.Session.ID, err)
			return out
		}
		out.Run = run
		return out
	}

	if predicted, ok := s.Runs.PrefetchForSession(ctx, res.Session.ID); ok {
		out.PredictedDifficulty = &predicted
	}
	return out
}

// ownedSession loads the session named in the path. Sessions of other users
// are reported as not found.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) (*models.PracticeSession, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	session, err := s.Sessions.GetSession(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	if userID, _ := userFromContext(r.Context()); session.UserID != userID {
		handleError(w, r, errors.NewNotFoundError("session", id))
		return nil, false
	}
	return session, true
}
