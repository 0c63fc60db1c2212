package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(userMiddleware)

		r.Get("/paragraphs", s.handleListParagraphs)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
			r.Post("/{id}/attempts", s.handleSubmitAttempt)
			r.Post("/{id}/skip", s.handleSkipSentence)
			r.Get("/{id}/progress", s.handleSessionProgress)
			r.Get("/{id}/summary", s.handleSessionSummary)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.handleCreateRun)
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Post("/{id}/end", s.handleEndRun)
			r.Post("/{id}/next", s.handleNextUnit)
			r.Post("/{id}/skip", s.handleSkipUnit)
			r.Post("/{id}/units/{unitID}/complete", s.handleCompleteUnit)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", s.handleListReviews)
			r.Get("/due", s.handleDueReviews)
			r.Get("/due/count", s.handleDueReviewCount)
			r.Post("/{subjectID}", s.handleSubmitReview)
		})

		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/warmup", s.handleCacheWarmup)
		r.Post("/cache/prefetch", s.handleCachePrefetch)
		r.Get("/rate-limit", s.handleRateLimitUsage)
	})
	return r
}
