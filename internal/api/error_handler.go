package api

import (
	"net/http"

	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/logger"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(code, message string) map[string]errorPayload {
	return map[string]errorPayload{"error": {Code: code, Message: message}}
}

// handleError centralizes error handling for HTTP responses
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr, ok := errors.As(err)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = errors.NewInternalError(err)
	}

	if appErr.Status >= 500 {
		log.Error("server error: %v", appErr)
	} else if appErr.Status >= 400 {
		log.Warn("client error: %v", appErr)
	} else {
		log.Debug("error: %v", appErr)
	}

	writeJSON(w, r, appErr.Status, errorBody(appErr.Code, appErr.Message))
}
