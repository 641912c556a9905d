// Package respond writes JSON bodies and maps apperr kinds to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Freeeeeet/mentorship_api/internal/apperr"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message"`
}

// JSON пишет v с заданным статусом
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated, apperr.KindInvalidCredential:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicatePending, apperr.KindInvalidTransition, apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as {"error", "message"}. Internal errors are logged with
// their cause; the client only sees the generic message.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	body := errorBody{Error: apperr.KindInternal, Message: "internal server error"}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		body.Error = appErr.Kind
		body.Message = appErr.Message
	} else {
		logger.Error("Request failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	JSON(w, StatusOf(body.Error), body)
}
