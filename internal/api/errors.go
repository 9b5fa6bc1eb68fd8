package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MikeSquared-Agency/beacon/internal/access"
	"github.com/MikeSquared-Agency/beacon/internal/narrative"
	"github.com/MikeSquared-Agency/beacon/internal/session"
	"github.com/MikeSquared-Agency/beacon/internal/store"
)

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error string `json:"error"`
}

// classify maps a pipeline error to its status and public kind. Details
// stay in the server log.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, narrative.ErrInvalidKey):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, access.ErrUnknownCode):
		return http.StatusNotFound, "unknown_code"
	case errors.Is(err, narrative.ErrNoPatterns):
		return http.StatusNotFound, "no_patterns"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrAlreadyCompleted):
		return http.StatusConflict, "already_completed"
	case errors.Is(err, access.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, narrative.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable, "generation_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, errorBody{Error: kind})
}
