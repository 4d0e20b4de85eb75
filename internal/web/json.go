package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/subwiki/internal/apperr"
	"github.com/starford/subwiki/internal/session"
)

// Error codes returned in errResponse.Code. The page script branches on
// them instead of on status codes.
const (
	CodeInvalid      = "invalid_request"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeSuperseded   = "superseded"
	CodeDirectory    = "directory_unavailable"
	CodeHistoryGone  = "history_target_missing"
	CodeStorage      = "storage_write_failed"
	CodeUnavailable  = "session_unavailable"
	CodeInternal     = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Error: msg, Code: code}
}

// sessionError is one row of the error-to-response table.
type sessionError struct {
	target error
	status int
	code   string
	msg    string
	logged bool
}

var sessionErrors = []sessionError{
	{apperr.ErrNotFound, http.StatusNotFound, CodeNotFound, "not found", false},
	{session.ErrSuperseded, http.StatusConflict, CodeSuperseded, "superseded by a newer navigation", false},
	{apperr.ErrDirectoryResolution, http.StatusUnprocessableEntity, CodeDirectory, "sub-wiki directory unavailable", false},
	{apperr.ErrHistoryTargetMissing, http.StatusGone, CodeHistoryGone, "history target missing", false},
	{apperr.ErrStorageWrite, http.StatusInternalServerError, CodeStorage, "storage write failed", true},
	{context.Canceled, http.StatusServiceUnavailable, CodeUnavailable, "session unavailable", false},
	{session.ErrStopped, http.StatusServiceUnavailable, CodeUnavailable, "session unavailable", false},
}

// writeError maps session errors onto HTTP statuses. Unknown errors are
// logged and reported as internal.
func writeError(w http.ResponseWriter, op string, err error) {
	for _, e := range sessionErrors {
		if errors.Is(err, e.target) {
			if e.logged {
				slog.Error(op+" failed", slog.String("error", err.Error()))
			}
			writeJSON(w, e.status, errorBody(e.code, e.msg))
			return
		}
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody(CodeInternal, "internal error"))
}
