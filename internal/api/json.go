package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/mural/internal/apperr"
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
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps an error to its HTTP status by taxonomy kind.
func statusOf(err error) int {
	switch apperr.Kind(err) {
	case "NotFound":
		return http.StatusNotFound
	case "AlreadyExists":
		return http.StatusConflict
	case "InvalidName":
		return http.StatusBadRequest
	case "MalformedData":
		return http.StatusUnprocessableEntity
	case "Timeout":
		return http.StatusGatewayTimeout
	case "VaultUnavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeResult writes the success/failure envelope for a user action.
func writeResult(w http.ResponseWriter, r *http.Request, err error, path, msg string) {
	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
		if status >= http.StatusInternalServerError {
			slog.Error("request failed",
				slog.String("route", r.URL.Path), slog.String("error", err.Error()))
		}
	}
	writeJSON(w, status, apperr.ResultOf(err, path, msg))
}

// writeValue writes v, or the failure envelope if err is set.
func writeValue(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		writeResult(w, r, err, "", "")
		return
	}
	writeJSON(w, status, v)
}
