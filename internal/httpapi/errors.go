package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string           `json:"message"`
	Reason  domain.ErrorKind `json:"reason,omitempty"`
	Path    []domain.TaskID  `json:"path,omitempty"`
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidEdge, domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindCircularDependency, domain.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError writes err as {message, reason}. Errors outside the domain
// taxonomy are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		logging.Error("HTTP", err, "%s %s failed", r.Method, r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal server error"})
		return
	}
	status := statusFor(de.Kind)
	if status == http.StatusInternalServerError {
		logging.Error("HTTP", err, "%s %s failed", r.Method, r.URL.Path)
	}
	writeJSON(w, status, errorBody{Message: de.Message, Reason: de.Kind, Path: de.Path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("HTTP", "encoding response: %v", err)
	}
}

// decodeJSON reads a JSON body into v. An unreadable body is an
// InvalidInput error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("invalid JSON body: " + err.Error())
	}
	return nil
}
