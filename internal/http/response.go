package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data"`
	Errors  []string `json:"errors"`
}

func respondJSON(w http.ResponseWriter, status int, message string, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Message: message, Data: data, Errors: []string{}})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

var statusByKind = map[domain.ErrorKind]int{
	domain.KindInvalidInput:       http.StatusBadRequest,
	domain.KindVerificationFailed: http.StatusBadRequest,
	domain.KindInsufficientStock:  http.StatusBadRequest,
	domain.KindUnauthorized:       http.StatusUnauthorized,
	domain.KindForbidden:          http.StatusForbidden,
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindConflict:           http.StatusConflict,
	domain.KindInvalidTransition:  http.StatusConflict,
}

// respondErr is the single place errors become responses. Anything that is
// not a *domain.Error is logged and masked as a 500.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeEnvelope(w, http.StatusInternalServerError, Envelope{Message: "internal server error", Errors: []string{}})
		return
	}

	status, ok := statusByKind[de.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	details := de.Details
	if details == nil {
		details = []string{}
	}
	writeEnvelope(w, status, Envelope{Message: de.Message, Errors: details})
}

// decodeJSON reads the request body into dst. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &tooLarge):
		return domain.InvalidInput("request body too large")
	default:
		return domain.InvalidInput("invalid JSON body")
	}
}

func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, domain.InvalidInput("invalid %s", name)
	}
	return id, nil
}

func parseID(value, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, domain.InvalidInput("invalid %s", name)
	}
	return id, nil
}
