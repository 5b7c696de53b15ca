package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/catalog-api/internal/services"
	"github.com/rs/zerolog/log"
)

// Responder writes the JSON envelopes shared by every handler.
type Responder struct {
	// ExposeErrors adds internal error details to 500 responses.
	ExposeErrors bool
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, map[string]interface{}{"success": true, "data": data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"success": true, "message": message})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"success": false, "message": message})
}

// respondValidation writes a 400 listing each problem in the input.
func respondValidation(w http.ResponseWriter, message string, verr *services.ValidationError) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"message": message,
		"errors":  verr.Problems,
	})
}

// Internal writes a generic 500, with err's detail when ExposeErrors is set.
func (rs Responder) Internal(w http.ResponseWriter, err error) {
	body := map[string]interface{}{"success": false, "message": "Internal Server Error"}
	if rs.ExposeErrors && err != nil {
		body["error"] = err.Error()
	}
	respondJSON(w, http.StatusInternalServerError, body)
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads at most maxBodyBytes of the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func asValidation(err error) (*services.ValidationError, bool) {
	var verr *services.ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}

// NotFound answers unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Route not found")
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
