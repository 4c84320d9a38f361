package common

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the wire shape for failed requests
type ErrorResponse struct {
	Error        string `json:"error"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
}

// SuccessResponse is the wire shape for mutations that return no data
type SuccessResponse struct {
	Success bool `json:"success"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondAuthRequired sends the guest-gate response carrying the
// machine-readable flag the client keys off of
func RespondAuthRequired(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusForbidden, ErrorResponse{
		Error:        message,
		RequiresAuth: true,
	})
}

// RespondSuccess sends a bare success acknowledgement
func RespondSuccess(w http.ResponseWriter) {
	RespondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ExtractRequestID extracts the request ID from the request
func ExtractRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	if id := r.Header.Get("X-Amzn-Trace-Id"); id != "" {
		return id
	}
	return ""
}

// ParseJSONBody parses JSON request body with size limit
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	return decoder.Decode(v)
}
