package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

var errEmptyBody = errors.New("request body is empty")

// Decode reads a single JSON object into dst. Unknown fields are rejected.
// When dst implements validation.Validatable it is validated after decoding.
// On failure Decode writes the error response itself and returns false.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytes):
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			Error(w, http.StatusBadRequest, errEmptyBody.Error())
		default:
			Error(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	if dec.More() {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if v, ok := dst.(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			var fields validation.Errors
			if errors.As(err, &fields) {
				JSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
				return false
			}
			Error(w, http.StatusBadRequest, err.Error())
			return false
		}
	}
	return true
}
