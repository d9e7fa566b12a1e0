package http

import (
	"net/http"

	"github.com/learninpublic/scheduler/pkg/httpx"
)

// envelope is the uniform response body for every API endpoint.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	Data       any    `json:"data,omitempty"`
	Success    bool   `json:"success"`
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	httpx.WriteJSON(w, status, envelope{
		StatusCode: status,
		Message:    message,
		Data:       data,
		Success:    true,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	httpx.WriteJSON(w, status, envelope{
		StatusCode: status,
		Message:    message,
		Success:    false,
	})
}

// writeAuthError carries a machine-readable code so clients can tell an
// expired token apart from a missing or forged one.
func writeAuthError(w http.ResponseWriter, code, message string) {
	httpx.WriteJSON(w, http.StatusUnauthorized, envelope{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Code:       code,
		Success:    false,
	})
}
