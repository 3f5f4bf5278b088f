package http

import (
	"encoding/json"
	"net/http"

	"github.com/viralforge/identity-service/internal/application"
	"github.com/viralforge/identity-service/internal/domain"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func writeResult(w http.ResponseWriter, res application.Result) {
	writeJSON(w, statusForResult(res), res)
}

func statusForResult(res application.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Kind {
	case domain.FailureValidation:
		return http.StatusBadRequest
	case domain.FailureConflict:
		return http.StatusConflict
	case domain.FailureNotFound:
		return http.StatusNotFound
	case domain.FailureAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
