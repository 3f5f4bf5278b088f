package http

import (
	"net/http"

	"github.com/viralforge/identity-service/internal/application"
	"github.com/viralforge/identity-service/internal/domain"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeMalformed(w, r, "register", err)
		return
	}
	writeResult(w, h.service.Register(r.Context(), req))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.SignInRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeMalformed(w, r, "login", err)
		return
	}
	writeResult(w, h.service.SignIn(r.Context(), req))
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req application.RefreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeMalformed(w, r, "refresh_token", err)
		return
	}
	writeResult(w, h.service.RefreshSession(r.Context(), req))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req application.RevokeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeMalformed(w, r, "logout", err)
		return
	}
	writeResult(w, h.service.Revoke(r.Context(), req))
}

// writeMalformed answers an undecodable body the same way as an empty model.
func (h *Handler) writeMalformed(w http.ResponseWriter, r *http.Request, operation string, err error) {
	logHTTPOperationError(r.Context(), operation, http.StatusBadRequest, "VALIDATION_ERROR", application.MsgModelEmpty, err)
	writeResult(w, application.Result{
		OK:      false,
		Message: application.MsgModelEmpty,
		Kind:    domain.FailureValidation,
	})
}
