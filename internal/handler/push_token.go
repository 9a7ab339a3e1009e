package handler

import (
	"encoding/json"
	"net/http"

	"habitchallenge/internal/httputil"
	"habitchallenge/internal/model"
	"habitchallenge/internal/service"
)

type PushTokenHandler struct {
	pushTokenService *service.PushTokenService
}

func NewPushTokenHandler(pushTokenService *service.PushTokenService) *PushTokenHandler {
	return &PushTokenHandler{pushTokenService: pushTokenService}
}

// Register handles POST /push-tokens. Saving a known token again is a no-op.
func (h *PushTokenHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req model.RegisterPushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	token, err := h.pushTokenService.RegisterToken(r.Context(), req.Token)
	if err != nil {
		writeCommonError(w, "Register push token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, token)
}
