package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"habitchallenge/internal/httputil"
	"habitchallenge/internal/model"
	"habitchallenge/internal/service"
	"habitchallenge/internal/transport/http/middleware"
)

const msgChallengeNotFound = "챌린지를 찾을 수 없습니다"

type ChallengeHandler struct {
	challengeService *service.ChallengeService
}

func NewChallengeHandler(challengeService *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

// List handles GET /challenges?page&limit&filter
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	challenges, err := h.challengeService.FindAllChallenges(r.Context(), page, limit, r.URL.Query().Get("filter"))
	if err != nil {
		writeCommonError(w, "List challenges", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, challenges)
}

// GetByID handles GET /challenges/{id}
func (h *ChallengeHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid challenge ID")
		return
	}

	challenge, err := h.challengeService.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "Get challenge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, challenge)
}

// Join handles POST /challenges/{id}/join
func (h *ChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "로그인이 필요합니다")
		return
	}

	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid challenge ID")
		return
	}

	participation, err := h.challengeService.Join(r.Context(), userID, id)
	if err != nil {
		h.writeError(w, "Join challenge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, participation)
}

// Create handles POST /admin/challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	challenge, err := h.challengeService.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, "Create challenge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, challenge)
}

// Update handles PATCH /admin/challenges/{id}
func (h *ChallengeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid challenge ID")
		return
	}

	var req model.UpdateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	challenge, err := h.challengeService.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, "Update challenge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, challenge)
}

// Delete handles DELETE /admin/challenges/{id}
func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid challenge ID")
		return
	}

	if err := h.challengeService.Delete(r.Context(), id); err != nil {
		h.writeError(w, "Delete challenge", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChallengeHandler) writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, model.ErrChallengeNotFound) {
		httputil.WriteNotFound(w, msgChallengeNotFound)
		return
	}
	writeCommonError(w, op, err)
}
