package handler

import (
	"errors"
	"net/http"

	"habitchallenge/internal/httputil"
	"habitchallenge/internal/model"
	"habitchallenge/internal/service"
	"habitchallenge/internal/transport/http/middleware"
)

// MyHandler serves the /my endpoints for the authenticated user.
type MyHandler struct {
	userService      *service.UserService
	challengeService *service.ChallengeService
	proofService     *service.ProofService
}

func NewMyHandler(userService *service.UserService, challengeService *service.ChallengeService, proofService *service.ProofService) *MyHandler {
	return &MyHandler{
		userService:      userService,
		challengeService: challengeService,
		proofService:     proofService,
	}
}

// Profile handles GET /my/profile
func (h *MyHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "로그인이 필요합니다")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			httputil.WriteNotFound(w, "사용자를 찾을 수 없습니다")
			return
		}
		writeCommonError(w, "My profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

// Challenges handles GET /my/challenges
func (h *MyHandler) Challenges(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "로그인이 필요합니다")
		return
	}

	participations, err := h.challengeService.MyChallenges(r.Context(), userID)
	if err != nil {
		writeCommonError(w, "My challenges", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participations)
}

// Proofs handles GET /my/proofs
func (h *MyHandler) Proofs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "로그인이 필요합니다")
		return
	}

	proofs, err := h.proofService.FindMyProofs(r.Context(), userID)
	if err != nil {
		writeCommonError(w, "My proofs", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proofs)
}
