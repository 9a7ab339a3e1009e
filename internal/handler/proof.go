package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"habitchallenge/internal/httputil"
	"habitchallenge/internal/model"
	"habitchallenge/internal/transport/http/middleware"
)

// ProofService is what ProofHandler needs; *service.ProofService implements it.
type ProofService interface {
	SubmitProof(ctx context.Context, userID int64, req model.CreateProofRequest) (*model.Proof, error)
	FindAllProofs(ctx context.Context, page, limit int) ([]model.Proof, error)
	FindProofByID(ctx context.Context, id int64) (*model.Proof, error)
}

type ProofHandler struct {
	proofService ProofService
}

func NewProofHandler(proofService ProofService) *ProofHandler {
	return &ProofHandler{proofService: proofService}
}

// Create handles POST /proofs
func (h *ProofHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "로그인이 필요합니다")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req model.CreateProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	proof, err := h.proofService.SubmitProof(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrParticipationNotFound):
			httputil.WriteNotFound(w, model.MsgParticipationNotFound)
		case errors.Is(err, model.ErrDailyLimitReached):
			httputil.WriteConflict(w, model.MsgDailyLimitReached)
		default:
			writeCommonError(w, "Submit proof", err)
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, proof)
}

// List handles GET /proofs?page&limit
func (h *ProofHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	proofs, err := h.proofService.FindAllProofs(r.Context(), page, limit)
	if err != nil {
		writeCommonError(w, "List proofs", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proofs)
}

// GetByID handles GET /proofs/{id}
func (h *ProofHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httputil.WriteBadRequest(w, "Invalid proof ID")
		return
	}

	proof, err := h.proofService.FindProofByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrProofNotFound) {
			httputil.WriteNotFound(w, "인증글을 찾을 수 없습니다")
			return
		}
		writeCommonError(w, "Get proof", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, proof)
}
