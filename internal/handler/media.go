package handler

import (
	"errors"
	"net/http"
	"strings"

	"habitchallenge/internal/httputil"
	"habitchallenge/internal/model"
	"habitchallenge/internal/service"
)

type MediaHandler struct {
	mediaService *service.MediaService
}

func NewMediaHandler(mediaService *service.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// UploadImage handles POST /uploads/image (multipart, field "image").
// The response image_url is what clients submit with a proof.
func (h *MediaHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.mediaService == nil {
		httputil.WriteServiceUnavailable(w, "이미지 업로드를 사용할 수 없습니다")
		return
	}

	maxFormSize := int64(model.MaxProofImageSizeBytes) + 1024*1024 // allow form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 10MB limit")
			return
		}
		httputil.WriteBadRequest(w, "Invalid form data")
		return
	}

	file, header, err := r.FormFile(model.ProofImageFormField)
	if err != nil {
		httputil.WriteBadRequest(w, "image file is required")
		return
	}
	defer file.Close()

	res, err := h.mediaService.UploadProofImage(r.Context(), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFileTooLarge):
			httputil.WriteBadRequestWithCode(w, model.CodeFileTooLarge, "Image exceeds 10MB limit")
		case errors.Is(err, model.ErrInvalidImageType):
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidImageType, "Unsupported image type. Allowed: jpeg, png, gif, webp")
		default:
			writeCommonError(w, "Upload image", err)
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, res)
}
