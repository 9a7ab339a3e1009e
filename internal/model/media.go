package model

import "errors"

const (
	MaxProofImageSizeBytes = 10 * 1024 * 1024 // 10MB
	ProofImageMaxDimension = 1080
	ProofImageQuality      = 85
	ProofImageFolder       = "proofs"
	ProofImageExt          = ".jpg"
	ProofImageCacheControl = "public, max-age=31536000" // 1 year
	ProofImageFormField    = "image"
)

// Supported image content types for upload validation
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
)

var allowedImageTypes = map[string]struct{}{
	ContentTypeJPEG: {},
	ContentTypePNG:  {},
	ContentTypeGIF:  {},
	ContentTypeWebP: {},
}

// Error codes for HTTP responses
const (
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidImageType = "INVALID_IMAGE_TYPE"
)

// Domain errors for media operations
var (
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidImageType = errors.New("invalid image type")
)

// UploadResult is returned by POST /uploads/image.
// ImageURL is what clients pass back as image_url when submitting a proof.
type UploadResult struct {
	ImageURL string `json:"image_url"`
	Key      string `json:"key"`
}

// IsAllowedImageType reports if the provided content type is supported
func IsAllowedImageType(contentType string) bool {
	_, ok := allowedImageTypes[contentType]
	return ok
}
