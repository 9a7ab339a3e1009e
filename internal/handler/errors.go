package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"habitchallenge/internal/httputil"
	"habitchallenge/internal/model"
)

// writeCommonError handles the error kinds every endpoint shares. Anything it
// does not recognize is logged and reported as 500.
func writeCommonError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		httputil.WriteBadRequest(w, model.ValidationMessage(err))
	case errors.Is(err, model.ErrStorageUnavailable):
		log.Printf("[ERROR] %s: storage unavailable: %v", op, err)
		httputil.WriteServiceUnavailable(w, model.MsgStorageUnavailable)
	default:
		log.Printf("[ERROR] %s: %v", op, err)
		httputil.WriteInternalError(w, "서버 오류가 발생했습니다")
	}
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParams reads ?page and ?limit. Missing or malformed values become 0 and
// the service applies its defaults.
func pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}
