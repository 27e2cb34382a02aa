package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/musa/internal/asset"
	"github.com/hitoshi/musa/internal/middleware"
	"github.com/hitoshi/musa/internal/model"
)

// BlobGetter は画像ハンドルから画像を取り出す。
type BlobGetter interface {
	Get(handle string) (*asset.Blob, bool)
}

// BlobHandler は取得済み画像をハンドル経由で配信する。
type BlobHandler struct {
	blobs BlobGetter
}

// NewBlobHandler はBlobHandlerを生成する。
func NewBlobHandler(blobs BlobGetter) *BlobHandler {
	return &BlobHandler{blobs: blobs}
}

// Serve は画像を返す。ハンドルが解放済みなら404。
// GET /api/blobs/{handle}
func (h *BlobHandler) Serve(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	blob, ok := h.blobs.Get(handle)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewBlobNotFoundError(handle))
		return
	}

	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}
