package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/musa/internal/middleware"
	"github.com/hitoshi/musa/internal/model"
	"github.com/hitoshi/musa/internal/view"
)

// ViewRegistry はビューハンドラーが必要とするインターフェース。
type ViewRegistry interface {
	Create(params view.Params) (*view.View, error)
	Get(id string) (*view.View, error)
	Destroy(id string) error
}

// ViewHandler はビューの生成・タブ切り替え・スクロール通知・表示状態取得のHTTPハンドラー。
type ViewHandler struct {
	registry ViewRegistry
	logger   *slog.Logger
}

// NewViewHandler はViewHandlerを生成する。
func NewViewHandler(registry ViewRegistry, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{registry: registry, logger: logger}
}

type scrollResponse struct {
	Triggered bool          `json:"triggered"`
	View      view.Snapshot `json:"view"`
}

// Create はビューを生成し、最初のタブ（posts）を読み込んで返す。
// POST /api/views
func (h *ViewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params view.Params
	if !decodeJSON(w, r, &params) {
		return
	}

	v, err := h.registry.Create(params)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	}

	if err := v.ActivateTab(model.KindPosts); err != nil {
		handleServiceError(w, h.logger, err, v.ID())
		return
	}
	writeJSON(w, http.StatusCreated, v.Snapshot())
}

// Delete はビューを破棄する。進行中の取得はキャンセルされ、画像ハンドルは解放される。
// DELETE /api/views/{id}
func (h *ViewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Destroy(id); err != nil {
		handleServiceError(w, h.logger, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Get はビュー全体の表示状態を返す。
// GET /api/views/{id}
func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// ActivateTab はタブを切り替え、必要なら最初のページを読み込む。
// POST /api/views/{id}/tabs/{kind}
func (h *ViewHandler) ActivateTab(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	if err := v.ActivateTab(kind); err != nil {
		handleServiceError(w, h.logger, err, string(kind))
		return
	}
	snap, err := v.Collection(kind)
	if err != nil {
		handleServiceError(w, h.logger, err, string(kind))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Scroll はスクロール位置を受け取り、末尾に近ければ次ページを読み込む。
// POST /api/views/{id}/scroll
func (h *ViewHandler) Scroll(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var pos view.ScrollPosition
	if !decodeJSON(w, r, &pos) {
		return
	}

	triggered := v.OnScroll(pos)
	writeJSON(w, http.StatusOK, scrollResponse{Triggered: triggered, View: v.Snapshot()})
}

// Collection はコレクション1つ分の表示状態を返す。
// GET /api/views/{id}/collections/{kind}
func (h *ViewHandler) Collection(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookup(w, r)
	if !ok {
		return
	}
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	snap, err := v.Collection(kind)
	if err != nil {
		handleServiceError(w, h.logger, err, string(kind))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *ViewHandler) lookup(w http.ResponseWriter, r *http.Request) (*view.View, bool) {
	id := chi.URLParam(r, "id")
	v, err := h.registry.Get(id)
	if err != nil {
		handleServiceError(w, h.logger, err, id)
		return nil, false
	}
	return v, true
}

func (h *ViewHandler) kind(w http.ResponseWriter, r *http.Request) (model.Kind, bool) {
	raw := chi.URLParam(r, "kind")
	kind, err := model.ParseKind(raw)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCollectionError(raw))
		return "", false
	}
	return kind, true
}
