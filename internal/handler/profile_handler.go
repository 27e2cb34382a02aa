package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/musa/internal/asset"
	"github.com/hitoshi/musa/internal/middleware"
	"github.com/hitoshi/musa/internal/model"
)

// ProfileService はプロフィールハンドラーが必要とするインターフェース。
type ProfileService interface {
	LoadOwn(ctx context.Context, owner string) (*model.SessionProfile, error)
	LoadPublic(ctx context.Context, owner, username string) (*model.SessionProfile, error)
	ToggleFollow(ctx context.Context, username string, following bool) (bool, error)
}

// BlobReleaser は所有者に紐づく画像ハンドルを解放する。
type BlobReleaser interface {
	ReleaseOwner(owner string) int
}

// ProfileHandler はプロフィール表示とフォロー切り替えのHTTPハンドラー。
// プロフィールの画像ハンドルは表示対象ごとの所有者で管理し、再読み込み時に前回分を解放する。
type ProfileHandler struct {
	service ProfileService
	blobs   BlobReleaser
	logger  *slog.Logger
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileService, blobs BlobReleaser, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, blobs: blobs, logger: logger}
}

// プロフィールの画像は最終参照から一定時間で回収ジョブが解放する。
const ownProfileOwner = asset.ProfileOwnerPrefix + "me"

func publicProfileOwner(username string) string {
	return asset.ProfileOwnerPrefix + "@" + strings.ToLower(username)
}

// Me はログイン中アカウントのプロフィールを全投稿付きで返す。
// GET /api/profile/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	h.release(ownProfileOwner)

	profile, err := h.service.LoadOwn(r.Context(), ownProfileOwner)
	if err != nil {
		handleServiceError(w, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Public は公開プロフィールを最初のページの投稿付きで返す。
// GET /api/profiles/{username}
func (h *ProfileHandler) Public(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	if username == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("ユーザー名が空です。"))
		return
	}

	owner := publicProfileOwner(username)
	h.release(owner)

	profile, err := h.service.LoadPublic(r.Context(), owner, username)
	if err != nil {
		handleServiceError(w, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type followRequest struct {
	Following *bool `json:"following"`
}

type followResponse struct {
	Username  string `json:"username"`
	Following bool   `json:"following"`
}

// Follow はフォロー状態を指定の値にする。
// PUT /api/profiles/{username}/follow
func (h *ProfileHandler) Follow(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))

	var req followRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if username == "" || req.Following == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("ユーザー名とfollowingを指定してください。"))
		return
	}

	// ToggleFollowは現在の状態を受け取って反転させる
	following, err := h.service.ToggleFollow(r.Context(), username, !*req.Following)
	if err != nil {
		handleServiceError(w, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, followResponse{Username: username, Following: following})
}

func (h *ProfileHandler) release(owner string) {
	if h.blobs != nil {
		h.blobs.ReleaseOwner(owner)
	}
}
