package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/musa/internal/middleware"
	"github.com/hitoshi/musa/internal/model"
	"github.com/hitoshi/musa/internal/session"
)

// SessionService はセッションハンドラーが必要とするインターフェース。
type SessionService interface {
	Login(ctx context.Context, token string, userData json.RawMessage) error
	Logout(ctx context.Context) error
	CheckAuth(ctx context.Context) bool
}

// SessionHandler はログイン・ログアウトのHTTPハンドラー。
type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

type loginRequest struct {
	Token    string          `json:"token"`
	UserData json.RawMessage `json:"user_data"`
}

type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// Login はトークンとユーザーデータを保存する。
// POST /api/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Login(r.Context(), req.Token, req.UserData); err != nil {
		if errors.Is(err, session.ErrEmptyToken) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("トークンが空です。"))
			return
		}
		handleServiceError(w, h.logger, err, "")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{Authenticated: h.service.CheckAuth(r.Context())})
}

// Logout はセッションを破棄する。
// DELETE /api/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		handleServiceError(w, h.logger, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status は現在のログイン状態を返す。
// GET /api/session
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: h.service.CheckAuth(r.Context())})
}
