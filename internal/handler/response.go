// Package handler はビューサーバーのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/musa/internal/aggregator"
	"github.com/hitoshi/musa/internal/middleware"
	"github.com/hitoshi/musa/internal/model"
	"github.com/hitoshi/musa/internal/view"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return false
	}
	return true
}

// handleServiceError はエラーを統一フォーマットのHTTPレスポンスに変換する。
// subjectはビューIDやコレクション名など、エラーメッセージに含める対象。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error, subject string) {
	var fetchErr *model.FetchError
	switch {
	case errors.Is(err, aggregator.ErrLoginRequired):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
	case errors.Is(err, view.ErrViewNotFound), errors.Is(err, view.ErrDestroyed):
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewViewNotFoundError(subject))
	case errors.Is(err, view.ErrCollectionNotFound):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCollectionError(subject))
	case errors.As(err, &fetchErr):
		logger.Warn("コンテンツAPIの呼び出しに失敗しました",
			slog.String("op", fetchErr.Op),
			slog.String("kind", string(fetchErr.Kind)),
			slog.Int("status", fetchErr.StatusCode),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError(string(fetchErr.Kind)))
	default:
		logger.Error("リクエストの処理に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
