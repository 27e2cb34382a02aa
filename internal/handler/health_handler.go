package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthChecker は依存先（セッションDBなど）の疎通を確認する。
type HealthChecker func(ctx context.Context) error

type healthResponse struct {
	Status string `json:"status"`
	Views  int    `json:"views"`
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// checkがnilでなく失敗した場合は503を返す。
func NewHealthHandler(check HealthChecker, views func() int, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if views != nil {
			resp.Views = views()
		}
		if check != nil {
			if err := check(r.Context()); err != nil {
				logger.Warn("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
				resp.Status = "unavailable"
				writeJSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
