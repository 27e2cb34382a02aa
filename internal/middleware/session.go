// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/musa/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// authenticatedContextKey はセッション確認済みであることを示すキー。
var authenticatedContextKey = contextKey("authenticated")

// AuthChecker はログイン状態の確認に必要なインターフェース。
// session.Sessionの部分集合として定義する。
type AuthChecker interface {
	CheckAuth(ctx context.Context) bool
}

// NewSessionMiddleware はセッションがログイン状態であることを確認するミドルウェアを返す。
// 未ログインのリクエストには401とLOGIN_REQUIREDを返す。
func NewSessionMiddleware(checker AuthChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.CheckAuth(r.Context()) {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginRequiredError())
				return
			}
			ctx := context.WithValue(r.Context(), authenticatedContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticatedFromContext はセッションミドルウェアを通過したリクエストかを返す。
func AuthenticatedFromContext(ctx context.Context) bool {
	ok, _ := ctx.Value(authenticatedContextKey).(bool)
	return ok
}
