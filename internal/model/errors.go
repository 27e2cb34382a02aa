// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
	// Retryable は同じ操作をやり直せば成功しうるかを示す。
	// 取得は自動で再試行しないため、クライアントはこれを見て再試行ボタンを出す。
	Retryable bool
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLoginRequired     = "LOGIN_REQUIRED"
	ErrCodeViewNotFound      = "VIEW_NOT_FOUND"
	ErrCodeInvalidCollection = "INVALID_COLLECTION"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeUpstreamFailed    = "UPSTREAM_FAILED"
	ErrCodeBlobNotFound      = "BLOB_NOT_FOUND"
)

// NewLoginRequiredError は再ログインが必要な場合のエラーを生成する。
func NewLoginRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRequired,
		Message:  "セッションが無効です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewViewNotFoundError はビューが見つからない場合のエラーを生成する。
func NewViewNotFoundError(viewID string) *APIError {
	return &APIError{
		Code:     ErrCodeViewNotFound,
		Message:  fmt.Sprintf("指定されたビューが見つかりません: %s", viewID),
		Category: "validation",
		Action:   "画面を開き直してください。",
	}
}

// NewInvalidCollectionError は未知のコレクション種別が指定された場合のエラーを生成する。
func NewInvalidCollectionError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCollection,
		Message:  fmt.Sprintf("無効なコレクションです: %s", kind),
		Category: "validation",
		Action:   "コレクションには posts、products、events のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUpstreamFailedError はコンテンツAPIの呼び出しに失敗した場合のエラーを生成する。
func NewUpstreamFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("コンテンツの取得に失敗しました: %s", reason),
		Category:  "upstream",
		Action:    "しばらく待ってから再度お試しください。",
		Retryable: true,
	}
}

// NewBlobNotFoundError は画像ハンドルが見つからない場合のエラーを生成する。
func NewBlobNotFoundError(handle string) *APIError {
	return &APIError{
		Code:     ErrCodeBlobNotFound,
		Message:  fmt.Sprintf("画像が見つかりません: %s", handle),
		Category: "validation",
		Action:   "画面を再読み込みしてください。",
	}
}

// ErrorKind はコンテンツAPI呼び出し失敗の分類。
type ErrorKind string

const (
	// ErrorKindTransport は通信失敗または2xx以外のステータス。
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindShape は既知の形に当てはまらないレスポンス。
	ErrorKindShape ErrorKind = "shape"
	// ErrorKindAsset は保護された画像の取得失敗。
	ErrorKindAsset ErrorKind = "asset"
	// ErrorKindAuth は401/403。
	ErrorKindAuth ErrorKind = "auth"
)

// FetchError は1回のフェッチ結果としての失敗を表す。
// 表示方針はErrorKindを見て呼び出し元が決める。
type FetchError struct {
	Kind       ErrorKind
	Op         string // 例: "GET /profile/me"
	StatusCode int    // 通信失敗時は0
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap は元のエラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf はエラーチェーンからErrorKindを取り出す。
// FetchErrorを含まないエラーはtransportとして扱う。
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ErrorKindTransport
}

// IsAuthError は401/403由来のエラーかどうかを返す。
func IsAuthError(err error) bool {
	return err != nil && KindOf(err) == ErrorKindAuth
}
