package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptyToken はトークンなしでログインしようとした場合のエラー。
var ErrEmptyToken = errors.New("auth token is empty")

// Session はStore上のログイン状態を扱う。
type Session struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New はSessionを生成する。
func New(store Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, logger: logger, now: time.Now}
}

// CheckAuth は認証フラグが"true"かつトークンがあり、期限切れでない場合にtrueを返す。
// ストアの読み出しに失敗した場合はログアウト扱いとする。
func (s *Session) CheckAuth(ctx context.Context) bool {
	flag, err := s.store.Get(ctx, KeyAuthenticated)
	if err != nil {
		s.logger.Warn("セッションの読み出しに失敗しました", slog.String("error", err.Error()))
		return false
	}
	if flag != "true" {
		return false
	}
	token := s.Token(ctx)
	if token == "" {
		return false
	}
	if expiredToken(token, s.now()) {
		s.logger.Info("トークンの有効期限が切れています")
		return false
	}
	return true
}

// Login はトークンとユーザーデータを保存し、認証フラグを立てる。
// userDataが空の場合は"{}"を保存する。
func (s *Session) Login(ctx context.Context, token string, userData json.RawMessage) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if len(userData) == 0 {
		userData = json.RawMessage("{}")
	}
	if !json.Valid(userData) {
		return fmt.Errorf("user data is not valid JSON")
	}

	if err := s.store.Set(ctx, KeyAuthToken, token); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	if err := s.store.Set(ctx, KeyUserData, string(userData)); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	if err := s.store.Set(ctx, KeyAuthenticated, "true"); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	return nil
}

// Logout は3つのキーをすべて削除する。
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyAuthenticated, KeyAuthToken, KeyUserData); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	s.logger.Info("ログアウトしました")
	return nil
}

// Token は保存されているトークンを返す。未保存または読み出し失敗時は空文字。
func (s *Session) Token(ctx context.Context) string {
	token, err := s.store.Get(ctx, KeyAuthToken)
	if err != nil {
		s.logger.Warn("トークンの読み出しに失敗しました", slog.String("error", err.Error()))
		return ""
	}
	return token
}

// UserData は保存されているユーザーデータを返す。未保存の場合はnil。
func (s *Session) UserData(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.store.Get(ctx, KeyUserData)
	if err != nil {
		return nil, fmt.Errorf("failed to read user data: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// TokenSource はリクエストごとにSessionからトークンを読むアダプタ。
type TokenSource struct {
	session *Session
	timeout time.Duration
}

// TokenSource はTokenSourceを返す。ストアの読み出しは2秒で打ち切る。
func (s *Session) TokenSource() *TokenSource {
	return &TokenSource{session: s, timeout: 2 * time.Second}
}

// Token は現在のトークンを返す。
func (t *TokenSource) Token() string {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	return t.session.Token(ctx)
}

// expiredToken はJWTのexpが過去ならtrueを返す。
// JWTとして解釈できないトークンやexpのないトークンは期限切れとみなさない。
// 署名検証はAPI側が行うためここでは検証しない。
func expiredToken(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}
