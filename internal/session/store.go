// Package session はログイン状態（認証フラグ・トークン・ユーザーデータ）を
// 文字列のキーと値として保持する。
package session

import (
	"context"
	"sync"
)

// セッションで使うキー。
const (
	KeyAuthenticated = "isAuthenticated"
	KeyAuthToken     = "authToken"
	KeyUserData      = "userData"
)

// Store は文字列のキーと値を保存する。存在しないキーのGetは空文字を返す。
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryStore はプロセス内のマップに保存するStore。
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get はキーの値を返す。
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// Set はキーに値を保存する。
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete はキーを削除する。
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
