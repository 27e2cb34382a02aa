package asset

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// blobPrefix はローカルハンドルの接頭辞。
const blobPrefix = "blob:"

// ProfileOwnerPrefix はプロフィール表示が保持する画像の所有者名の接頭辞。
// ビューと違い破棄の契機がないため、一定時間参照されなければ回収する。
const ProfileOwnerPrefix = "profile:"

// Blob は取得済み画像のバイト列。
type Blob struct {
	Data      []byte
	MimeType  string
	Owner     string // 解放単位（ビューIDまたはprofile:…）
	CreatedAt time.Time

	lastUsed atomic.Int64 // UnixNano
}

// LastUsed は最後に保存または参照された時刻を返す。
func (b *Blob) LastUsed() time.Time { return time.Unix(0, b.lastUsed.Load()) }

// BlobStore は取得済み画像をハンドルで参照できるように保持する。
// ハンドルは所有者（ビュー）ごとにまとめて解放する。
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*Blob
}

// NewBlobStore はBlobStoreを生成する。
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]*Blob)}
}

// Put は画像を保存し、blob:<uuid> 形式のハンドルを返す。
func (s *BlobStore) Put(owner string, data []byte, mimeType string) string {
	handle := blobPrefix + uuid.NewString()

	b := &Blob{
		Data:      data,
		MimeType:  mimeType,
		Owner:     owner,
		CreatedAt: time.Now(),
	}
	b.lastUsed.Store(b.CreatedAt.UnixNano())

	s.mu.Lock()
	s.blobs[handle] = b
	s.mu.Unlock()

	return handle
}

// Get はハンドルに対応する画像を返し、最終参照時刻を更新する。
func (s *BlobStore) Get(handle string) (*Blob, bool) {
	if !strings.HasPrefix(handle, blobPrefix) {
		handle = blobPrefix + handle
	}

	s.mu.RLock()
	b, ok := s.blobs[handle]
	s.mu.RUnlock()
	if ok {
		b.lastUsed.Store(time.Now().UnixNano())
	}
	return b, ok
}

// Release はハンドル1件を解放する。
func (s *BlobStore) Release(handle string) {
	s.mu.Lock()
	delete(s.blobs, handle)
	s.mu.Unlock()
}

// ReleaseOwner は所有者に紐づくハンドルをすべて解放し、解放件数を返す。
func (s *BlobStore) ReleaseOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for handle, b := range s.blobs {
		if b.Owner == owner {
			delete(s.blobs, handle)
			released++
		}
	}
	return released
}

// ReleaseIdleOwners は所有者名がprefixで始まり、所有する画像がすべて
// cutoffより前から参照されていない所有者のハンドルを解放し、解放件数を返す。
// 1件でも最近参照された画像があれば、その所有者の画像はすべて残す。
func (s *BlobStore) ReleaseIdleOwners(prefix string, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]bool)
	for _, b := range s.blobs {
		if strings.HasPrefix(b.Owner, prefix) && !b.LastUsed().Before(cutoff) {
			active[b.Owner] = true
		}
	}

	released := 0
	for handle, b := range s.blobs {
		if strings.HasPrefix(b.Owner, prefix) && !active[b.Owner] {
			delete(s.blobs, handle)
			released++
		}
	}
	return released
}

// Len は保持しているハンドル数を返す。
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
