// Package view はビュー（ページ）単位のコレクション・描画先・画像ハンドルを管理し、
// スクロール位置とタブ切り替えに応じて次ページの読み込みを起動する。
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/musa/internal/aggregator"
	"github.com/hitoshi/musa/internal/model"
	"github.com/hitoshi/musa/internal/pagination"
)

// DefaultScrollThreshold は末尾までの距離がこの値以下になったら次ページを読み込む（px）。
const DefaultScrollThreshold = 200

var (
	// ErrViewNotFound は指定IDのビューが存在しない場合のエラー。
	ErrViewNotFound = errors.New("view not found")
	// ErrCollectionNotFound はビューが持たないコレクションを指定した場合のエラー。
	ErrCollectionNotFound = errors.New("collection not found in view")
	// ErrDestroyed は破棄済みのビューを操作した場合のエラー。
	ErrDestroyed = errors.New("view destroyed")
)

// Kind はビューの種類。
type Kind string

const (
	// KindOrganization はログイン中アカウントのページ（投稿・商品・イベント）。
	KindOrganization Kind = "organization"
	// KindProfile は公開プロフィールのページ（投稿・商品）。
	KindProfile Kind = "profile"
)

// ParseKind は文字列をビューの種類に変換する。
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindOrganization, KindProfile:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown view kind: %q", s)
	}
}

// Params はビューの生成パラメータ。
type Params struct {
	Kind      Kind   `json:"kind"`
	Username  string `json:"username,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
}

// Options はビューの設定。
type Options struct {
	PostsPageSize   int
	GridPageSize    int
	ScrollThreshold float64
}

// ScrollPosition はスクロール位置の報告。
type ScrollPosition struct {
	ViewportHeight float64 `json:"viewport_height"`
	ScrollY        float64 `json:"scroll_y"`
	DocumentHeight float64 `json:"document_height"`
}

// DistanceToBottom は表示領域の下端からドキュメント末尾までの距離を返す。
func (p ScrollPosition) DistanceToBottom() float64 {
	return p.DocumentHeight - (p.ViewportHeight + p.ScrollY)
}

// BlobReleaser はビューに紐づく画像ハンドルを解放する。
type BlobReleaser interface {
	ReleaseOwner(owner string) int
}

// View は1ページ分のコレクションと描画先を持つ。
// ビュー内の取得はすべてビューのコンテキストで実行し、Destroyでキャンセルする。
type View struct {
	id        string
	params    Params
	createdAt time.Time
	lastUsed  atomic.Int64 // UnixNano

	ctx    context.Context
	cancel context.CancelFunc

	driver    *aggregator.Driver
	blobs     BlobReleaser
	logger    *slog.Logger
	threshold float64

	container   *Container
	collections map[model.Kind]*aggregator.Collection
	order       []model.Kind

	mu          sync.Mutex
	active      model.Kind
	initialized map[model.Kind]bool
	destroyed   bool
	inflight    sync.WaitGroup
}

// ID はビューIDを返す。
func (v *View) ID() string { return v.id }

// Params はビューの生成パラメータを返す。
func (v *View) Params() Params { return v.params }

// LastUsed はビューが最後に参照された時刻を返す。
func (v *View) LastUsed() time.Time { return time.Unix(0, v.lastUsed.Load()) }

func (v *View) touch(now time.Time) { v.lastUsed.Store(now.UnixNano()) }

// Container は描画先を返す。
func (v *View) Container() *Container { return v.container }

// Kinds はビューが持つコレクションを表示順で返す。
func (v *View) Kinds() []model.Kind {
	out := make([]model.Kind, len(v.order))
	copy(out, v.order)
	return out
}

// OnScroll はスクロール位置を受け取り、末尾までの距離が閾値以下なら
// アクティブなコレクションの次ページを読み込む。読み込みを起動したらtrueを返す。
// 独立したコレクションは並行に読み込み、すべて終わるまで待つ。
func (v *View) OnScroll(pos ScrollPosition) bool {
	if pos.DistanceToBottom() > v.threshold {
		return false
	}

	v.mu.Lock()
	if v.destroyed {
		v.mu.Unlock()
		return false
	}
	var targets []*aggregator.Collection
	for _, kind := range v.order {
		if kind == v.active && v.initialized[kind] {
			targets = append(targets, v.collections[kind])
		}
	}
	v.inflight.Add(len(targets))
	v.mu.Unlock()

	var wg sync.WaitGroup
	for _, col := range targets {
		wg.Add(1)
		go func(col *aggregator.Collection) {
			defer wg.Done()
			defer v.inflight.Done()
			v.driver.LoadNextPage(v.ctx, col, v.container)
		}(col)
	}
	wg.Wait()

	return len(targets) > 0
}

// ActivateTab はコレクションをアクティブにし（他は非アクティブ）、
// 未初期化、または表示が空で読み込み中でない場合に最初のページを読み込む。
func (v *View) ActivateTab(kind model.Kind) error {
	col, ok := v.collections[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, kind)
	}

	v.mu.Lock()
	if v.destroyed {
		v.mu.Unlock()
		return ErrDestroyed
	}
	v.active = kind

	needsLoad := !v.initialized[kind]
	if !needsLoad && v.container.Len(kind) == 0 && !col.State.Loading() {
		// 空のまま終わったタブは最初から読み直す
		if col.State.Reset() {
			v.container.Clear(kind)
			needsLoad = true
		}
	}
	if !needsLoad {
		v.mu.Unlock()
		return nil
	}
	v.initialized[kind] = true
	v.inflight.Add(1)
	v.mu.Unlock()

	defer v.inflight.Done()
	res := v.driver.LoadNextPage(v.ctx, col, v.container)
	v.logger.Debug("タブを初期化しました",
		slog.String("view_id", v.id),
		slog.String("collection", string(kind)),
		slog.String("outcome", res.Outcome.String()),
	)
	return nil
}

// Active はアクティブなコレクションを返す。
func (v *View) Active() model.Kind {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

// Destroy は進行中の取得をキャンセルし、取得の終了を待って画像ハンドルを解放する。
// 2回目以降の呼び出しは何もしない。
func (v *View) Destroy() {
	v.mu.Lock()
	if v.destroyed {
		v.mu.Unlock()
		return
	}
	v.destroyed = true
	v.mu.Unlock()

	v.cancel()
	v.inflight.Wait()

	released := 0
	if v.blobs != nil {
		released = v.blobs.ReleaseOwner(v.id)
	}
	v.logger.Info("ビューを破棄しました",
		slog.String("view_id", v.id),
		slog.Int("released_blobs", released),
	)
}

// Destroyed は破棄済みかを返す。
func (v *View) Destroyed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.destroyed
}

// CollectionSnapshot はコレクション1つ分の表示状態。
type CollectionSnapshot struct {
	Kind         model.Kind   `json:"kind"`
	Active       bool         `json:"active"`
	Phase        string       `json:"phase"`
	Page         int          `json:"page"`
	Finished     bool         `json:"finished"`
	Loading      bool         `json:"loading"`
	EmptyMessage string       `json:"empty_message,omitempty"`
	Cards        []model.Card `json:"cards"`
}

// Snapshot はビュー全体の表示状態。
type Snapshot struct {
	ID          string               `json:"id"`
	Kind        Kind                 `json:"kind"`
	Username    string               `json:"username,omitempty"`
	Active      model.Kind           `json:"active,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	Collections []CollectionSnapshot `json:"collections"`
}

// Collection はコレクション1つ分の表示状態を返す。
func (v *View) Collection(kind model.Kind) (CollectionSnapshot, error) {
	col, ok := v.collections[kind]
	if !ok {
		return CollectionSnapshot{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, kind)
	}

	phase := col.State.Phase()
	return CollectionSnapshot{
		Kind:         kind,
		Active:       v.Active() == kind,
		Phase:        phase.String(),
		Page:         col.State.Page(),
		Finished:     phase == pagination.PhaseFinished,
		Loading:      v.container.Loading(kind),
		EmptyMessage: v.container.EmptyMessage(kind),
		Cards:        v.container.Cards(kind),
	}, nil
}

// Snapshot はビュー全体の表示状態を返す。
func (v *View) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        v.id,
		Kind:      v.params.Kind,
		Username:  v.params.Username,
		Active:    v.Active(),
		CreatedAt: v.createdAt,
	}
	for _, kind := range v.order {
		cs, _ := v.Collection(kind)
		snap.Collections = append(snap.Collections, cs)
	}
	return snap
}
