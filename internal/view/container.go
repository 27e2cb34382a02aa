package view

import (
	"sync"

	"github.com/hitoshi/musa/internal/content"
	"github.com/hitoshi/musa/internal/model"
)

// Container はビュー内の描画先。コレクションごとにカード・空メッセージ・読み込み表示を保持する。
// 書き込みは各コレクションの取得処理からのみ行い、読み出しはHTTPハンドラから並行に行われる。
type Container struct {
	mu    sync.RWMutex
	grids map[model.Kind]*grid
}

type grid struct {
	cards        []model.Card
	emptyMessage string
	loading      bool
}

// NewContainer はContainerを生成する。
func NewContainer() *Container {
	return &Container{grids: make(map[model.Kind]*grid)}
}

func (c *Container) grid(kind model.Kind) *grid {
	g, ok := c.grids[kind]
	if !ok {
		g = &grid{}
		c.grids[kind] = g
	}
	return g
}

// OnPageAppended はカードを追加し、作成日時の降順に並べ直す。
func (c *Container) OnPageAppended(kind model.Kind, cards []model.Card) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.grid(kind)
	g.cards = append(g.cards, cards...)
	g.emptyMessage = ""
	content.SortCardsByCreatedAtDesc(g.cards)
}

// OnEmptyState は空メッセージ（またはエラーメッセージ）を表示する。
func (c *Container) OnEmptyState(kind model.Kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid(kind).emptyMessage = message
}

// SetLoading は読み込み表示を切り替える。
func (c *Container) SetLoading(kind model.Kind, loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid(kind).loading = loading
}

// Cards は表示中のカードのコピーを返す。
func (c *Container) Cards(kind model.Kind) []model.Card {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.grids[kind]
	if !ok {
		return []model.Card{}
	}
	out := make([]model.Card, len(g.cards))
	copy(out, g.cards)
	return out
}

// Len は表示中のカード数を返す。
func (c *Container) Len(kind model.Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if g, ok := c.grids[kind]; ok {
		return len(g.cards)
	}
	return 0
}

// EmptyMessage は表示中の空メッセージを返す。
func (c *Container) EmptyMessage(kind model.Kind) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if g, ok := c.grids[kind]; ok {
		return g.emptyMessage
	}
	return ""
}

// Loading は読み込み表示中かを返す。
func (c *Container) Loading(kind model.Kind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if g, ok := c.grids[kind]; ok {
		return g.loading
	}
	return false
}

// Clear はコレクションの表示を消す。
func (c *Container) Clear(kind model.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.grids, kind)
}
