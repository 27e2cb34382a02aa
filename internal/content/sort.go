package content

import (
	"sort"
	"time"

	"github.com/hitoshi/musa/internal/model"
)

// SortByCreatedAtDesc はcreatedAtの降順に安定ソートする。
// 同時刻のアイテムは元の順序を保ち、createdAtを持たないアイテムは末尾に回す。
func SortByCreatedAtDesc(items []model.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return newerFirst(items[i].CreatedAt, items[j].CreatedAt)
	})
}

// SortCardsByCreatedAtDesc はカードを元のアイテムのcreatedAtの降順に安定ソートする。
func SortCardsByCreatedAtDesc(cards []model.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		return newerFirst(cards[i].Item.CreatedAt, cards[j].Item.CreatedAt)
	})
}

func newerFirst(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
