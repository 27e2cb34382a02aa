package view

import (
	"testing"
	"time"

	"github.com/hitoshi/musa/internal/model"
)

// TestContainer_AppendKeepsNewestFirst はページをまたいでも作成日時の降順を保つことを検証する。
func TestContainer_AppendKeepsNewestFirst(t *testing.T) {
	c := NewContainer()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	card := func(id string, d time.Duration) model.Card {
		ts := base.Add(d)
		return model.Card{ID: id, Item: model.ContentItem{CreatedAt: &ts}}
	}

	c.OnEmptyState(model.KindPosts, "Nenhuma publicação ainda.")
	c.OnPageAppended(model.KindPosts, []model.Card{card("b", 2*time.Hour), card("d", 0)})
	c.OnPageAppended(model.KindPosts, []model.Card{card("a", 3*time.Hour), card("c", time.Hour)})

	got := c.Cards(model.KindPosts)
	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("cards[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	if c.EmptyMessage(model.KindPosts) != "" {
		t.Error("カード追加後は空メッセージを消すべき")
	}
}

// TestContainer_LoadingAndClear は読み込み表示と消去を検証する。
func TestContainer_LoadingAndClear(t *testing.T) {
	c := NewContainer()

	if c.Loading(model.KindEvents) || c.Len(model.KindEvents) != 0 {
		t.Error("未使用のコレクションは空であるべき")
	}
	c.SetLoading(model.KindEvents, true)
	if !c.Loading(model.KindEvents) {
		t.Error("Loading = false, want true")
	}
	c.OnPageAppended(model.KindEvents, []model.Card{{ID: "e"}})
	c.Clear(model.KindEvents)
	if c.Len(model.KindEvents) != 0 || c.Loading(model.KindEvents) {
		t.Error("Clear 後も表示が残っている")
	}
	if cards := c.Cards(model.KindEvents); cards == nil {
		t.Error("Cards は nil ではなく空スライスを返すべき")
	}
}
