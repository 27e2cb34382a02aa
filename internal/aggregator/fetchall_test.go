package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hitoshi/musa/internal/model"
)

func datedPosts(n, page int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{
			"id":        fmt.Sprintf("p%d-%d", page, i),
			"createdAt": fmt.Sprintf("2025-%02d-%02dT00:00:00Z", 12-page, 28-i),
		}
	}
	return out
}

// TestFetchAllPosts_StopsOnShortPage は要求件数未満のページで打ち切ることを検証する。
func TestFetchAllPosts_StopsOnShortPage(t *testing.T) {
	f := &fakeFetcher{pages: map[int][]model.Record{1: datedPosts(3, 1)}}

	items, err := FetchAllPosts(context.Background(), datedPosts(12, 0), f.fetch, 12, 12)
	if err != nil {
		t.Fatalf("FetchAllPosts returned error: %v", err)
	}
	if len(items) != 15 {
		t.Errorf("件数 = %d, want 15", len(items))
	}
	if len(f.calls) != 1 {
		t.Errorf("calls = %v, want [1]", f.calls)
	}
}

// TestFetchAllPosts_ShortFirstPage は0ページ目が短い場合に追加取得しないことを検証する。
func TestFetchAllPosts_ShortFirstPage(t *testing.T) {
	f := &fakeFetcher{}

	items, _ := FetchAllPosts(context.Background(), datedPosts(5, 0), f.fetch, 12, 12)
	if len(items) != 5 {
		t.Errorf("件数 = %d, want 5", len(items))
	}
	if len(f.calls) != 0 {
		t.Errorf("追加取得してはいけない: calls = %v", f.calls)
	}
}

// TestFetchAllPosts_StopsOnEmptyPage は空のページで打ち切ることを検証する。
func TestFetchAllPosts_StopsOnEmptyPage(t *testing.T) {
	f := &fakeFetcher{pages: map[int][]model.Record{1: datedPosts(2, 1)}}

	items, _ := FetchAllPosts(context.Background(), datedPosts(2, 0), f.fetch, 2, 12)
	if len(items) != 4 {
		t.Errorf("件数 = %d, want 4", len(items))
	}
	if len(f.calls) != 2 || f.calls[1] != 2 {
		t.Errorf("calls = %v, want [1 2]", f.calls)
	}
}

// TestFetchAllPosts_SafetyCap はページ数上限で打ち切ることを検証する。
func TestFetchAllPosts_SafetyCap(t *testing.T) {
	pages := make(map[int][]model.Record)
	for p := 1; p < 100; p++ {
		pages[p] = datedPosts(2, p%12)
	}
	f := &fakeFetcher{pages: pages}

	items, _ := FetchAllPosts(context.Background(), datedPosts(2, 0), f.fetch, 2, 12)
	if len(f.calls) != 11 {
		t.Errorf("追加取得回数 = %d, want 11", len(f.calls))
	}
	if len(items) != 24 {
		t.Errorf("件数 = %d, want 24", len(items))
	}
}

// TestFetchAllPosts_ErrorKeepsCollected は取得失敗時に集めた投稿とエラーを返すことを検証する。
func TestFetchAllPosts_ErrorKeepsCollected(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeFetcher{
		pages: map[int][]model.Record{1: datedPosts(2, 1)},
		err:   map[int]error{2: boom},
	}

	items, err := FetchAllPosts(context.Background(), datedPosts(2, 0), f.fetch, 2, 12)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(items) != 4 {
		t.Errorf("件数 = %d, want 4", len(items))
	}
}

// TestFetchAllPosts_SortedDesc は結果が作成日時の降順になることを検証する。
func TestFetchAllPosts_SortedDesc(t *testing.T) {
	first := []model.Record{
		{"id": "old", "createdAt": "2025-01-01T00:00:00Z"},
		{"id": "new", "createdAt": "2025-03-01T00:00:00Z"},
	}
	f := &fakeFetcher{pages: map[int][]model.Record{1: {{"id": "mid", "createdAt": "2025-02-01T00:00:00Z"}}}}

	items, _ := FetchAllPosts(context.Background(), first, f.fetch, 2, 12)

	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("items[%d] = %s, want %s", i, items[i].ID, id)
		}
	}
}
