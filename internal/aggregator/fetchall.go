package aggregator

import (
	"context"
	"fmt"

	"github.com/hitoshi/musa/internal/content"
	"github.com/hitoshi/musa/internal/model"
)

// DefaultMaxPostPages はプロフィール投稿をまとめて取得する際のページ数上限。
const DefaultMaxPostPages = 12

// FetchAllPosts は取得済みの0ページ目に続けて1ページ目以降の投稿を取得し、
// 作成日時の降順に並べて返す。
// 空のページ、要求件数未満のページ（0ページ目を含む）、取得失敗、
// maxPagesに達した時点で打ち切る。打ち切りの原因になったエラーは
// 取得済みの投稿と一緒に返す。
func FetchAllPosts(ctx context.Context, first []model.Record, fetch PageFetcher, pageSize, maxPages int) ([]model.ContentItem, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPostPages
	}

	records := make([]model.Record, 0, len(first))
	records = append(records, first...)

	var stopErr error
	if len(first) >= pageSize {
		for page := 1; page < maxPages; page++ {
			batch, err := fetch(ctx, page, pageSize)
			if err != nil {
				stopErr = fmt.Errorf("投稿 %d ページ目の取得に失敗しました: %w", page, err)
				break
			}
			if len(batch) == 0 {
				break
			}
			records = append(records, batch...)
			if len(batch) < pageSize {
				break
			}
		}
	}

	items := content.ToItems(model.KindPosts, records)
	content.SortByCreatedAtDesc(items)
	return items, stopErr
}
