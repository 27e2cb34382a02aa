// Package aggregator はコレクションのページ取得を状態機械・正規化・画像読み込みと
// 結び付け、描画先にカードを追加する。
package aggregator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/musa/internal/asset"
	"github.com/hitoshi/musa/internal/content"
	"github.com/hitoshi/musa/internal/model"
	"github.com/hitoshi/musa/internal/pagination"
)

// defaultImageConcurrency は1ページ分の画像を並列に読み込む上限。
const defaultImageConcurrency = 4

// PageFetcher はコレクションの1ページを取得する。
// ページング非対応のAPIではpageとsizeは無視してよい。
type PageFetcher func(ctx context.Context, page, size int) ([]model.Record, error)

// Renderer はカードの描画先。
type Renderer interface {
	OnPageAppended(kind model.Kind, cards []model.Card)
	OnEmptyState(kind model.Kind, message string)
	SetLoading(kind model.Kind, loading bool)
}

// ImageLoader は画像を読み込んで画像ソースを返す。失敗は代替表示として返す。
type ImageLoader interface {
	Load(ctx context.Context, req asset.Request) model.ImageSource
}

// TokenSource はBearerトークンを返す。
type TokenSource interface {
	Token() string
}

// MetricsRecorder はページ取得のメトリクスを記録する。
type MetricsRecorder interface {
	RecordPageFetch(collection, result string, duration time.Duration)
	RecordItemsAppended(collection string, count int)
}

// Collection はビュー内の1コレクション。
type Collection struct {
	Kind  model.Kind
	Owner string // 画像ハンドルの解放単位
	State *pagination.State
	Fetch PageFetcher
}

// NewCollection はCollectionを生成する。
func NewCollection(kind model.Kind, owner string, pageSize int, paginated bool, fetch PageFetcher) *Collection {
	return &Collection{
		Kind:  kind,
		Owner: owner,
		State: pagination.New(kind, pageSize, paginated),
		Fetch: fetch,
	}
}

// Driver はコレクションの次ページを読み込んで描画先に反映する。
type Driver struct {
	resolver         *asset.Resolver
	images           ImageLoader
	tokens           TokenSource
	logger           *slog.Logger
	metrics          MetricsRecorder
	imageConcurrency int
}

// NewDriver はDriverの新しいインスタンスを生成する。metricsはnilでもよい。
func NewDriver(resolver *asset.Resolver, images ImageLoader, tokens TokenSource, logger *slog.Logger, metrics MetricsRecorder) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		resolver:         resolver,
		images:           images,
		tokens:           tokens,
		logger:           logger,
		metrics:          metrics,
		imageConcurrency: defaultImageConcurrency,
	}
}

// LoadNextPage はコレクションの次ページを取得する。
// 取得中または終了済みの場合は何もしない。
// ctxがキャンセルされた後に届いた結果は描画先に書き込まずに破棄する。
func (d *Driver) LoadNextPage(ctx context.Context, col *Collection, r Renderer) pagination.Result {
	page, ok := col.State.Begin()
	if !ok {
		return pagination.Result{Outcome: pagination.OutcomeIgnored, Page: col.State.Page(), Finished: col.State.Finished()}
	}

	kind := col.Kind
	size := col.State.PageSize()
	r.SetLoading(kind, true)

	start := time.Now()
	records, err := col.Fetch(ctx, page, size)
	if ctx.Err() != nil {
		col.State.Abort()
		d.logger.Debug("ビュー破棄のため取得結果を破棄しました",
			slog.String("collection", string(kind)),
			slog.Int("page", page),
		)
		return pagination.Result{Outcome: pagination.OutcomeIgnored, Page: page}
	}

	if err != nil {
		res := col.State.Fail(err)
		d.recordFetch(kind, res.Outcome, start)
		d.logger.Warn("コレクションの取得に失敗しました",
			slog.String("collection", string(kind)),
			slog.Int("page", page),
			slog.String("kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
		if res.Outcome == pagination.OutcomeFirstPageError {
			r.OnEmptyState(kind, ErrorMessage(kind))
		}
		r.SetLoading(kind, false)
		return res
	}

	items := content.ToItems(kind, records)
	res := col.State.Complete(items, size)
	d.recordFetch(kind, res.Outcome, start)

	switch res.Outcome {
	case pagination.OutcomeEmpty:
		r.OnEmptyState(kind, EmptyMessage(kind))
	case pagination.OutcomeAppended:
		sorted := make([]model.ContentItem, len(res.Appended))
		copy(sorted, res.Appended)
		content.SortByCreatedAtDesc(sorted)

		cards := d.BuildCards(ctx, col.Owner, sorted)
		if ctx.Err() != nil {
			return pagination.Result{Outcome: pagination.OutcomeIgnored, Page: page}
		}
		r.OnPageAppended(kind, cards)
		if d.metrics != nil {
			d.metrics.RecordItemsAppended(string(kind), len(cards))
		}
	}

	d.logger.Debug("コレクションのページを読み込みました",
		slog.String("collection", string(kind)),
		slog.Int("page", page),
		slog.Int("items", len(items)),
		slog.String("outcome", res.Outcome.String()),
		slog.Bool("finished", res.Finished),
	)

	r.SetLoading(kind, false)
	return res
}

// BuildCards はアイテムごとにカードを組み立て、画像を読み込んで結び付ける。
// 画像はsemaphoreで並列数を制限して読み込み、カードの順序はアイテムの順序を保つ。
func (d *Driver) BuildCards(ctx context.Context, owner string, items []model.ContentItem) []model.Card {
	cards := make([]model.Card, len(items))
	token := ""
	if d.tokens != nil {
		token = d.tokens.Token()
	}

	sem := make(chan struct{}, d.imageConcurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		card := content.NewCard(item)
		card.ImageURL = d.resolver.Resolve(item.ImagePath)
		cards[i] = card

		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			cards[i].Image = d.images.Load(ctx, asset.Request{
				URL:   cards[i].ImageURL,
				Token: token,
				Owner: owner,
				Key:   cards[i].ID,
			})
		}(i)
	}
	wg.Wait()

	return cards
}

func (d *Driver) recordFetch(kind model.Kind, outcome pagination.Outcome, start time.Time) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordPageFetch(string(kind), outcome.String(), time.Since(start))
}
