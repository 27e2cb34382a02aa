package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/musa/internal/aggregator"
	"github.com/hitoshi/musa/internal/model"
)

// ContentAPI はビューのコレクションが使うコンテンツAPI。
type ContentAPI interface {
	GetMyProfile(ctx context.Context, page, size int) (*model.ProfilePage, error)
	GetPublicProfile(ctx context.Context, username string, page, size int) (*model.ProfilePage, error)
	GetMyProducts(ctx context.Context, page, size int) ([]model.Record, error)
	GetProfileProducts(ctx context.Context, profileID string, page, size int) ([]model.Record, error)
	GetMyEvents(ctx context.Context) ([]model.Record, error)
}

// Registry は生存中のビューをIDで管理する。
type Registry struct {
	api     ContentAPI
	driver  *aggregator.Driver
	blobs   BlobReleaser
	logger  *slog.Logger
	opts    Options
	onCount func(n int)

	mu    sync.RWMutex
	views map[string]*View
}

// NewRegistry はRegistryの新しいインスタンスを生成する。
func NewRegistry(api ContentAPI, driver *aggregator.Driver, blobs BlobReleaser, logger *slog.Logger, opts Options) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PostsPageSize <= 0 {
		opts.PostsPageSize = aggregator.DefaultPostsPageSize
	}
	if opts.GridPageSize <= 0 {
		opts.GridPageSize = 6
	}
	if opts.ScrollThreshold <= 0 {
		opts.ScrollThreshold = DefaultScrollThreshold
	}
	return &Registry{
		api:    api,
		driver: driver,
		blobs:  blobs,
		logger: logger,
		opts:   opts,
		views:  make(map[string]*View),
	}
}

// OnViewCountChanged は生存ビュー数が変わったときに呼ばれる関数を設定する。
func (r *Registry) OnViewCountChanged(fn func(n int)) {
	r.mu.Lock()
	r.onCount = fn
	r.mu.Unlock()
}

// Create はビューを生成して登録する。まだ読み込みは行わない。
func (r *Registry) Create(params Params) (*View, error) {
	params.Username = strings.TrimSpace(params.Username)
	params.ProfileID = strings.TrimSpace(params.ProfileID)
	if _, err := ParseKind(string(params.Kind)); err != nil {
		return nil, err
	}
	if params.Kind == KindProfile && params.Username == "" {
		return nil, errors.New("profile view requires username")
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		id:          uuid.NewString(),
		params:      params,
		createdAt:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		driver:      r.driver,
		blobs:       r.blobs,
		logger:      r.logger,
		threshold:   r.opts.ScrollThreshold,
		container:   NewContainer(),
		collections: make(map[model.Kind]*aggregator.Collection),
		initialized: make(map[model.Kind]bool),
	}
	v.touch(v.createdAt)
	r.buildCollections(v)

	r.mu.Lock()
	r.views[v.id] = v
	n := len(r.views)
	onCount := r.onCount
	r.mu.Unlock()

	if onCount != nil {
		onCount(n)
	}
	r.logger.Info("ビューを生成しました",
		slog.String("view_id", v.id),
		slog.String("kind", string(params.Kind)),
		slog.String("username", params.Username),
	)
	return v, nil
}

// Get は指定IDのビューを返す。
func (r *Registry) Get(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.views[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	v.touch(time.Now())
	return v, nil
}

// Destroy は指定IDのビューを破棄して登録を外す。
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	if ok {
		delete(r.views, id)
	}
	n := len(r.views)
	onCount := r.onCount
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, id)
	}
	v.Destroy()
	if onCount != nil {
		onCount(n)
	}
	return nil
}

// DestroyAll はすべてのビューを破棄する。シャットダウン時に使う。
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	views := make([]*View, 0, len(r.views))
	for id, v := range r.views {
		views = append(views, v)
		delete(r.views, id)
	}
	onCount := r.onCount
	r.mu.Unlock()

	for _, v := range views {
		v.Destroy()
	}
	if onCount != nil {
		onCount(0)
	}
}

// DestroyIdle はcutoffより前から参照されていないビューを破棄し、破棄した数を返す。
// DELETEを送らずに離脱したクライアントのビューと画像ハンドルを回収するために使う。
func (r *Registry) DestroyIdle(cutoff time.Time) int {
	r.mu.Lock()
	var idle []*View
	for id, v := range r.views {
		if v.LastUsed().Before(cutoff) {
			idle = append(idle, v)
			delete(r.views, id)
		}
	}
	n := len(r.views)
	onCount := r.onCount
	r.mu.Unlock()

	for _, v := range idle {
		v.Destroy()
	}
	if len(idle) > 0 && onCount != nil {
		onCount(n)
	}
	return len(idle)
}

// Len は生存中のビュー数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// buildCollections はビューの種類に応じてコレクションと取得関数を組み立てる。
func (r *Registry) buildCollections(v *View) {
	add := func(kind model.Kind, size int, paginated bool, fetch aggregator.PageFetcher) {
		v.collections[kind] = aggregator.NewCollection(kind, v.id, size, paginated, fetch)
		v.order = append(v.order, kind)
	}

	switch v.params.Kind {
	case KindOrganization:
		add(model.KindPosts, r.opts.PostsPageSize, true, func(ctx context.Context, page, size int) ([]model.Record, error) {
			pg, err := r.api.GetMyProfile(ctx, page, size)
			if err != nil {
				return nil, err
			}
			return pg.Posts, nil
		})
		add(model.KindProducts, r.opts.GridPageSize, true, r.api.GetMyProducts)
		add(model.KindEvents, r.opts.GridPageSize, false, func(ctx context.Context, _, _ int) ([]model.Record, error) {
			return r.api.GetMyEvents(ctx)
		})

	case KindProfile:
		username := v.params.Username
		profileID := newProfileIDCache(v.params.ProfileID, func(ctx context.Context) (string, error) {
			pg, err := r.api.GetPublicProfile(ctx, username, 0, 1)
			if err != nil {
				return "", err
			}
			return pg.ID, nil
		})

		add(model.KindPosts, r.opts.PostsPageSize, true, func(ctx context.Context, page, size int) ([]model.Record, error) {
			pg, err := r.api.GetPublicProfile(ctx, username, page, size)
			if err != nil {
				return nil, err
			}
			profileID.set(pg.ID)
			return pg.Posts, nil
		})
		add(model.KindProducts, r.opts.GridPageSize, true, func(ctx context.Context, page, size int) ([]model.Record, error) {
			id, err := profileID.get(ctx)
			if err != nil {
				return nil, err
			}
			return r.api.GetProfileProducts(ctx, id, page, size)
		})
	}
}

// profileIDCache は公開プロフィールのIDを一度だけ解決して保持する。
type profileIDCache struct {
	mu      sync.Mutex
	id      string
	resolve func(ctx context.Context) (string, error)
}

func newProfileIDCache(id string, resolve func(ctx context.Context) (string, error)) *profileIDCache {
	return &profileIDCache{id: id, resolve: resolve}
}

func (c *profileIDCache) set(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	if c.id == "" {
		c.id = id
	}
	c.mu.Unlock()
}

func (c *profileIDCache) get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.id != "" {
		return c.id, nil
	}
	id, err := c.resolve(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", &model.FetchError{Kind: model.ErrorKindShape, Op: "resolve profile id", Err: errors.New("profile id is empty")}
	}
	c.id = id
	return id, nil
}
