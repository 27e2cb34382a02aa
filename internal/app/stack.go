package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/musa/internal/aggregator"
	"github.com/hitoshi/musa/internal/apiclient"
	"github.com/hitoshi/musa/internal/asset"
	"github.com/hitoshi/musa/internal/config"
	"github.com/hitoshi/musa/internal/database"
	"github.com/hitoshi/musa/internal/metrics"
	"github.com/hitoshi/musa/internal/security"
	"github.com/hitoshi/musa/internal/session"
	"github.com/hitoshi/musa/internal/view"
)

// stack はserveとprofileで共有する依存関係一式。
type stack struct {
	db       *sql.DB
	session  *session.Session
	client   *apiclient.Client
	blobs    *asset.BlobStore
	driver   *aggregator.Driver
	views    *view.Registry
	profiles *aggregator.ProfileLoader
	metrics  *metrics.Collector
	registry *prometheus.Registry
}

// newStack は設定から依存関係を組み立てる。
// DATABASE_URLが設定されていればPostgresのセッションストアを使い、マイグレーションも適用する。
// AUTH_TOKENが設定されていればその値でログイン済みの状態にする。
func newStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	st := &stack{}

	// 1. セッションストア
	var store session.Store
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(ctx, db, 0); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate session store: %w", err)
		}
		logger.Info("database connection established")
		st.db = db
		store = session.NewPostgresStore(db)
	} else {
		logger.Info("DATABASE_URL is not set, using in-memory session store")
		store = session.NewMemoryStore()
	}

	st.session = session.New(store, logger)
	if cfg.AuthToken != "" {
		if err := st.session.Login(ctx, cfg.AuthToken, nil); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to seed session: %w", err)
		}
	}

	// 2. メトリクス
	st.registry = prometheus.NewRegistry()
	st.registry.MustRegister(collectors.NewGoCollector())
	st.metrics = metrics.NewCollector(st.registry)

	// 3. コンテンツAPIクライアント
	tokens := st.session.TokenSource()
	st.client = apiclient.NewClient(
		&http.Client{Timeout: cfg.APITimeout},
		cfg.ContentAPIBaseURL,
		tokens,
		logger,
		apiclient.WithRateLimit(cfg.APIRatePerSec, cfg.APIRateBurst),
		apiclient.WithStatusRecorder(st.metrics),
	)

	// 4. 画像ローダー
	st.blobs = asset.NewBlobStore()
	loaderOpts := []asset.LoaderOption{
		asset.WithTimeout(cfg.AssetTimeout),
		asset.WithMaxSize(cfg.AssetMaxSize),
		asset.WithFallbackRecorder(st.metrics),
	}
	if cfg.AssetSSRFGuard {
		loaderOpts = append(loaderOpts, asset.WithSSRFGuard(newImageGuard(cfg)))
	}
	images := asset.NewLoader(st.blobs, logger, loaderOpts...)

	// 5. 集約処理とビュー
	st.driver = aggregator.NewDriver(asset.NewResolver(cfg.ContentAPIBaseURL), images, tokens, logger, st.metrics)
	st.views = view.NewRegistry(st.client, st.driver, st.blobs, logger, view.Options{
		PostsPageSize:   cfg.PostsPageSize,
		GridPageSize:    cfg.GridPageSize,
		ScrollThreshold: cfg.ScrollThreshold,
	})
	st.views.OnViewCountChanged(st.metrics.SetActiveViews)
	st.profiles = aggregator.NewProfileLoader(st.client, st.session, st.driver, security.NewContentSanitizer(), logger, aggregator.ProfileOptions{
		PostsPageSize: cfg.PostsPageSize,
		MaxPostPages:  cfg.MaxPostPages,
	})

	return st, nil
}

// newImageGuard は画像取得用のSSRFガードを作る。
// コンテンツAPIが非標準ポートで動いている場合、相対パスの画像も同じポートになるため許可に加える。
func newImageGuard(cfg *config.Config) security.SSRFGuardService {
	opts := []security.GuardOption{security.WithAllowedHosts(cfg.AssetAllowedHosts...)}
	if u, err := url.Parse(cfg.ContentAPIBaseURL); err == nil {
		if port, err := strconv.Atoi(u.Port()); err == nil && port != 80 && port != 443 {
			opts = append(opts, security.WithAllowedPorts(80, 443, port))
		}
	}
	return security.NewSSRFGuard(opts...)
}

// healthCheck はセッションDBを使っている場合に疎通を確認する。
func (st *stack) healthCheck(ctx context.Context) error {
	if st.db == nil {
		return nil
	}
	return database.Ping(ctx, st.db, 0)
}

// Close は生存中のビューを破棄し、DB接続を閉じる。
func (st *stack) Close() {
	if st.views != nil {
		st.views.DestroyAll()
	}
	if st.db != nil {
		st.db.Close()
	}
}
