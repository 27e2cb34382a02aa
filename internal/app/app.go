package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/musa/internal/asset"
	"github.com/hitoshi/musa/internal/config"
	"github.com/hitoshi/musa/internal/database"
	"github.com/hitoshi/musa/internal/handler"
	"github.com/hitoshi/musa/internal/logger"
	"github.com/hitoshi/musa/internal/metrics"
	"github.com/hitoshi/musa/internal/middleware"
	"github.com/hitoshi/musa/internal/worker/cleanup"
)

// ownProfileOwner はprofileコマンドで取得した画像ハンドルの所有者。
const ownProfileOwner = asset.ProfileOwnerPrefix + "me"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。profileコマンドの結果はos.Stdoutに出力する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("content_api", cfg.ContentAPIBaseURL),
	)

	switch cmd {
	case CommandProfile:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runProfile(ctx, cfg, os.Stdout)
	case CommandMigrate:
		return runMigrate(cfg, ParseMigrateAction(args), w)
	default:
		return runServe(cfg)
	}
}

// runServe はビューサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行い、残っているビューを破棄する。
func runServe(cfg *config.Config) error {
	st, err := newStack(context.Background(), cfg, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		AuthChecker:       st.session,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Sessions: st.session,
		Profiles: st.profiles,
		Views:    st.views,
		Blobs:    st.blobs,

		Health:      st.healthCheck,
		ViewCount:   st.views.Len,
		MetricsHTTP: metrics.Handler(st.registry),
	})

	// 放置ビューの回収ジョブをバックグラウンドで起動
	reapCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	reaper := cleanup.NewCleanupJob(st.views, st.blobs, slog.Default())
	reaper.MaxIdle = cfg.ViewIdleTimeout
	go reaper.Start(reapCtx, cfg.ViewReapInterval)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // ビュー生成は複数ページの取得を待つ
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("view server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down view server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("view server stopped gracefully", slog.Int("views", st.views.Len()))
	return nil
}

// runProfile は自分のプロフィールを一度だけ集約し、JSONで出力する。
// AUTH_TOKENまたは保存済みセッションでログインしている必要がある。
func runProfile(ctx context.Context, cfg *config.Config, out io.Writer) error {
	st, err := newStack(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer st.Close()

	profile, err := st.profiles.LoadOwn(ctx, ownProfileOwner)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	defer st.blobs.ReleaseOwner(ownProfileOwner)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(profile); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// runMigrate はセッションテーブルのマイグレーションを実行する。
func runMigrate(cfg *config.Config, action MigrateAction, out io.Writer) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		fmt.Fprintf(out, "version=%d dirty=%t\n", version, dirty)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
