// Package cleanup は放置されたビューとプロフィール画像の自動回収ジョブを提供する。
// 一定時間参照されていないビューを破棄し、進行中の取得のキャンセルと
// 画像ハンドルの解放をビュー側に任せる。プロフィール表示の画像は
// 所有者単位で最終参照時刻を見て解放する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/musa/internal/asset"
)

// IdleDestroyer はcutoffより前から参照されていないビューを破棄する。
type IdleDestroyer interface {
	DestroyIdle(cutoff time.Time) int
}

// IdleBlobReleaser はcutoffより前から参照されていない所有者の画像を解放する。
type IdleBlobReleaser interface {
	ReleaseIdleOwners(prefix string, cutoff time.Time) int
}

// CleanupJob は放置ビューとプロフィール画像の回収ジョブ。
// 何度実行しても、対象がなければ何もしない。
type CleanupJob struct {
	views   IdleDestroyer
	blobs   IdleBlobReleaser
	logger  *slog.Logger
	MaxIdle time.Duration // 最終参照からこの時間を過ぎたビューを回収する（デフォルト: 30分）
	now     func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。blobsがnilならビューだけを回収する。
func NewCleanupJob(views IdleDestroyer, blobs IdleBlobReleaser, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		views:   views,
		blobs:   blobs,
		logger:  logger,
		MaxIdle: 30 * time.Minute,
		now:     time.Now,
	}
}

// Run は放置ビューとプロフィール画像を1回回収し、破棄したビューの数を返す。
func (j *CleanupJob) Run(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	start := j.now()
	cutoff := start.Add(-j.MaxIdle)

	destroyed := j.views.DestroyIdle(cutoff)
	released := 0
	if j.blobs != nil {
		released = j.blobs.ReleaseIdleOwners(asset.ProfileOwnerPrefix, cutoff)
	}
	if destroyed > 0 || released > 0 {
		j.logger.Info("放置されたビューと画像を回収しました",
			slog.Int("destroyed_count", destroyed),
			slog.Int("released_blobs", released),
			slog.Duration("max_idle", j.MaxIdle),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}
	return destroyed
}

// Start はctxがキャンセルされるまでinterval間隔でRunを実行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("ビュー回収ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("max_idle", j.MaxIdle),
	)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("ビュー回収ジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
