package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/musa/internal/model"
)

// defaultMaxSize は画像の最大サイズ（5MB）。
const defaultMaxSize = 5 * 1024 * 1024

// defaultTimeout は画像取得のタイムアウト。
const defaultTimeout = 5 * time.Second

// SSRFValidator はSSRF防止機能のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FallbackRecorder は代替表示に切り替えた回数を記録する。
type FallbackRecorder interface {
	RecordAssetFallback(reason string)
}

// Request は画像1件の取得要求。
type Request struct {
	URL    string // Resolve済みの絶対URL
	Token  string // Bearerトークン（空なら付与しない）
	Owner  string // BlobStore上の解放単位
	Key    string // URLが空のときの色選択キー
	Avatar bool   // 失敗時に汎用アイコンを使う
}

// LoaderOption はLoaderの設定を変更する。
type LoaderOption func(*Loader)

// WithTimeout は取得タイムアウトを設定する。
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithMaxSize は許容する最大サイズを設定する。
func WithMaxSize(n int64) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

// WithSSRFGuard はSSRF防止付きのHTTPクライアントを使うようにする。
func WithSSRFGuard(g SSRFValidator) LoaderOption {
	return func(l *Loader) { l.ssrfGuard = g }
}

// WithFallbackRecorder は代替表示の記録先を設定する。
func WithFallbackRecorder(r FallbackRecorder) LoaderOption {
	return func(l *Loader) { l.recorder = r }
}

// WithHTTPClient はHTTPクライアントを差し替える（テスト用）。
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// Loader は認証付きで画像を取得し、BlobStoreのハンドルとして返す。
// 失敗は呼び出し側に返さず、塗りつぶし色か汎用アイコンに置き換える。
type Loader struct {
	blobs     *BlobStore
	logger    *slog.Logger
	ssrfGuard SSRFValidator
	recorder  FallbackRecorder
	client    *http.Client
	timeout   time.Duration
	maxSize   int64
}

// NewLoader はLoaderを生成する。
func NewLoader(blobs *BlobStore, logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		blobs:   blobs,
		logger:  logger,
		timeout: defaultTimeout,
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load は画像を取得して画像ソースを返す。
// URLが空の場合は取得せずに代替表示を返す。
func (l *Loader) Load(ctx context.Context, req Request) model.ImageSource {
	if req.URL == "" {
		if req.Avatar {
			return FallbackIcon()
		}
		return Placeholder(req.Key)
	}

	data, mimeType, err := l.fetch(ctx, req)
	if err != nil {
		reason := fallbackReason(err)
		l.logger.Warn("画像取得失敗: 代替表示に切り替え",
			slog.String("url", req.URL),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		if l.recorder != nil {
			l.recorder.RecordAssetFallback(reason)
		}
		if req.Avatar {
			return FallbackIcon()
		}
		return Placeholder(req.URL)
	}

	return model.ImageSource{BlobHandle: l.blobs.Put(req.Owner, data, mimeType)}
}

// errNotImage などは代替表示の理由の分類に使う。
var (
	errBlocked  = errors.New("blocked by ssrf guard")
	errStatus   = errors.New("unexpected status")
	errNotImage = errors.New("not an image")
	errTooLarge = errors.New("too large")
)

func (l *Loader) fetch(ctx context.Context, req Request) ([]byte, string, error) {
	if l.ssrfGuard != nil {
		if err := l.ssrfGuard.ValidateURL(req.URL); err != nil {
			return nil, "", fmt.Errorf("%w: %v", errBlocked, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("リクエスト作成失敗: %w", err)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	httpReq.Header.Set("Accept", "image/*")

	resp, err := l.httpClient().Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("%w: %q", errNotImage, mimeType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	if int64(len(body)) > l.maxSize {
		return nil, "", fmt.Errorf("%w: %d bytes", errTooLarge, len(body))
	}

	return body, mimeType, nil
}

func (l *Loader) httpClient() *http.Client {
	if l.client != nil {
		return l.client
	}
	if l.ssrfGuard != nil {
		return l.ssrfGuard.NewSafeClient(l.timeout, l.maxSize)
	}
	return &http.Client{Timeout: l.timeout}
}

// fallbackReason はメトリクス用の理由ラベルを返す。
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, errBlocked):
		return "blocked"
	case errors.Is(err, errStatus):
		return "status"
	case errors.Is(err, errNotImage):
		return "not_image"
	case errors.Is(err, errTooLarge):
		return "too_large"
	default:
		return "network"
	}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}
