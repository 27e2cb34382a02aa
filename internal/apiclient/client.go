// Package apiclient はMUSAバックエンド（コンテンツAPI）のクライアントを提供する。
// ベースURLは設定から、Bearerトークンはセッションからリクエストごとに取得する。
package apiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/musa/internal/content"
	"github.com/hitoshi/musa/internal/model"
)

const (
	// maxResponseSize はレスポンスボディの最大サイズ（10MB）。
	maxResponseSize = 10 * 1024 * 1024
	// userAgent は送信するUser-Agent。
	userAgent = "MUSA/1.0 Content Aggregator"
)

// TokenSource はリクエスト時点のBearerトークンを返す。
type TokenSource interface {
	Token() string
}

// TokenFunc は関数をTokenSourceとして使うためのアダプタ。
type TokenFunc func() string

// Token はTokenSourceを実装する。
func (f TokenFunc) Token() string { return f() }

// StatusRecorder はコンテンツAPIの応答ステータスを記録する。
type StatusRecorder interface {
	RecordUpstreamStatus(statusCode int)
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithRateLimit は送信レートを設定する。perSecが0以下なら制限しない。
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		if perSec <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithStatusRecorder はステータスの記録先を設定する。
func WithStatusRecorder(r StatusRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

// Client はコンテンツAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	tokens     TokenSource
	limiter    *rate.Limiter
	recorder   StatusRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, baseURL string, tokens TokenSource, logger *slog.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL はコンテンツAPIのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token は現在のBearerトークンを返す。
func (c *Client) Token() string {
	return c.tokens.Token()
}

// GetMyProfile はログイン中ユーザーのプロフィールと投稿1ページ分を取得する。
func (c *Client) GetMyProfile(ctx context.Context, page, size int) (*model.ProfilePage, error) {
	return c.getProfile(ctx, "/profile/me", page, size)
}

// GetPublicProfile は指定ユーザーの公開プロフィールと投稿1ページ分を取得する。
func (c *Client) GetPublicProfile(ctx context.Context, username string, page, size int) (*model.ProfilePage, error) {
	return c.getProfile(ctx, "/profile/"+url.PathEscape(username), page, size)
}

// GetMyProducts はログイン中ユーザーの商品1ページ分を取得する。
func (c *Client) GetMyProducts(ctx context.Context, page, size int) ([]model.Record, error) {
	return c.getRecords(ctx, "/products", pageQuery(page, size))
}

// GetProfileProducts は指定プロフィールの商品1ページ分を取得する。
func (c *Client) GetProfileProducts(ctx context.Context, profileID string, page, size int) ([]model.Record, error) {
	return c.getRecords(ctx, "/profile/"+url.PathEscape(profileID)+"/products", pageQuery(page, size))
}

// GetMyEvents はログイン中ユーザーのイベントを取得する。ページングには対応していない。
func (c *Client) GetMyEvents(ctx context.Context) ([]model.Record, error) {
	return c.getRecords(ctx, "/event/my", nil)
}

// Follow は指定ユーザーをフォローする。
func (c *Client) Follow(ctx context.Context, username string) error {
	_, _, err := c.do(ctx, http.MethodPost, "/profile/"+url.PathEscape(username)+"/follow", nil)
	return err
}

// Unfollow は指定ユーザーのフォローを解除する。
func (c *Client) Unfollow(ctx context.Context, username string) error {
	_, _, err := c.do(ctx, http.MethodDelete, "/profile/"+url.PathEscape(username)+"/unfollow", nil)
	return err
}

func (c *Client) getProfile(ctx context.Context, path string, page, size int) (*model.ProfilePage, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, pageQuery(page, size))
	if err != nil {
		return nil, err
	}

	profile, err := content.DecodeProfile(body)
	if err != nil {
		c.logger.Warn("プロフィールレスポンスの形が不正です",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, &model.FetchError{Kind: model.ErrorKindShape, Op: "GET " + path, Err: err}
	}
	return profile, nil
}

// getRecords は一覧系エンドポイントを呼び出し、形の違いを吸収したRecordを返す。
// 形が不正な場合はエラーではなく空配列になる。
func (c *Client) getRecords(ctx context.Context, path string, query url.Values) ([]model.Record, error) {
	body, contentType, err := c.do(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}
	return content.NormalizeResponse(contentType, body), nil
}

// do はBearerトークン付きでリクエストを送信し、2xxの場合にボディを返す。
func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, string, error) {
	op := method + " " + path

	reqURL, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, "", &model.FetchError{Kind: model.ErrorKindTransport, Op: op, Err: fmt.Errorf("URLのパースに失敗しました: %w", err)}
	}
	if query != nil {
		reqURL.RawQuery = query.Encode()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", &model.FetchError{Kind: model.ErrorKindTransport, Op: op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, "", &model.FetchError{Kind: model.ErrorKindTransport, Op: op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("コンテンツAPIの呼び出しに失敗しました",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return nil, "", &model.FetchError{Kind: model.ErrorKindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordUpstreamStatus(resp.StatusCode)
	}

	if kind := ClassifyStatus(resp.StatusCode); kind != "" {
		c.logger.Warn("コンテンツAPIがエラーステータスを返しました",
			slog.String("op", op),
			slog.Int("http_status", resp.StatusCode),
			slog.Duration("duration", time.Since(start)),
		)
		return nil, "", &model.FetchError{Kind: kind, Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", &model.FetchError{Kind: model.ErrorKindTransport, Op: op, Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}

	c.logger.Debug("コンテンツAPI呼び出し完了",
		slog.String("op", op),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)),
	)

	return body, resp.Header.Get("Content-Type"), nil
}

// ClassifyStatus はHTTPステータスコードをエラー種別に分類する。
// 2xxは空文字（成功）、401/403はauth、それ以外はtransportを返す。
func ClassifyStatus(statusCode int) model.ErrorKind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ""
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return model.ErrorKindAuth
	default:
		return model.ErrorKindTransport
	}
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q
}
