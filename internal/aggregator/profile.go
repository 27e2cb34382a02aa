package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/musa/internal/asset"
	"github.com/hitoshi/musa/internal/content"
	"github.com/hitoshi/musa/internal/model"
)

// ErrLoginRequired はログインが必要な場合のエラー。
// 呼び出し元はログイン画面への遷移として扱う。
var ErrLoginRequired = errors.New("login required")

// 名前が未設定のときの表示。自分のプロフィールと公開プロフィールで異なる。
var (
	ownProfileDefaults    = profileDefaults{name: "Usuário", username: "usuario"}
	publicProfileDefaults = profileDefaults{name: "Nome não informado", username: "usuário"}
)

type profileDefaults struct {
	name     string
	username string
}

const (
	// DefaultPostsPageSize はプロフィール投稿の1ページの件数。
	DefaultPostsPageSize = 12
)

// ProfileAPI はプロフィール関連のコンテンツAPI。
type ProfileAPI interface {
	GetMyProfile(ctx context.Context, page, size int) (*model.ProfilePage, error)
	GetPublicProfile(ctx context.Context, username string, page, size int) (*model.ProfilePage, error)
	Follow(ctx context.Context, username string) error
	Unfollow(ctx context.Context, username string) error
}

// SessionStore はログイン状態の確認と破棄を行う。
type SessionStore interface {
	CheckAuth(ctx context.Context) bool
	Logout(ctx context.Context) error
}

// Sanitizer はHTMLをサニタイズする。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// ProfileOptions はProfileLoaderの設定。
type ProfileOptions struct {
	PostsPageSize int
	MaxPostPages  int
}

// ProfileLoader はプロフィールと投稿を読み込み、SessionProfileを組み立てる。
type ProfileLoader struct {
	api       ProfileAPI
	session   SessionStore
	driver    *Driver
	sanitizer Sanitizer
	logger    *slog.Logger
	opts      ProfileOptions

	mu      sync.RWMutex
	current *model.SessionProfile
}

// NewProfileLoader はProfileLoaderの新しいインスタンスを生成する。
func NewProfileLoader(api ProfileAPI, session SessionStore, driver *Driver, sanitizer Sanitizer, logger *slog.Logger, opts ProfileOptions) *ProfileLoader {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PostsPageSize <= 0 {
		opts.PostsPageSize = DefaultPostsPageSize
	}
	if opts.MaxPostPages <= 0 {
		opts.MaxPostPages = DefaultMaxPostPages
	}
	return &ProfileLoader{
		api:       api,
		session:   session,
		driver:    driver,
		sanitizer: sanitizer,
		logger:    logger,
		opts:      opts,
	}
}

// LoadOwn はログイン中ユーザーのプロフィールを読み込み、投稿をすべて集約する。
// 未ログイン、または401/403が返った場合はセッションを破棄してErrLoginRequiredを返す。
func (p *ProfileLoader) LoadOwn(ctx context.Context, owner string) (*model.SessionProfile, error) {
	if !p.session.CheckAuth(ctx) {
		return nil, ErrLoginRequired
	}

	size := p.opts.PostsPageSize
	first, err := p.api.GetMyProfile(ctx, 0, size)
	if err != nil {
		return nil, p.handleProfileError(ctx, err)
	}

	posts, err := FetchAllPosts(ctx, first.Posts, func(ctx context.Context, page, size int) ([]model.Record, error) {
		pg, err := p.api.GetMyProfile(ctx, page, size)
		if err != nil {
			return nil, err
		}
		return pg.Posts, nil
	}, size, p.opts.MaxPostPages)
	if err != nil {
		p.logger.Warn("投稿の集約を途中で打ち切りました",
			slog.Int("posts", len(posts)),
			slog.String("error", err.Error()),
		)
	}

	profile := p.build(ctx, owner, first, posts, ownProfileDefaults)

	p.mu.Lock()
	p.current = profile
	p.mu.Unlock()

	return profile, nil
}

// LoadPublic は公開プロフィールと投稿の最初のページを読み込む。
// 401/403でもセッションは破棄せず、通常の取得失敗として返す。
func (p *ProfileLoader) LoadPublic(ctx context.Context, owner, username string) (*model.SessionProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("ユーザー名が指定されていません")
	}

	pg, err := p.api.GetPublicProfile(ctx, username, 0, p.opts.PostsPageSize)
	if err != nil {
		return nil, fmt.Errorf("公開プロフィールの取得に失敗しました: %w", err)
	}

	posts := toSortedPosts(pg.Posts)
	profile := p.build(ctx, owner, pg, posts, publicProfileDefaults)
	if pg.IsFollowing != nil {
		profile.IsFollowing = *pg.IsFollowing
	}
	return profile, nil
}

// ToggleFollow は現在のフォロー状態を反転し、新しい状態を返す。
func (p *ProfileLoader) ToggleFollow(ctx context.Context, username string, following bool) (bool, error) {
	if !p.session.CheckAuth(ctx) {
		return following, ErrLoginRequired
	}

	var err error
	if following {
		err = p.api.Unfollow(ctx, username)
	} else {
		err = p.api.Follow(ctx, username)
	}
	if err != nil {
		if model.IsAuthError(err) {
			return following, p.handleProfileError(ctx, err)
		}
		return following, fmt.Errorf("フォロー状態の更新に失敗しました: %w", err)
	}
	return !following, nil
}

// Current は最後に読み込んだ自分のプロフィールを返す。未読み込みならnil。
func (p *ProfileLoader) Current() *model.SessionProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// handleProfileError は401/403ならセッションを破棄してErrLoginRequiredを返す。
func (p *ProfileLoader) handleProfileError(ctx context.Context, err error) error {
	if !model.IsAuthError(err) {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	p.logger.Warn("認証エラーのためセッションを破棄します",
		slog.String("error", err.Error()),
	)
	if logoutErr := p.session.Logout(ctx); logoutErr != nil {
		p.logger.Error("セッションの破棄に失敗しました",
			slog.String("error", logoutErr.Error()),
		)
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	return fmt.Errorf("%w: %v", ErrLoginRequired, err)
}

func (p *ProfileLoader) build(ctx context.Context, owner string, pg *model.ProfilePage, posts []model.ContentItem, defaults profileDefaults) *model.SessionProfile {
	profile := &model.SessionProfile{
		ID:             pg.ID,
		Name:           orDefault(pg.Name, defaults.name),
		Username:       orDefault(pg.Username, defaults.username),
		Bio:            pg.Bio,
		ContactHTML:    p.contactHTML(pg),
		FollowersCount: pg.FollowersCount,
		FollowingCount: pg.FollowingCount,
		PostsCount:     int(pg.TotalPosts),
		Posts:          posts,
	}
	if profile.PostsCount == 0 {
		profile.PostsCount = len(posts)
	}

	profile.AvatarURL = p.driver.resolver.Resolve(pg.ProfilePictureURL)
	token := ""
	if p.driver.tokens != nil {
		token = p.driver.tokens.Token()
	}
	profile.Avatar = p.driver.images.Load(ctx, asset.Request{
		URL:    profile.AvatarURL,
		Token:  token,
		Owner:  owner,
		Avatar: true,
	})

	profile.PostCards = p.driver.BuildCards(ctx, owner, posts)
	if len(posts) == 0 {
		profile.EmptyMessage = EmptyMessage(model.KindPosts)
	}

	return profile
}

// contactHTML はbio、公開メール、電話番号を<br>で連結してサニタイズする。
func (p *ProfileLoader) contactHTML(pg *model.ProfilePage) string {
	var parts []string
	for _, v := range []string{pg.Bio, pg.PublicEmail, pg.Phone} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	joined := strings.Join(parts, "<br>")
	if p.sanitizer == nil {
		return joined
	}
	return p.sanitizer.Sanitize(joined)
}

func toSortedPosts(records []model.Record) []model.ContentItem {
	items := content.ToItems(model.KindPosts, records)
	content.SortByCreatedAtDesc(items)
	return items
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
