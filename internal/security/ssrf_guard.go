package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService は画像取得時のSSRF防止機能のインターフェース。
// 画像URLはコンテンツAPIのレスポンスに含まれる任意の文字列なので、取得前に必ず通す。
type SSRFGuardService interface {
	// NewSafeClient はプライベートIP・ループバック・リンクローカル宛ての接続を
	// Dialerレベルで拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行い、危険なURLならエラーを返す。
	ValidateURL(rawURL string) error
}

// ErrHostNotAllowed は許可ホストが設定されていて、そのどれにも一致しない場合のエラー。
var ErrHostNotAllowed = errors.New("host is not in the image host allow-list")

// blockedPrefixes はValidateURLで拒否するアドレス範囲。
// 169.254.0.0/16 はクラウドメタデータ (169.254.169.254) を含む。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct {
	ports []int
	hosts []string // 空なら公開ホストすべてを許可
}

// GuardOption はssrfGuardの設定を変更する。
type GuardOption func(*ssrfGuard)

// WithAllowedPorts は接続を許可するポートを指定する（既定は80と443）。
// 画像配信がAPIと同じ非標準ポートで動く環境で使う。
func WithAllowedPorts(ports ...int) GuardOption {
	return func(g *ssrfGuard) {
		if len(ports) > 0 {
			g.ports = ports
		}
	}
}

// WithAllowedHosts は画像を取得してよいホストを限定する。
// "cdn.musa.test" はそのホストと "*.cdn.musa.test" に一致する。
func WithAllowedHosts(hosts ...string) GuardOption {
	return func(g *ssrfGuard) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.Trim(strings.TrimSpace(h), ".")); h != "" {
				g.hosts = append(g.hosts, h)
			}
		}
	}
}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
func NewSSRFGuard(opts ...GuardOption) *ssrfGuard {
	g := &ssrfGuard{ports: []int{80, 443}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// 許可ホストの判定はValidateURLで行い、ここではアドレスとポートだけを見る。
// safeurlはDNS解決後のIPアドレスをDialerで検証するため、DNS再バインディングにも対応する。
// レスポンスサイズの上限は呼び出し側（asset.Loader）がLimitReaderで強制する。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は画像URLの安全性を事前に検証する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
	} else if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if len(g.hosts) > 0 && !g.hostAllowed(host) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	return nil
}

func (g *ssrfGuard) hostAllowed(host string) bool {
	return slices.ContainsFunc(g.hosts, func(allowed string) bool {
		return host == allowed || strings.HasSuffix(host, "."+allowed)
	})
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() {
		return true
	}
	return slices.ContainsFunc(blockedPrefixes, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}

var _ SSRFGuardService = (*ssrfGuard)(nil)
