package model

import (
	"fmt"
	"time"
)

// Kind はコレクションの種別（posts/products/events）を表す。
// 種別ごとに独立してページング状態を持ち、種別をまたいでマージしない。
type Kind string

const (
	// KindPosts は投稿コレクション。
	KindPosts Kind = "posts"
	// KindProducts は商品・サービスコレクション。
	KindProducts Kind = "products"
	// KindEvents はイベントコレクション。
	KindEvents Kind = "events"
)

// Kinds は全コレクション種別を表示順で返す。
func Kinds() []Kind {
	return []Kind{KindPosts, KindProducts, KindEvents}
}

// ParseKind は文字列をKindに変換する。
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPosts, KindProducts, KindEvents:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown collection kind: %q", s)
	}
}

// Record はコンテンツAPIが返す1件分の生データ。
// フィールド名はエンドポイントごとに揺れるため、マップのまま保持する。
type Record map[string]any

// ContentItem は投稿・商品・イベントを表す共通アイテム。
type ContentItem struct {
	ID          string
	Kind        Kind
	Label       string
	Description string
	CreatedAt   *time.Time
	ImagePath   string     // 相対パスまたは絶対URL
	Price       string     // 数値として解釈できない場合は生の文字列
	PriceValue  *float64   // 商品のみ
	EventDate   string     // イベントのみ。生の日付文字列
	EventTime   *time.Time // EventDateを解釈できた場合のみ
}

// CardType はカードの見た目の種類。
type CardType string

const (
	CardTypePost    CardType = "post"
	CardTypeProduct CardType = "product"
	CardTypeEvent   CardType = "event"
)

// ImageSource はカードに結び付ける画像ソース。
// BlobHandle、PlaceholderColor、FallbackIconのいずれか1つだけが設定される。
type ImageSource struct {
	BlobHandle       string `json:"blob_handle,omitempty"`
	PlaceholderColor string `json:"placeholder_color,omitempty"`
	FallbackIcon     bool   `json:"fallback_icon,omitempty"`
}

// IsPlaceholder は画像取得に失敗して代替表示になっているかを返す。
func (s ImageSource) IsPlaceholder() bool {
	return s.BlobHandle == ""
}

// Card は1アイテム分の描画用カード。
type Card struct {
	ID       string      `json:"id"`
	Type     CardType    `json:"type"`
	Label    string      `json:"label"`
	Subtext  string      `json:"subtext,omitempty"`
	Price    string      `json:"price,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	Image    ImageSource `json:"image"`
	Initial  string      `json:"initial,omitempty"` // 画像がない場合に表示する頭文字
	Item     ContentItem `json:"-"`
}
