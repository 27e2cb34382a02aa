package content

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hitoshi/musa/internal/model"
)

// defaultLabel はタイトル系フィールドがすべて空のときの表示名。
const defaultLabel = "Item"

// フィールド名の揺れを吸収するための候補キー（優先順）。
var (
	labelKeys       = []string{"title", "name", "productName", "eventName"}
	descriptionKeys = []string{"description", "details", "summary", "shortDescription"}
	priceKeys       = []string{"price", "value", "cost"}
	imageKeys       = []string{"imageUrl", "imgLink", "image", "coverImage"}
	eventDateKeys   = []string{"date", "eventTime", "data"}
	createdAtKeys   = []string{"createdAt", "created_at"}
)

// timeLayouts はバックエンドが返しうる日時表現。
// JavaのLocalDateTimeはタイムゾーンなしで返るため末尾3つで受ける。
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ToItem は生のRecordを指定コレクションのContentItemに変換する。
func ToItem(kind model.Kind, rec model.Record) model.ContentItem {
	item := model.ContentItem{
		ID:          stringField(rec, "id"),
		Kind:        kind,
		Label:       Label(rec),
		Description: PlainText(stringField(rec, descriptionKeys...)),
		ImagePath:   strings.TrimSpace(stringField(rec, imageKeys...)),
		CreatedAt:   ParseTime(stringField(rec, createdAtKeys...)),
	}

	if kind == model.KindPosts && item.Label == defaultLabel && item.Description != "" {
		item.Label = item.Description
	}

	item.Price, item.PriceValue = Price(rec)

	if date := stringField(rec, eventDateKeys...); date != "" {
		item.EventDate = date
		item.EventTime = ParseTime(date)
	}

	return item
}

// ToItems はRecordのスライスをContentItemのスライスに変換する。
func ToItems(kind model.Kind, records []model.Record) []model.ContentItem {
	items := make([]model.ContentItem, 0, len(records))
	for _, rec := range records {
		items = append(items, ToItem(kind, rec))
	}
	return items
}

// Label はtitle、name、productName、eventNameの順に表示名を返す。
func Label(rec model.Record) string {
	if v := stringField(rec, labelKeys...); v != "" {
		return v
	}
	return defaultLabel
}

// Price はprice、value、costの順に金額を探し、表示用文字列と数値を返す。
// 数値として解釈できない場合は生の文字列を表示用として返す。
func Price(rec model.Record) (string, *float64) {
	for _, key := range priceKeys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}

		raw := scalarString(v)
		if raw == "" {
			return "", nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return raw, nil
		}
		return FormatBRL(f), &f
	}
	return "", nil
}

// FormatBRL は金額をブラジルレアル表記（例: R$ 1.234,50）に整形する。
func FormatBRL(v float64) string {
	p := message.NewPrinter(language.BrazilianPortuguese)
	return p.Sprintf("R$ %.2f", v)
}

// ParseTime は既知のレイアウトで日時文字列を解釈する。解釈できなければnilを返す。
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// NewCard はアイテムから描画用カードを組み立てる。画像関連のフィールドは呼び出し側で埋める。
// 投稿は投稿カード、日付を持つアイテムはイベントカード、それ以外は商品カードになる。
func NewCard(item model.ContentItem) model.Card {
	card := model.Card{
		ID:    item.ID,
		Label: item.Label,
		Price: item.Price,
		Item:  item,
	}

	switch {
	case item.Kind == model.KindPosts:
		card.Type = model.CardTypePost
		card.Subtext = item.Description
	case item.EventDate != "":
		card.Type = model.CardTypeEvent
		if item.EventTime != nil {
			card.Subtext = item.EventTime.Format("02/01/2006")
		} else {
			card.Subtext = item.EventDate
		}
	default:
		card.Type = model.CardTypeProduct
		card.Subtext = item.Description
	}

	if r, _ := utf8.DecodeRuneInString(item.Label); r != utf8.RuneError {
		card.Initial = strings.ToUpper(string(r))
	} else {
		card.Initial = "?"
	}

	return card
}

// stringField はkeysの順に最初の空でない値を文字列で返す。
func stringField(rec model.Record, keys ...string) string {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(scalarString(v)); s != "" {
			return s
		}
	}
	return ""
}

// scalarString はJSONのスカラー値を文字列に変換する。オブジェクトや配列は空文字を返す。
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
