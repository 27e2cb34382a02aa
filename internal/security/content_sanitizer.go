// Package security はプロフィール表示と画像取得のためのセキュリティ機能を提供する。
//
// ContactSanitizer はプロフィールの連絡先ブロック（bio・公開メール・電話番号を
// <br>で連結したHTML）をサニタイズする。bluemondayの許可リストで、
// 改行と簡単な強調、http(s)/mailto/telのリンクだけを通す。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContactSanitizer は連絡先HTMLのサニタイズ機能のインターフェース。
type ContactSanitizer interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContactSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は連絡先ブロック用のサニタイザーを生成する。
//   - 許可タグ: br, p, strong, em, b, i, a
//   - aのhref: http, https, mailto, tel のみ。target="_blank" と rel="noopener noreferrer" を付与
//   - 画像・スクリプト・スタイル・on*属性はすべて除去
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("br", "p", "strong", "em", "b", "i")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

var _ ContactSanitizer = (*contentSanitizer)(nil)
