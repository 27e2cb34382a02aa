// Package asset はバックエンドが返す画像パスの解決と、
// Bearerトークンが必要な画像の取得・ローカルハンドル化を提供する。
package asset

import "strings"

// imagesPath はファイル名だけが返された場合に補うパス。
const imagesPath = "/images/"

// Resolve は画像参照を取得可能な絶対URLに変換する。
// 判定は次の順で行う:
//   - 空なら空を返す（呼び出し側が代替表示にする）
//   - httpで始まればそのまま返す
//   - /で始まればベースURLと連結する
//   - それ以外はファイル名とみなし {base}/images/ を前置する
func Resolve(raw, baseURL string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http") {
		return p
	}

	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(p, "/") {
		return base + p
	}
	return base + imagesPath + p
}

// Resolver はベースURLを保持してResolveを呼び出す。
type Resolver struct {
	baseURL string
}

// NewResolver はResolverを生成する。
func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: baseURL}
}

// Resolve は画像参照を絶対URLに変換する。
func (r *Resolver) Resolve(raw string) string {
	return Resolve(raw, r.baseURL)
}
