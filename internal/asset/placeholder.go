package asset

import (
	"hash/fnv"

	"github.com/hitoshi/musa/internal/model"
)

// palette は画像取得に失敗したときの塗りつぶし色。
var palette = []string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7"}

// PlaceholderColor はキーから擬似ランダムにパレットの色を選ぶ。
// 同じキーには常に同じ色を返す。
func PlaceholderColor(key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Placeholder はキーに対応する塗りつぶし色の画像ソースを返す。
func Placeholder(key string) model.ImageSource {
	return model.ImageSource{PlaceholderColor: PlaceholderColor(key)}
}

// FallbackIcon は汎用アイコンの画像ソースを返す。
func FallbackIcon() model.ImageSource {
	return model.ImageSource{FallbackIcon: true}
}
