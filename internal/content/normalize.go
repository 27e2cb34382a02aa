// Package content はコンテンツAPIのレスポンスを共通のアイテム形式に正規化する。
// バックエンドはエンドポイントごとに配列そのもの、content/items/dataでの包み、
// RSS/Atomなど異なる形を返すため、呼び出し側はここを通して形の違いを吸収する。
package content

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/musa/internal/model"
)

// wrapperKeys はラッパーオブジェクトから配列を探すキーの優先順位。
var wrapperKeys = []string{"content", "items", "data"}

// feedContentTypes はフィードとして解析するContent-Type。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// xmlContentTypes はボディを見てフィードかどうか判定するContent-Type。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// Normalize はJSONレスポンスからアイテムの配列を取り出す。
// 配列ならそのまま、オブジェクトならcontent、items、dataの順に最初の配列を返す。
// 不正なJSONや未知の形は空配列として扱い、エラーは返さない。
// 要素はRecordとして扱うため、オブジェクト以外の配列要素（数値、文字列、null）は
// 読み飛ばす。そのため [1,"a",{"id":1}] は1件になり、配列は要素の順序だけを保つ。
func Normalize(raw []byte) []model.Record {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []model.Record{}
	}

	switch raw[0] {
	case '[':
		if records, ok := decodeArray(raw); ok {
			return records
		}
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return []model.Record{}
		}
		for _, key := range wrapperKeys {
			v, ok := envelope[key]
			if !ok {
				continue
			}
			if records, ok := decodeArray(v); ok {
				return records
			}
		}
	}

	return []model.Record{}
}

// NormalizeResponse はContent-Typeに応じてJSONまたはRSS/Atomとしてレスポンスを正規化する。
func NormalizeResponse(contentType string, body []byte) []model.Record {
	if isFeed(contentType, body) {
		return normalizeFeed(body)
	}
	return Normalize(body)
}

// decodeArray はJSON配列をRecordのスライスにデコードする。
// 配列でない場合はok=falseを返す。
func decodeArray(raw json.RawMessage) ([]model.Record, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}

	records := make([]model.Record, 0, len(elems))
	for _, elem := range elems {
		dec := json.NewDecoder(bytes.NewReader(elem))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil || rec == nil {
			continue
		}
		records = append(records, model.Record(rec))
	}
	return records, true
}

// isFeed はレスポンスがRSS/Atomフィードかどうかを判定する。
func isFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, ct := range feedContentTypes {
		if mediaType == ct {
			return true
		}
	}
	for _, ct := range xmlContentTypes {
		if mediaType == ct {
			head := strings.ToLower(string(body[:min(len(body), 512)]))
			return strings.Contains(head, "<rss") || strings.Contains(head, "<feed")
		}
	}
	return false
}

// normalizeFeed はRSS/Atomの各エントリをRecordに変換する。
// 解析できないフィードは空配列として扱う。
func normalizeFeed(body []byte) []model.Record {
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil || parsed == nil {
		return []model.Record{}
	}

	records := make([]model.Record, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		rec := model.Record{
			"title":       item.Title,
			"description": item.Description,
		}

		switch {
		case item.GUID != "":
			rec["id"] = item.GUID
		case item.Link != "":
			rec["id"] = item.Link
		}

		if item.PublishedParsed != nil {
			rec["createdAt"] = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			rec["createdAt"] = item.UpdatedParsed.UTC().Format(time.RFC3339)
		}

		if item.Image != nil && item.Image.URL != "" {
			rec["imageUrl"] = item.Image.URL
		} else {
			for _, enc := range item.Enclosures {
				if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
					rec["imageUrl"] = enc.URL
					break
				}
			}
		}

		records = append(records, rec)
	}
	return records
}
