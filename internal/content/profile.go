package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/hitoshi/musa/internal/model"
)

// ErrNotObject はプロフィールレスポンスがJSONオブジェクトでない場合のエラー。
var ErrNotObject = errors.New("response is not a JSON object")

// DecodeProfile はプロフィールエンドポイントのレスポンスを解釈する。
// IDが数値で返る場合やpostsがページ形式で包まれている場合も受け付ける。
func DecodeProfile(raw []byte) (*model.ProfilePage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec model.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}

	page := &model.ProfilePage{
		ID:                stringField(rec, "id"),
		Name:              stringField(rec, "name"),
		Username:          stringField(rec, "username"),
		PublicEmail:       stringField(rec, "publicEmail"),
		Phone:             stringField(rec, "phone"),
		Type:              stringField(rec, "type"),
		ProfilePictureURL: stringField(rec, "profile_picture_url", "profilePictureUrl"),
		Bio:               stringField(rec, "bio"),
		FollowersCount:    intField(rec, "followersCount"),
		FollowingCount:    intField(rec, "followingCount"),
		TotalPosts:        int64(intField(rec, "totalPosts")),
		Posts:             []model.Record{},
	}

	if v, ok := rec["isFollowing"].(bool); ok {
		page.IsFollowing = &v
	}
	if posts, ok := fields["posts"]; ok {
		page.Posts = Normalize(posts)
	}

	return page, nil
}

// intField はkeysの順に最初の数値を返す。見つからなければ0を返す。
func intField(rec model.Record, keys ...string) int {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if n, err := strconv.ParseFloat(scalarString(v), 64); err == nil {
			return int(n)
		}
	}
	return 0
}
