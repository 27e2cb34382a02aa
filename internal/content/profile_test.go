package content

import (
	"errors"
	"testing"
)

// TestDecodeProfile はプロフィールレスポンスの解釈を検証する。
func TestDecodeProfile(t *testing.T) {
	raw := []byte(`{
		"id": 7,
		"name": "Ateliê Sol",
		"username": "atelie",
		"publicEmail": "sol@musa.br",
		"phone": "11 9999-0000",
		"profile_picture_url": "/uploads/sol.png",
		"bio": "Arte local",
		"followersCount": 10,
		"followingCount": 3,
		"totalPosts": 25,
		"isFollowing": true,
		"posts": [{"id":"p1","description":"oi"}, 5]
	}`)

	page, err := DecodeProfile(raw)
	if err != nil {
		t.Fatalf("DecodeProfile returned error: %v", err)
	}
	if page.ID != "7" {
		t.Errorf("ID = %q, want 7", page.ID)
	}
	if page.Username != "atelie" || page.Name != "Ateliê Sol" {
		t.Errorf("Name/Username = %q/%q", page.Name, page.Username)
	}
	if page.FollowersCount != 10 || page.FollowingCount != 3 || page.TotalPosts != 25 {
		t.Errorf("counts = %d/%d/%d", page.FollowersCount, page.FollowingCount, page.TotalPosts)
	}
	if page.IsFollowing == nil || !*page.IsFollowing {
		t.Errorf("IsFollowing = %v, want true", page.IsFollowing)
	}
	if len(page.Posts) != 1 {
		t.Errorf("Posts = %d, want 1（オブジェクト以外は読み飛ばす）", len(page.Posts))
	}
}

// TestDecodeProfile_WrappedPosts はページ形式で包まれたpostsも受け付けることを検証する。
func TestDecodeProfile_WrappedPosts(t *testing.T) {
	page, err := DecodeProfile([]byte(`{"username":"u","posts":{"content":[{"id":"a"},{"id":"b"}]}}`))
	if err != nil {
		t.Fatalf("DecodeProfile returned error: %v", err)
	}
	if len(page.Posts) != 2 {
		t.Errorf("Posts = %d, want 2", len(page.Posts))
	}
	if page.IsFollowing != nil {
		t.Errorf("isFollowing がない場合は nil: %v", *page.IsFollowing)
	}
}

// TestDecodeProfile_MissingPosts はpostsがなくても空配列になることを検証する。
func TestDecodeProfile_MissingPosts(t *testing.T) {
	page, err := DecodeProfile([]byte(`{"username":"u"}`))
	if err != nil {
		t.Fatalf("DecodeProfile returned error: %v", err)
	}
	if page.Posts == nil || len(page.Posts) != 0 {
		t.Errorf("Posts = %v, want 空配列", page.Posts)
	}
}

// TestDecodeProfile_NotObject はオブジェクト以外をエラーにすることを検証する。
func TestDecodeProfile_NotObject(t *testing.T) {
	for _, raw := range []string{"", "[]", "null", `"x"`} {
		if _, err := DecodeProfile([]byte(raw)); !errors.Is(err, ErrNotObject) {
			t.Errorf("DecodeProfile(%q) err = %v, want ErrNotObject", raw, err)
		}
	}
	if _, err := DecodeProfile([]byte(`{"username":`)); err == nil {
		t.Error("壊れたJSONはエラーになるべき")
	}
}
