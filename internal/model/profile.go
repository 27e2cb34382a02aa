package model

// ProfilePage はプロフィールエンドポイントの1ページ分のレスポンス。
// posts以外のフィールドはページに関係なく同じ値が返る。
type ProfilePage struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Username          string   `json:"username"`
	PublicEmail       string   `json:"publicEmail"`
	Phone             string   `json:"phone"`
	Type              string   `json:"type"`
	ProfilePictureURL string   `json:"profile_picture_url"`
	Bio               string   `json:"bio"`
	FollowersCount    int      `json:"followersCount"`
	FollowingCount    int      `json:"followingCount"`
	TotalPosts        int64    `json:"totalPosts"`
	IsFollowing       *bool    `json:"isFollowing"`
	Posts             []Record `json:"posts"`
}

// SessionProfile はログイン中または閲覧中のプロフィールのスナップショット。
// 読み込みのたびに丸ごと差し替え、部分更新はしない。
type SessionProfile struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Username       string        `json:"username"`
	Bio            string        `json:"bio"`
	ContactHTML    string        `json:"contact_html"` // サニタイズ済み
	PostsCount     int           `json:"posts_count"`
	FollowersCount int           `json:"followers_count"`
	FollowingCount int           `json:"following_count"`
	IsFollowing    bool          `json:"is_following"`
	AvatarURL      string        `json:"avatar_url,omitempty"`
	Avatar         ImageSource   `json:"avatar"`
	Posts          []ContentItem `json:"-"`
	PostCards      []Card        `json:"posts"`
	EmptyMessage   string        `json:"empty_message,omitempty"`
}
