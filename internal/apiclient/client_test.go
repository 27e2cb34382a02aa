package apiclient

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/musa/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func staticToken(token string) TokenSource {
	return TokenFunc(func() string { return token })
}

type mockStatusRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (m *mockStatusRecorder) RecordUpstreamStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	return NewClient(server.Client(), server.URL, staticToken("tok-123"), newTestLogger(&buf), opts...), &buf
}

// TestClient_GetMyProfile はプロフィール取得のリクエストとレスポンス解釈を検証する。
func TestClient_GetMyProfile(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		if r.URL.Path != "/profile/me" {
			t.Errorf("パス = %s, want /profile/me", r.URL.Path)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %s, want 2", got)
		}
		if got := r.URL.Query().Get("size"); got != "12" {
			t.Errorf("size = %s, want 12", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"u1","name":"Ana","username":"ana","posts":[{"id":"p1"},{"id":"p2"}]}`))
	})

	profile, err := c.GetMyProfile(context.Background(), 2, 12)
	if err != nil {
		t.Fatalf("GetMyProfile returned error: %v", err)
	}
	if profile.Username != "ana" {
		t.Errorf("Username = %q, want ana", profile.Username)
	}
	if len(profile.Posts) != 2 {
		t.Errorf("Posts = %d, want 2", len(profile.Posts))
	}
}

// TestClient_GetPublicProfile はユーザー名をパスに含めることを検証する。
func TestClient_GetPublicProfile(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/maria" {
			t.Errorf("パス = %s, want /profile/maria", r.URL.Path)
		}
		w.Write([]byte(`{"username":"maria","isFollowing":false}`))
	})

	profile, err := c.GetPublicProfile(context.Background(), "maria", 0, 12)
	if err != nil {
		t.Fatalf("GetPublicProfile returned error: %v", err)
	}
	if profile.IsFollowing == nil || *profile.IsFollowing {
		t.Errorf("IsFollowing = %v, want false", profile.IsFollowing)
	}
}

// TestClient_GetProfile_Shape はオブジェクト以外のプロフィールをshapeエラーにすることを検証する。
func TestClient_GetProfile_Shape(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := c.GetMyProfile(context.Background(), 0, 12)
	if model.KindOf(err) != model.ErrorKindShape {
		t.Errorf("KindOf = %q, want shape (err=%v)", model.KindOf(err), err)
	}
}

// TestClient_GetMyProducts はSpringのページ形式から配列を取り出すことを検証する。
func TestClient_GetMyProducts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("パス = %s, want /products", r.URL.Path)
		}
		if r.URL.Query().Get("size") != "6" {
			t.Errorf("size = %s, want 6", r.URL.Query().Get("size"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"id":"a"},{"id":"b"}],"totalElements":8,"last":false}`))
	})

	records, err := c.GetMyProducts(context.Background(), 0, 6)
	if err != nil {
		t.Fatalf("GetMyProducts returned error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
}

// TestClient_GetProfileProducts はプロフィールIDを含むパスを検証する。
func TestClient_GetProfileProducts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/42/products" {
			t.Errorf("パス = %s, want /profile/42/products", r.URL.Path)
		}
		w.Write([]byte(`{"items":[{"id":"x"}]}`))
	})

	records, err := c.GetProfileProducts(context.Background(), "42", 1, 6)
	if err != nil {
		t.Fatalf("GetProfileProducts returned error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want 1", len(records))
	}
}

// TestClient_GetMyEvents はページングなしのリクエストと素の配列を検証する。
func TestClient_GetMyEvents(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/event/my" {
			t.Errorf("パス = %s, want /event/my", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("クエリ = %q, want 空", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"id":"e1"},{"id":"e2"},{"id":"e3"}]`))
	})

	records, err := c.GetMyEvents(context.Background())
	if err != nil {
		t.Fatalf("GetMyEvents returned error: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d, want 3", len(records))
	}
}

// TestClient_GetRecords_UnknownShape は未知の形を空配列として扱うことを検証する。
func TestClient_GetRecords_UnknownShape(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	})

	records, err := c.GetMyEvents(context.Background())
	if err != nil {
		t.Fatalf("未知の形はエラーにしない: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("records = %v, want 空配列", records)
	}
}

// TestClient_GetRecords_RSS はRSSレスポンスもRecordに変換することを検証する。
func TestClient_GetRecords_RSS(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><guid>g1</guid><title>Evento</title></item></channel></rss>`))
	})

	records, err := c.GetMyEvents(context.Background())
	if err != nil {
		t.Fatalf("GetMyEvents returned error: %v", err)
	}
	if len(records) != 1 || records[0]["id"] != "g1" {
		t.Errorf("records = %v", records)
	}
}

// TestClient_ErrorKinds はステータスコードごとのエラー種別を検証する。
func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		status   int
		wantKind model.ErrorKind
	}{
		{http.StatusUnauthorized, model.ErrorKindAuth},
		{http.StatusForbidden, model.ErrorKindAuth},
		{http.StatusNotFound, model.ErrorKindTransport},
		{http.StatusInternalServerError, model.ErrorKindTransport},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			rec := &mockStatusRecorder{}
			c, buf := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, WithStatusRecorder(rec))

			_, err := c.GetMyProducts(context.Background(), 0, 6)
			var fe *model.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *model.FetchError", err)
			}
			if fe.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", fe.Kind, tt.wantKind)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.status)
			}
			if len(rec.codes) != 1 || rec.codes[0] != tt.status {
				t.Errorf("記録されたステータス = %v", rec.codes)
			}
			if !strings.Contains(buf.String(), "エラーステータス") {
				t.Errorf("警告ログが出力されていない: %s", buf.String())
			}
		})
	}
}

// TestClient_NetworkError は通信失敗をtransportとして返すことを検証する。
func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	c := NewClient(nil, baseURL, nil, nil)
	_, err := c.GetMyEvents(context.Background())
	if model.KindOf(err) != model.ErrorKindTransport {
		t.Errorf("KindOf = %q, want transport", model.KindOf(err))
	}
}

// TestClient_FollowUnfollow はフォロー操作のメソッドとパスを検証する。
func TestClient_FollowUnfollow(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Follow(context.Background(), "joao"); err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	if err := c.Unfollow(context.Background(), "joao"); err != nil {
		t.Fatalf("Unfollow returned error: %v", err)
	}

	want := []string{"POST /profile/joao/follow", "DELETE /profile/joao/unfollow"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

// TestClient_NoTokenOmitsHeader はトークンが空ならAuthorizationヘッダーを送らないことを検証する。
func TestClient_NoTokenOmitsHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("トークンが空なのにAuthorizationヘッダーが送られた")
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL, staticToken(""), nil)
	if _, err := c.GetMyEvents(context.Background()); err != nil {
		t.Fatalf("GetMyEvents returned error: %v", err)
	}
}

// TestClient_TokenReadPerRequest はトークンをリクエストごとに読むことを検証する。
func TestClient_TokenReadPerRequest(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	token := "first"
	c := NewClient(server.Client(), server.URL, TokenFunc(func() string { return token }), nil)
	c.GetMyEvents(context.Background())
	token = "second"
	c.GetMyEvents(context.Background())

	if len(got) != 2 || got[0] != "Bearer first" || got[1] != "Bearer second" {
		t.Errorf("Authorization = %v", got)
	}
}

// TestClient_RateLimitCancelled はレート制限待ちでコンテキストが切れた場合にエラーを返すことを検証する。
func TestClient_RateLimitCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, WithRateLimit(0.001, 1))

	if _, err := c.GetMyEvents(context.Background()); err != nil {
		t.Fatalf("最初のリクエストはバースト内: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.GetMyEvents(ctx)
	if model.KindOf(err) != model.ErrorKindTransport || err == nil {
		t.Errorf("レート制限待ちの失敗は transport: %v", err)
	}
}

// TestClassifyStatus はステータス分類を検証する。
func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want model.ErrorKind
	}{
		{200, ""},
		{204, ""},
		{299, ""},
		{301, model.ErrorKindTransport},
		{400, model.ErrorKindTransport},
		{401, model.ErrorKindAuth},
		{403, model.ErrorKindAuth},
		{404, model.ErrorKindTransport},
		{429, model.ErrorKindTransport},
		{503, model.ErrorKindTransport},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.code); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
