package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000, https://musa.test/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, origin := range []string{"http://localhost:3000", "https://musa.test"} {
		req := httptest.NewRequest(http.MethodGet, "/api/views/v-1/collections/posts", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}

		tests := []struct {
			header string
			want   string
		}{
			{"Access-Control-Allow-Origin", origin},
			{"Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS"},
			{"Access-Control-Allow-Headers", "Content-Type"},
			{"Access-Control-Max-Age", "86400"},
			{"Vary", "Origin"},
		}
		for _, tt := range tests {
			if got := w.Header().Get(tt.header); got != tt.want {
				t.Errorf("%s: %s = %q, want %q", origin, tt.header, got, tt.want)
			}
		}
	}
}

func TestCORSMiddleware_UnknownOriginGetsNoHeaders(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, origin := range []string{"https://evil.test", ""} {
		req := httptest.NewRequest(http.MethodGet, "/api/profile/me", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("origin %q: Access-Control-Allow-Origin = %q, want empty", origin, got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("origin %q: status = %d", origin, w.Code)
		}
	}
}

func TestCORSMiddleware_WildcardIsIgnored(t *testing.T) {
	handler := NewCORSMiddleware("*")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://any.test")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestCORSMiddleware_PreflightReturns204(t *testing.T) {
	called := false
	handler := NewCORSMiddleware("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/views", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("プリフライトで後続ハンドラーが呼ばれた")
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/blobs/x", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Content-Security-Policy"); got != apiCSP {
		t.Errorf("Content-Security-Policy = %q", got)
	}
	if got := w.Header().Get("Cross-Origin-Resource-Policy"); got != "same-site" {
		t.Errorf("Cross-Origin-Resource-Policy = %q", got)
	}
}
