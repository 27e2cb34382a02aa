package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient(t *testing.T) {
	client := NewSSRFGuard().NewSafeClient(5*time.Second, 5*1024*1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("expected custom Transport")
	}
}

// TestNewSafeClientBlocksLoopback はhttptestサーバー（127.0.0.1）への接続がブロックされることを検証する。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5*time.Second, 1024)
	if _, err := client.Get(ts.URL + "/uploads/a.png"); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"公開https", "https://cdn.musa.test/uploads/a.png", false},
		{"公開http", "http://cdn.musa.test/a.png", false},
		{"公開IP", "https://93.184.216.34/a.png", false},
		{"空", "", true},
		{"ftp", "ftp://cdn.musa.test/a.png", true},
		{"ホストなし", "https:///a.png", true},
		{"プライベート10", "http://10.1.2.3/a.png", true},
		{"プライベート172", "http://172.16.0.1/a.png", true},
		{"プライベート192", "http://192.168.1.1/a.png", true},
		{"ループバック", "http://127.0.0.1:8080/a.png", true},
		{"メタデータ", "http://169.254.169.254/latest/meta-data", true},
		{"IPv6ループバック", "http://[::1]/a.png", true},
		{"ゼロアドレス", "http://0.0.0.0/a.png", true},
		{"CGNAT", "http://100.64.0.1/a.png", true},
		{"IPv4射影IPv6", "http://[::ffff:127.0.0.1]/a.png", true},
		{"大文字スキーム", "HTTPS://cdn.musa.test/a.png", false},
		{"localhost", "http://localhost/a.png", true},
		{"サブドメインlocalhost", "http://img.localhost/a.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestWithAllowedPorts(t *testing.T) {
	g := NewSSRFGuard(WithAllowedPorts(8443))
	if len(g.ports) != 1 || g.ports[0] != 8443 {
		t.Errorf("ports = %v, want [8443]", g.ports)
	}
	if d := NewSSRFGuard(WithAllowedPorts()); len(d.ports) != 2 {
		t.Errorf("空指定では既定ポートのまま: %v", d.ports)
	}
}

func TestWithAllowedHosts(t *testing.T) {
	guard := NewSSRFGuard(WithAllowedHosts(" CDN.musa.test ", "", "s3.example.com."))

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://cdn.musa.test/a.png", false},
		{"https://img.cdn.musa.test/a.png", false},
		{"https://s3.example.com/bucket/a.png", false},
		{"https://evilcdn.musa.test/a.png", true},
		{"https://other.test/a.png", true},
		{"http://10.0.0.1/a.png", true},
	}
	for _, tt := range tests {
		err := guard.ValidateURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}

	if err := guard.ValidateURL("https://other.test/a.png"); !errors.Is(err, ErrHostNotAllowed) {
		t.Errorf("err = %v, want ErrHostNotAllowed", err)
	}
}
