package reqctx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "X-Real-IP": "10.0.0.2"}, "203.0.113.7"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 198.51.100.1 "}, "198.51.100.1"},
		{"real ip fallback", map[string]string{"X-Real-IP": "10.0.0.2"}, "10.0.0.2"},
		{"empty forwarded entry falls back", map[string]string{"X-Forwarded-For": ", 10.0.0.1", "X-Real-IP": "10.0.0.9"}, "10.0.0.9"},
		{"nothing", nil, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := ClientIP(h); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveIdentity(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "10.1.1.1")
	r.Header.Set("User-Agent", "curl/8")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sec := DeriveIdentity(r.Header, now)
	if sec.IP != "10.1.1.1" || sec.UserAgent != "curl/8" || !sec.Timestamp.Equal(now) {
		t.Errorf("DeriveIdentity = %+v", sec)
	}

	r.Header.Del("User-Agent")
	if got := DeriveIdentity(r.Header, now).UserAgent; got != Unknown {
		t.Errorf("UserAgent = %q, want %q", got, Unknown)
	}
}
