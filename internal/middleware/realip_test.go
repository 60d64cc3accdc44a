package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("172.16.0.0/12")}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{name: "no proxies configured", remote: "192.0.2.7:5555", xff: "203.0.113.9", realIP: "198.51.100.4", want: "192.0.2.7"},
		{name: "untrusted peer", trusted: proxies, remote: "192.0.2.7:5555", xff: "203.0.113.9", want: "192.0.2.7"},
		{name: "trusted peer", trusted: proxies, remote: "10.0.0.5:5555", xff: "203.0.113.9", want: "203.0.113.9"},
		{name: "spoofed leftmost hop", trusted: proxies, remote: "10.0.0.5:5555", xff: "1.2.3.4, 203.0.113.9, 172.16.0.2", want: "203.0.113.9"},
		{name: "real ip fallback", trusted: proxies, remote: "10.0.0.5:5555", realIP: "198.51.100.4", want: "198.51.100.4"},
		{name: "garbage header", trusted: proxies, remote: "10.0.0.5:5555", xff: "not-an-ip", want: "10.0.0.5"},
		{name: "no port", remote: "192.0.2.8", want: "192.0.2.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIP(tt.trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = RequestClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestClientIPWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	assert.Equal(t, "192.0.2.7", RequestClientIP(req))
}
