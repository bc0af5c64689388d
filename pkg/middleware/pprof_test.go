package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIPAllowlist(t *testing.T) {
	allow := IPAllowlist([]string{"10.0.0.0/8", "192.168.1.7", "fd00::/8", "not-a-cidr", ""}, discardLogger())
	handler := allow(okHandler())

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:5000", http.StatusOK},
		{"192.168.1.7:80", http.StatusOK},
		{"192.168.1.8:80", http.StatusForbidden},
		{"[fd00::1]:443", http.StatusOK},
		{"[::ffff:10.0.0.9]:443", http.StatusOK},
		{"10.2.2.2", http.StatusOK},
		{"8.8.8.8:53", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			req.RemoteAddr = tt.remote
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestIPAllowlist_DeniedUsesErrorEnvelope(t *testing.T) {
	handler := IPAllowlist(nil, discardLogger())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "ACCESS_DENIED", errorCode(t, rr))
}

func TestRegisterPprof(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, discardLogger())

	tests := []struct {
		path   string
		remote string
		want   int
	}{
		{"/debug/pprof/", "127.0.0.1:1", http.StatusOK},
		{"/debug/pprof/cmdline", "127.0.0.1:1", http.StatusOK},
		{"/debug/pprof/heap", "127.0.0.1:1", http.StatusOK},
		{"/debug/pprof/goroutine", "127.0.0.1:1", http.StatusOK},
		{"/debug/pprof/heap", "203.0.113.5:1", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.path+" from "+tt.remote, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.RemoteAddr = tt.remote
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}
