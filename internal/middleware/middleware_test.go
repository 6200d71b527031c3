package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestTokenBucketPerSecond(t *testing.T) {
	now := time.Unix(1000, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	h := Limit(tb, ok)
	codes := make([]int, 0, 4)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	now = now.Add(time.Second)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	codes = append(codes, rec.Code)
	want := []int{204, 204, 429, 204}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes %v want %v", codes, want)
		}
	}
}

func TestAllowlist(t *testing.T) {
	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewAllowlist(l, true, []string{"10.0.0.7", "nonsense"}, []string{"192.168.1.0/24", "bad/99"})
	h := a.Wrap(ok)
	cases := map[string]int{
		"10.0.0.7:5555":     http.StatusNoContent,
		"192.168.1.44:1234": http.StatusNoContent,
		"192.168.2.1:1234":  http.StatusForbidden,
		"[::1]:80":          http.StatusForbidden,
	}
	for addr, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/trees", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("%s: got %d want %d", addr, rec.Code, want)
		}
	}
	a.realIPHeader = "X-Forwarded-For"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "172.16.0.1:80"
	req.Header.Set("X-Forwarded-For", "junk, 192.168.1.9")
	rec := httptest.NewRecorder()
	a.Wrap(ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("real ip header: got %d", rec.Code)
	}
}

func TestAllowlistDisabledPassesThrough(t *testing.T) {
	t.Setenv("ALLOW_ENABLE", "")
	h := AllowlistFromEnv(slog.New(slog.NewTextHandler(io.Discard, nil))).Wrap(ok)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "8.8.8.8:1"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("got %d", rec.Code)
	}
}
