package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(100, 15*time.Minute, 3)
	l.now = func() time.Time { return now }

	e := echo.New()
	handler := l.Middleware()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	call := func(ip string) error {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	for i := 0; i < 3; i++ {
		if err := call("10.0.0.1"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}

	err := call("10.0.0.1")
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}

	if err := call("10.0.0.2"); err != nil {
		t.Fatalf("other clients must not be limited: %v", err)
	}

	now = now.Add(time.Minute)
	if err := call("10.0.0.1"); err != nil {
		t.Fatalf("bucket should refill over time: %v", err)
	}
}

func trackedClients(l *RateLimiter) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func TestRateLimiter_RetryAfterFollowsRefill(t *testing.T) {
	for name, tc := range map[string]struct {
		requests int
		window   time.Duration
		want     string
	}{
		"one per minute":   {requests: 1, window: time.Minute, want: "60"},
		"sixty per minute": {requests: 60, window: time.Minute, want: "1"},
		"hundred per 15m":  {requests: 100, window: 15 * time.Minute, want: "9"},
	} {
		t.Run(name, func(t *testing.T) {
			now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			l := NewRateLimiter(tc.requests, tc.window, 1)
			l.now = func() time.Time { return now }

			e := echo.New()
			handler := l.Middleware()(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			call := func() (*httptest.ResponseRecorder, error) {
				req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
				req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
				rec := httptest.NewRecorder()
				return rec, handler(e.NewContext(req, rec))
			}

			if _, err := call(); err != nil {
				t.Fatalf("first request: %v", err)
			}
			rec, err := call()
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %v", err)
			}
			if got := rec.Header().Get("Retry-After"); got != tc.want {
				t.Fatalf("Retry-After = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimiter_RejectionDoesNotConsume(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(60, time.Minute, 1)
	l.now = func() time.Time { return now }

	if ok, _ := l.allow("10.0.0.1"); !ok {
		t.Fatal("first request should pass")
	}
	for i := 0; i < 5; i++ {
		if ok, wait := l.allow("10.0.0.1"); ok || wait != time.Second {
			t.Fatalf("attempt %d: ok=%v wait=%s", i, ok, wait)
		}
	}

	now = now.Add(time.Second)
	if ok, _ := l.allow("10.0.0.1"); !ok {
		t.Fatal("rejected attempts must not push back the refill")
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(10, time.Minute, 1)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")
	if n := trackedClients(l); n != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.3")
	if n := trackedClients(l); n != 1 {
		t.Fatalf("idle clients should be evicted, got %d", n)
	}
}
