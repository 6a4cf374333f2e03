package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := c.Set(ctx, "k", payload{Name: "algebra", Count: 3}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got payload
	if err := c.Get(ctx, "k", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "algebra" || got.Count != 3 {
		t.Fatalf("got %+v", got)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := c.Get(ctx, "k", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("want ErrMiss, got %v", err)
	}
}

func TestMemoryDeletePattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	_ = c.Set(ctx, "quiz:a", 1, 0)
	_ = c.Set(ctx, "quiz:b", 2, 0)
	_ = c.Set(ctx, "stats:a", 3, 0)

	if err := c.DeletePattern(ctx, "quiz:*"); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := c.Get(ctx, "quiz:a", &n); !errors.Is(err, ErrMiss) {
		t.Fatalf("quiz:a should be gone, got %v", err)
	}
	if err := c.Get(ctx, "stats:a", &n); err != nil {
		t.Fatalf("stats:a should survive: %v", err)
	}
}

func TestGetOrSetComputesOnce(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := GetOrSet(ctx, c, "answer", time.Minute, fn)
		if err != nil {
			t.Fatal(err)
		}
		if v != 42 {
			t.Fatalf("got %d", v)
		}
	}
	if calls != 1 {
		t.Fatalf("fn called %d times", calls)
	}
}

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter()
	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "login:1.2.3.4", 5, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, _ := l.Allow(ctx, "login:1.2.3.4", 5, time.Minute)
	if ok {
		t.Fatal("sixth hit should be denied")
	}
	// Other keys are unaffected.
	if ok, _ := l.Allow(ctx, "login:5.6.7.8", 5, time.Minute); !ok {
		t.Fatal("different ip should pass")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewMemoryLimiter()
	h := RateLimit(l, "login", 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("hit %d: code %d", i, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("code %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}
