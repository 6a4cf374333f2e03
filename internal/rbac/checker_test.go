package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "quiz:view", true},
		{"student", "attempt:create", true},
		{"student", "quiz:manage", false},
		{"student", "user:manage", false},
		{"student", "report:export", false},
		{"admin", "quiz:manage", true},
		{"admin", "user:manage", true},
		{"admin", "anything:at-all", true},
		{"", "quiz:view", false},
		{"unknown", "quiz:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q,%q)=%v want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestPrefixWildcard(t *testing.T) {
	c := NewChecker(map[string][]string{"grader": {"attempt:*"}})
	if !c.Has("grader", "attempt:submit") {
		t.Fatal("prefix wildcard should match")
	}
	if c.Has("grader", "quiz:view") {
		t.Fatal("prefix wildcard matched other namespace")
	}
}

func TestRequireMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	run := func(role, perm string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req = req.WithContext(WithRole(context.Background(), role))
		}
		rec := httptest.NewRecorder()
		Require(perm)(ok).ServeHTTP(rec, req)
		return rec.Code
	}

	if code := run("admin", "user:manage"); code != http.StatusOK {
		t.Fatalf("admin: %d", code)
	}
	if code := run("student", "user:manage"); code != http.StatusForbidden {
		t.Fatalf("student: %d", code)
	}
	if code := run("", "quiz:view"); code != http.StatusForbidden {
		t.Fatalf("no role: %d", code)
	}
}
