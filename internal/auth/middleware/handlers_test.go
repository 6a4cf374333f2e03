package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	nethttp "net/http"
	"net/http/httptest"

	"github.com/google/uuid"

	"github.com/quizmaster-app/quizmaster/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func post(t *testing.T, h nethttp.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(nethttp.MethodPost, path, bytes.NewReader(b))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	conn := testDB(t)
	svc := NewAuthService("test-secret")
	register := RegisterHandler(conn)
	login := LoginHandler(conn, svc)

	rec := post(t, register, "/auth/register", map[string]string{
		"name": "Asha", "email": "Asha@Example.com", "password": "hunter22",
	})
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	var created userInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Role != "student" || created.Email != "asha@example.com" {
		t.Fatalf("created %+v", created)
	}

	// Duplicate email, case-insensitively.
	rec = post(t, register, "/auth/register", map[string]string{
		"name": "Asha Again", "email": "asha@example.com", "password": "hunter22",
	})
	if rec.Code != nethttp.StatusConflict {
		t.Fatalf("duplicate: %d", rec.Code)
	}

	rec = post(t, login, "/auth/login", map[string]string{
		"email": "asha@example.com", "password": "hunter22",
	})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body)
	}
	var resp struct {
		AccessToken string   `json:"access_token"`
		User        userInfo `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Parse(resp.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Sub != created.ID || claims.Role != "student" {
		t.Fatalf("claims %+v", claims)
	}

	rec = post(t, login, "/auth/login", map[string]string{
		"email": "asha@example.com", "password": "wrong",
	})
	if rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("bad password: %d", rec.Code)
	}
	rec = post(t, login, "/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "whatever",
	})
	if rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("unknown user: %d", rec.Code)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := EnsureAdmin(ctx, conn, "admin@example.com", "$2y$12$hash"); err != nil {
			t.Fatal(err)
		}
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM users WHERE role='admin'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("admins: %d", n)
	}
}
