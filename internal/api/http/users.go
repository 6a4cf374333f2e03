package http

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/quizmaster-app/quizmaster/internal/auth/middleware"
)

type userRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

// ListUsersHandler is admin-only; supports ?q= name/email search and ?role=.
func ListUsersHandler(dbh *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		limit, offset := pageOpts(r)
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		role := r.URL.Query().Get("role")

		sqlStr := `SELECT id,name,email,role,created_at FROM users WHERE 1=1`
		var args []any
		arg := func(v any) string {
			args = append(args, v)
			return "$" + strconv.Itoa(len(args))
		}
		if q != "" {
			p := "%" + strings.ToLower(q) + "%"
			sqlStr += ` AND (lower(name) LIKE ` + arg(p) + ` OR lower(email) LIKE ` + arg(p) + `)`
		}
		if role != "" {
			sqlStr += ` AND role=` + arg(role)
		}
		sqlStr += ` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

		rows, err := dbh.QueryContext(r.Context(), sqlStr, args...)
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
				nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, nethttp.StatusOK, out)
	}
}

// UpdateUserRoleHandler promotes or demotes a user. Admins cannot change
// their own role.
func UpdateUserRoleHandler(dbh *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "userID")
		if id == authmw.SubjectFromContext(r.Context()) {
			nethttp.Error(w, "cannot change own role", nethttp.StatusConflict)
			return
		}
		var req struct {
			Role string `json:"role" validate:"required,oneof=student admin"`
		}
		if err := decodeValid(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		res, err := dbh.ExecContext(r.Context(), `UPDATE users SET role=$1 WHERE id=$2`, req.Role, id)
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			nethttp.Error(w, "not found", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]string{"id": id, "role": req.Role})
	}
}

// DeleteUserHandler removes a user and, through FK cascade, their attempts.
func DeleteUserHandler(dbh *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := chi.URLParam(r, "userID")
		if id == authmw.SubjectFromContext(r.Context()) {
			nethttp.Error(w, "cannot delete self", nethttp.StatusConflict)
			return
		}
		res, err := dbh.ExecContext(r.Context(), `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			nethttp.Error(w, "not found", nethttp.StatusNotFound)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// MeHandler returns the caller's profile.
func MeHandler(dbh *sql.DB) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var u userRow
		err := dbh.QueryRowContext(r.Context(),
			`SELECT id,name,email,role,created_at FROM users WHERE id=$1`,
			authmw.SubjectFromContext(r.Context())).
			Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			nethttp.Error(w, "not found", nethttp.StatusNotFound)
			return
		}
		if err != nil {
			nethttp.Error(w, "db error", nethttp.StatusInternalServerError)
			return
		}
		writeJSON(w, nethttp.StatusOK, u)
	}
}
