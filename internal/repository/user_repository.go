package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/reviewlens/reviewlens/internal/model"
)

// userColumns is the select list shared by every user query.
const userColumns = "id,username,email,password_hash,role,is_active,api_key,created_at,last_login"

// UserRepo persists user records in the `users` table.  Uniqueness of
// username, email and api_key is enforced by unique indexes, so two
// concurrent inserts of the same username cannot both succeed.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID.  Duplicate-key violations are
// translated to the sentinel matching the offending index.
func (r *UserRepo) Create(ctx context.Context, u model.User) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, role, is_active, api_key) VALUES (?,?,?,?,?,?)",
		strings.ToLower(strings.TrimSpace(u.Username)),
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.PasswordHash, u.Role, u.IsActive, nullString(u.APIKey))
	if err != nil {
		return 0, dupKeyErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr(err)
	}
	return uint64(id), nil
}

// FindByIdentifier fetches a user whose username OR email equals the
// given identifier, compared case-insensitively.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? OR email=? LIMIT 1",
		identifier, identifier)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// FindByAPIKey fetches the user owning the given API key.
func (r *UserRepo) FindByAPIKey(ctx context.Context, key string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE api_key=? LIMIT 1", key)
	return scanUser(row)
}

// UpdateLastLogin records the time of a successful login.
func (r *UserRepo) UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login=? WHERE id=?", at.UTC(), id)
	return mapErr(err)
}

// UpdatePasswordHash replaces the stored password hash.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
	return mapErr(err)
}

// UpdateAPIKey replaces the user's API key; the previous key stops
// authenticating the moment this commits.  An empty key clears the column.
func (r *UserRepo) UpdateAPIKey(ctx context.Context, id uint64, key string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET api_key=? WHERE id=?", nullString(key), id)
	return dupKeyErr(err)
}

// SetActive toggles whether the account may authenticate.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=? WHERE id=?", active, id)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL also reports 0 when the value did not change; confirm
		// the row exists before reporting a missing user.
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the total number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

// List returns all users ordered by creation time descending.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, mapErr(rows.Err())
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...any) error }

func scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		apiKey    sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsActive, &apiKey, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, mapErr(err)
	}
	u.APIKey = apiKey.String
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// dupKeyErr distinguishes which unique index rejected a write.  The MySQL
// driver surfaces error 1062 with the index name in the message.
func dupKeyErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "1062") {
		switch {
		case strings.Contains(msg, "username"):
			return ErrUsernameExists
		case strings.Contains(msg, "email"):
			return ErrEmailExists
		case strings.Contains(msg, "api_key"):
			return ErrAPIKeyExists
		}
		return ErrUsernameExists
	}
	return mapErr(err)
}
