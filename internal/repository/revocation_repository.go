package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RevocationRepo stores revoked token identifiers in the
// `revoked_tokens` table.  Presence of a token_id makes an otherwise
// valid token fail verification; rows keep the token's original expiry
// so they can be deleted once the token would have died anyway.
type RevocationRepo struct{ DB *sql.DB }

func NewRevocationRepo(db *sql.DB) *RevocationRepo { return &RevocationRepo{DB: db} }

// Add inserts a token identifier into the revocation set.  Re-revoking
// the same token is a no-op rather than an error.
func (r *RevocationRepo) Add(ctx context.Context, tokenID string, userID uint64, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO revoked_tokens (token_id, user_id, expires_at) VALUES (?,?,?) ON DUPLICATE KEY UPDATE expires_at=VALUES(expires_at)",
		tokenID, userID, expiresAt.UTC())
	return mapErr(err)
}

// Contains reports whether the token identifier has been revoked.
func (r *RevocationRepo) Contains(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM revoked_tokens WHERE token_id=? LIMIT 1", tokenID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, mapErr(err)
	}
	return true, nil
}

// PruneExpired deletes entries whose retained expiry has passed and
// returns how many rows were removed.  Safe to run while requests are
// being served; it touches only rows no live token can reference.
func (r *RevocationRepo) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
