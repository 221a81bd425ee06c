package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the three tables the service owns.  Unique
// indexes carry the uniqueness invariants (username, email, api_key), so
// concurrent registrations race at the storage level, not in application
// code.  usage_records is append-only and indexed for the time-ranged
// aggregation the admin stats endpoint runs.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(64)  NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'user',
		is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
		api_key       VARCHAR(64)  NULL,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_login    DATETIME     NULL,
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email),
		UNIQUE KEY uq_users_api_key (api_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_id   VARCHAR(64)     NOT NULL PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		expires_at DATETIME        NOT NULL,
		KEY idx_revoked_expires (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id     BIGINT UNSIGNED NOT NULL,
		endpoint    VARCHAR(128)    NOT NULL,
		status_code INT             NOT NULL,
		duration_ms BIGINT          NOT NULL,
		recorded_at DATETIME        NOT NULL,
		KEY idx_usage_recorded (recorded_at),
		KEY idx_usage_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the service's tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
