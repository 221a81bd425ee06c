package model

import "time"

// Role values stored in users.role.  Accounts default to RoleUser;
// RoleAdmin unlocks the /v1/admin endpoints.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types with appropriate JSON tags.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name (stored lower-cased).
//  Email        – unique email address (stored lower-cased).
//  PasswordHash – bcrypt hashed password.
//  Role         – "user" or "admin".
//  IsActive     – whether the account may authenticate.
//  APIKey       – long-lived alternative credential; empty when none is issued.
//  CreatedAt    – timestamp of creation.
//  LastLogin    – timestamp of the most recent successful login; zero when
//                 the user has never logged in.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	APIKey       string    // users.api_key (nullable in the schema)
	CreatedAt    time.Time // users.created_at
	LastLogin    time.Time // users.last_login (nullable in the schema)
}

// Principal is the authenticated identity resolved from a credential.
// It is produced once per request and never mutated afterwards; handlers
// read it from the request context.
type Principal struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// RevokedToken models an entry in the `revoked_tokens` table.  A token
// whose identifier appears here fails verification even though its
// embedded expiry has not passed.  ExpiresAt mirrors the token's own
// expiry so entries can be pruned once they would have died anyway.
type RevokedToken struct {
	TokenID   string    // revoked_tokens.token_id (the JWT's jti claim)
	UserID    uint64    // revoked_tokens.user_id
	ExpiresAt time.Time // revoked_tokens.expires_at
}
