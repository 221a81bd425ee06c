package utils // package utils provides helper functions for token creation and hashing

import (
	"time" // time utilities for computing expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // random token identifiers (jti)
)

// Token type values embedded in the "typ" claim.  A token presented for
// one purpose never verifies as the other.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the payload carried by every signed token.  The registered
// Subject holds the username, ID holds a random jti used by the
// revocation set, and TokenType distinguishes access from refresh tokens.
type Claims struct {
	UserID    uint64 `json:"user_id"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// SignedToken bundles a serialized JWT with the metadata callers need
// without re-parsing it: the jti and the UTC expiration time.
type SignedToken struct {
	Token string    // the serialized JWT string
	ID    string    // the token's jti claim
	Exp   time.Time // the UTC expiration time
}

// NewSignedToken builds and signs an HS256 JWT.  The subject is the
// username, the jti is a fresh UUID, and the expiry is now + ttl.  A ttl
// of zero produces a token that is already at its expiry instant.
func NewSignedToken(secret, tokenType string, userID uint64, username, role string, ttl time.Duration, now time.Time) (SignedToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, ID: jti, Exp: exp}, nil
}

// ParseClaims verifies the signature and registered claims of a token and
// returns its Claims.  Expiry is validated against the supplied clock so
// callers can inject a fake clock in tests.  Only HMAC signatures are
// accepted; anything else fails with jwt.ErrTokenSignatureInvalid.
func ParseClaims(secret, raw string, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseClaimsUnsafe verifies the signature but skips claim validation, so
// an already-expired token can still be read.  Used when revoking a token
// on logout: the jti and original expiry must be recoverable even if the
// token died between being presented and being processed.
func ParseClaimsUnsafe(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	return claims, nil
}
