package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/model"
	"github.com/reviewlens/reviewlens/internal/repository"
	"github.com/reviewlens/reviewlens/internal/utils"
)

// Read retry policy for storage lookups made on the authentication path.
// Writes (revocations, user creation) are never retried.
const (
	readRetryAttempts = 3
	readRetryDelay    = 50 * time.Millisecond
)

// UserStore is the persistence contract the auth core consumes.  The
// MySQL implementation lives in internal/repository; tests plug in
// in-memory fakes.  Implementations must return the repository sentinel
// errors (ErrNotFound, ErrUsernameExists, ...) and enforce uniqueness
// atomically at the storage level.
type UserStore interface {
	Create(ctx context.Context, u model.User) (uint64, error)
	FindByIdentifier(ctx context.Context, identifier string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	FindByAPIKey(ctx context.Context, key string) (model.User, error)
	UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	UpdateAPIKey(ctx context.Context, id uint64, key string) error
	SetActive(ctx context.Context, id uint64, active bool) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]model.User, error)
}

// RevocationStore tracks token identifiers invalidated before their
// natural expiry.  Add must be a single atomic append; Contains is
// read-mostly and must not block on writers.
type RevocationStore interface {
	Add(ctx context.Context, tokenID string, userID uint64, expiresAt time.Time) error
	Contains(ctx context.Context, tokenID string) (bool, error)
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenService issues, verifies and revokes signed access and refresh
// tokens.  A token moves issued -> valid -> expired|revoked; the two
// terminal states are absorbing.
type TokenService struct {
	secret      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations RevocationStore
	users       UserStore
	log         *zap.Logger
	now         func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration, revocations RevocationStore, users UserStore, log *zap.Logger) *TokenService {
	if accessTTL == 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL == 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenService{
		secret:      secret,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		revocations: revocations,
		users:       users,
		log:         log,
		now:         time.Now,
	}
}

// WithClock replaces the service's clock.  Tests use it to pin expiry
// behaviour without sleeping.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// AccessTTL reports the configured access-token lifetime; login responses
// expose it as expires_in_seconds.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccessToken mints a short-lived access token for the user.
func (s *TokenService) IssueAccessToken(u model.User) (utils.SignedToken, error) {
	return utils.NewSignedToken(s.secret, utils.TokenTypeAccess, u.ID, u.Username, u.Role, s.accessTTL, s.now())
}

// IssueRefreshToken mints a long-lived refresh token for the user.
func (s *TokenService) IssueRefreshToken(u model.User) (utils.SignedToken, error) {
	return utils.NewSignedToken(s.secret, utils.TokenTypeRefresh, u.ID, u.Username, u.Role, s.refreshTTL, s.now())
}

// Verify parses a raw token and checks signature, expiry, type and the
// revocation set, in that order.  Each failure kind has its own sentinel
// so callers can react differently: an expired access token should send
// the client to the refresh flow, a revoked or malformed one should not.
func (s *TokenService) Verify(ctx context.Context, raw, expectedType string) (*utils.Claims, error) {
	claims, err := utils.ParseClaims(s.secret, raw, s.now)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenMalformed
		}
	}
	if claims.TokenType != expectedType {
		return nil, ErrWrongTokenType
	}

	var revoked bool
	err = repository.WithReadRetry(ctx, readRetryAttempts, readRetryDelay, func() error {
		var lookupErr error
		revoked, lookupErr = s.revocations.Contains(ctx, claims.ID)
		return lookupErr
	})
	if err != nil {
		s.log.Warn("revocation lookup failed", zap.Error(err))
		return nil, ErrStorageUnavailable
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke inserts the token's identifier into the revocation set together
// with its original expiry, so the entry can be pruned once the token
// would have died anyway.  The signature must check out, but an expired
// token is still accepted: revoking it is harmless and keeps logout
// idempotent.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	claims, err := utils.ParseClaimsUnsafe(s.secret, raw)
	if err != nil {
		return ErrTokenMalformed
	}
	exp := s.now().Add(s.refreshTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := s.revocations.Add(ctx, claims.ID, claims.UserID, exp); err != nil {
		return ErrStorageUnavailable
	}
	return nil
}

// Refresh verifies a refresh token and mints a new access token.  The
// user is re-resolved from storage so the new token carries the user's
// CURRENT role; a role change therefore takes effect on the next refresh
// without forcing re-login.  Accounts that vanished or were deactivated
// no longer refresh.
func (s *TokenService) Refresh(ctx context.Context, refreshRaw string) (utils.SignedToken, error) {
	claims, err := s.Verify(ctx, refreshRaw, utils.TokenTypeRefresh)
	if err != nil {
		return utils.SignedToken{}, err
	}

	var u model.User
	err = repository.WithReadRetry(ctx, readRetryAttempts, readRetryDelay, func() error {
		var findErr error
		u, findErr = s.users.FindByID(ctx, claims.UserID)
		return findErr
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.SignedToken{}, ErrUserNotFound
		}
		if errors.Is(err, repository.ErrUnavailable) {
			return utils.SignedToken{}, ErrStorageUnavailable
		}
		return utils.SignedToken{}, err
	}
	if !u.IsActive {
		return utils.SignedToken{}, ErrAccountInactive
	}
	return s.IssueAccessToken(u)
}

// StartPruner launches the periodic cleanup of expired revocation
// entries.  It runs until ctx is cancelled and holds no locks that could
// block authentication.
func (s *TokenService) StartPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.revocations.PruneExpired(ctx, s.now())
				if err != nil {
					s.log.Warn("revocation prune failed", zap.Error(err))
					continue
				}
				if n > 0 {
					s.log.Info("pruned expired revocations", zap.Int64("removed", n))
				}
			}
		}
	}()
}
