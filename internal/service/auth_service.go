package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/model"
	"github.com/reviewlens/reviewlens/internal/repository"
	"github.com/reviewlens/reviewlens/internal/utils"
)

// emailPattern is deliberately loose: one @, no spaces, a dot in the
// domain.  Anything stricter rejects real addresses.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// TokenPair bundles the credentials returned by login and register.
type TokenPair struct {
	Access    utils.SignedToken
	Refresh   utils.SignedToken
	ExpiresIn int // access-token lifetime in seconds
}

// AuthService implements registration, login, logout, password changes
// and API-key management on top of UserStore and TokenService.
type AuthService struct {
	users      UserStore
	tokens     *TokenService
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

func NewAuthService(users UserStore, tokens *TokenService, bcryptCost int, log *zap.Logger) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		log:        log,
		now:        time.Now,
	}
}

// Register creates a user with the default role, an initial API key and
// a policy-checked password.  Returns the stored user and the plaintext
// API key, which is only ever shown once.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (model.User, string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || !emailPattern.MatchString(email) {
		return model.User{}, "", ErrInvalidEmail
	}
	if err := utils.ValidatePassword(password); err != nil {
		return model.User{}, "", err
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, "", err
	}
	apiKey, err := utils.NewAPIKey()
	if err != nil {
		return model.User{}, "", err
	}

	u := model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
		APIKey:       apiKey,
		CreatedAt:    s.now().UTC(),
	}
	// Uniqueness is the store's job: a concurrent duplicate insert loses
	// against the unique index, never against a read-then-write check.
	id, err := s.users.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return model.User{}, "", ErrStorageUnavailable
		}
		return model.User{}, "", err
	}
	u.ID = id
	s.log.Info("user registered", zap.Uint64("user_id", id), zap.String("username", username))
	return u, apiKey, nil
}

// Login verifies an identifier (username or email) and password, stamps
// last_login and returns a fresh token pair.  An unknown identifier and
// a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (model.User, *TokenPair, error) {
	var u model.User
	err := repository.WithReadRetry(ctx, readRetryAttempts, readRetryDelay, func() error {
		var findErr error
		u, findErr = s.users.FindByIdentifier(ctx, identifier)
		return findErr
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, nil, ErrInvalidCredentials
		}
		if errors.Is(err, repository.ErrUnavailable) {
			return model.User{}, nil, ErrStorageUnavailable
		}
		return model.User{}, nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return model.User{}, nil, ErrAccountInactive
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return model.User{}, nil, err
	}
	u.LastLogin = s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, u.ID, u.LastLogin); err != nil {
		// A failed stamp must not fail the login.
		s.log.Warn("last_login update failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	return u, pair, nil
}

func (s *AuthService) issuePair(u model.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(u)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		Access:    access,
		Refresh:   refresh,
		ExpiresIn: int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// RefreshAccess exchanges a refresh token for a new access token carrying
// the user's current role.  The refresh token itself is not rotated.
func (s *AuthService) RefreshAccess(ctx context.Context, refreshRaw string) (utils.SignedToken, error) {
	return s.tokens.Refresh(ctx, refreshRaw)
}

// Logout revokes the presented access token, and the refresh token too
// when one is supplied.  A logout is never a no-op: once called, the
// presented credentials stop working even though their expiry has not
// passed.
func (s *AuthService) Logout(ctx context.Context, accessRaw, refreshRaw string) error {
	if err := s.tokens.Revoke(ctx, accessRaw); err != nil {
		return err
	}
	if refreshRaw != "" {
		if err := s.tokens.Revoke(ctx, refreshRaw); err != nil {
			return err
		}
	}
	return nil
}

// ChangePassword verifies the current password, checks the new one
// against the policy and stores its hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if errors.Is(err, repository.ErrUnavailable) {
			return ErrStorageUnavailable
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := utils.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return ErrStorageUnavailable
		}
		return err
	}
	s.log.Info("password changed", zap.Uint64("user_id", userID))
	return nil
}

// RegenerateAPIKey issues a new API key for the user, invalidating the
// previous one immediately.  On the rare collision with another user's
// key the generation retries.
func (s *AuthService) RegenerateAPIKey(ctx context.Context, userID uint64) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		key, err := utils.NewAPIKey()
		if err != nil {
			return "", err
		}
		err = s.users.UpdateAPIKey(ctx, userID, key)
		if err == nil {
			s.log.Info("api key regenerated", zap.Uint64("user_id", userID))
			return key, nil
		}
		if errors.Is(err, repository.ErrAPIKeyExists) {
			continue
		}
		if errors.Is(err, repository.ErrUnavailable) {
			return "", ErrStorageUnavailable
		}
		return "", err
	}
	return "", errors.New("api key generation kept colliding")
}

// ListUsers returns every user, newest first.  Admin only; the handler
// enforces the role.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return nil, ErrStorageUnavailable
		}
		return nil, err
	}
	return users, nil
}

// ToggleActive flips a user's is_active flag and returns the new state.
// Deactivation takes effect on the next authenticated request because
// credential resolution re-checks the stored flag.
func (s *AuthService) ToggleActive(ctx context.Context, userID uint64) (bool, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		if errors.Is(err, repository.ErrUnavailable) {
			return false, ErrStorageUnavailable
		}
		return false, err
	}
	next := !u.IsActive
	if err := s.users.SetActive(ctx, userID, next); err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return false, ErrStorageUnavailable
		}
		return false, err
	}
	s.log.Info("user activation toggled", zap.Uint64("user_id", userID), zap.Bool("is_active", next))
	return next, nil
}
