package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/middleware"
	"github.com/reviewlens/reviewlens/internal/model"
	"github.com/reviewlens/reviewlens/internal/repository"
	"github.com/reviewlens/reviewlens/internal/service"
)

// fakeUserStore mirrors the MySQL repository's contract in memory for
// handler tests: same sentinels, same uniqueness rules.
type fakeUserStore struct {
	mu    sync.Mutex
	seq   uint64
	users map[uint64]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uint64]model.User)}
}

func (s *fakeUserStore) Create(ctx context.Context, u model.User) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return 0, repository.ErrUsernameExists
		}
		if existing.Email == u.Email {
			return 0, repository.ErrEmailExists
		}
	}
	s.seq++
	u.ID = s.seq
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *fakeUserStore) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *fakeUserStore) FindByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) FindByAPIKey(ctx context.Context, key string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.APIKey != "" && u.APIKey == key {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *fakeUserStore) UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error {
	return s.mutate(id, func(u *model.User) { u.LastLogin = at })
}

func (s *fakeUserStore) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	return s.mutate(id, func(u *model.User) { u.PasswordHash = hash })
}

func (s *fakeUserStore) UpdateAPIKey(ctx context.Context, id uint64, key string) error {
	return s.mutate(id, func(u *model.User) { u.APIKey = key })
}

func (s *fakeUserStore) SetActive(ctx context.Context, id uint64, active bool) error {
	return s.mutate(id, func(u *model.User) { u.IsActive = active })
}

func (s *fakeUserStore) mutate(id uint64, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *fakeUserStore) List(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

type fakeRevocationStore struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (s *fakeRevocationStore) Add(ctx context.Context, tokenID string, userID uint64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[tokenID] = true
	return nil
}

func (s *fakeRevocationStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[tokenID], nil
}

func (s *fakeRevocationStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeUsageStore struct {
	mu    sync.Mutex
	stats []model.EndpointStat
	err   error
}

func (s *fakeUsageStore) Insert(ctx context.Context, rec model.UsageRecord) error { return nil }

func (s *fakeUsageStore) StatsSince(ctx context.Context, since time.Time) ([]model.EndpointStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats, s.err
}

// testEnv wires the real handlers, services and middleware over in-memory
// storage, mirroring the production route layout minus Redis extras.
type testEnv struct {
	e          *echo.Echo
	auth       *service.AuthService
	users      *fakeUserStore
	usageStore *fakeUsageStore
	usage      *service.UsageRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	users := newFakeUserStore()
	rev := &fakeRevocationStore{ids: make(map[string]bool)}
	tokens := service.NewTokenService("handler-test-secret", time.Hour, 24*time.Hour, rev, users, log)
	auth := service.NewAuthService(users, tokens, 4, log)
	ac := service.NewAccessControl(users, tokens, log)
	usageStore := &fakeUsageStore{}
	usage := service.NewUsageRecorder(usageStore, nil, log, 8)
	t.Cleanup(usage.Close)

	ah := NewAuthHandler(auth, log)
	adm := NewAdminHandler(auth, usage, log)

	e := echo.New()
	e.POST("/v1/auth/register", ah.Register)
	e.POST("/v1/auth/login", ah.Login)
	e.POST("/v1/auth/refresh", ah.Refresh)
	e.POST("/v1/auth/logout", ah.Logout)

	g := e.Group("/v1", middleware.Authenticate(ac, log))
	g.GET("/me", ah.Me)
	g.POST("/password", ah.ChangePassword)
	g.POST("/api-key", ah.RegenerateAPIKey)

	admin := g.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", adm.ListUsers)
	admin.POST("/users/:id/toggle-active", adm.ToggleActive)
	admin.GET("/usage-stats", adm.UsageStats)

	return &testEnv{e: e, auth: auth, users: users, usageStore: usageStore, usage: usage}
}

func (env *testEnv) request(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
