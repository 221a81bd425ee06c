package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/reviewlens/reviewlens/internal/model"
	"github.com/reviewlens/reviewlens/internal/repository"
)

// stubUserStore backs the middleware tests with a handful of fixed users.
// Setting err makes every read fail with it.
type stubUserStore struct {
	mu   sync.Mutex
	byID map[uint64]model.User
	err  error
}

func (s *stubUserStore) put(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = u
	return u
}

func (s *stubUserStore) Create(ctx context.Context, u model.User) (uint64, error) {
	return 0, repository.ErrUnavailable
}

func (s *stubUserStore) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.User{}, s.err
	}
	for _, u := range s.byID {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *stubUserStore) FindByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.User{}, s.err
	}
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *stubUserStore) FindByAPIKey(ctx context.Context, key string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.User{}, s.err
	}
	for _, u := range s.byID {
		if u.APIKey != "" && u.APIKey == key {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *stubUserStore) UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error { return nil }
func (s *stubUserStore) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	return nil
}
func (s *stubUserStore) UpdateAPIKey(ctx context.Context, id uint64, key string) error { return nil }
func (s *stubUserStore) SetActive(ctx context.Context, id uint64, active bool) error   { return nil }

func (s *stubUserStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID), nil
}

func (s *stubUserStore) List(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u)
	}
	return out, nil
}

// stubRevocationStore is an in-memory revocation set.
type stubRevocationStore struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (s *stubRevocationStore) Add(ctx context.Context, tokenID string, userID uint64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[tokenID] = true
	return nil
}

func (s *stubRevocationStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[tokenID], nil
}

func (s *stubRevocationStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
