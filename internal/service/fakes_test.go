package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/reviewlens/reviewlens/internal/model"
	"github.com/reviewlens/reviewlens/internal/queue"
	"github.com/reviewlens/reviewlens/internal/repository"
)

// memUserStore is an in-memory UserStore honoring the same sentinel
// errors and uniqueness rules as the MySQL implementation.  Error fields
// inject failures; failFinds makes the next N reads return
// repository.ErrUnavailable to exercise the retry path.
type memUserStore struct {
	mu        sync.Mutex
	seq       uint64
	users     map[uint64]model.User
	failFinds int
	createErr error
	updateErr error
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uint64]model.User)}
}

// add inserts a user directly, bypassing uniqueness checks.  Test setup only.
func (s *memUserStore) add(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.seq++
		u.ID = s.seq
	} else if u.ID > s.seq {
		s.seq = u.ID
	}
	s.users[u.ID] = u
	return u
}

func (s *memUserStore) get(id uint64) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memUserStore) transientRead() error {
	if s.failFinds > 0 {
		s.failFinds--
		return repository.ErrUnavailable
	}
	return nil
}

func (s *memUserStore) Create(ctx context.Context, u model.User) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return 0, s.createErr
	}
	for _, existing := range s.users {
		switch {
		case existing.Username == u.Username:
			return 0, repository.ErrUsernameExists
		case existing.Email == u.Email:
			return 0, repository.ErrEmailExists
		case u.APIKey != "" && existing.APIKey == u.APIKey:
			return 0, repository.ErrAPIKeyExists
		}
	}
	s.seq++
	u.ID = s.seq
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *memUserStore) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transientRead(); err != nil {
		return model.User{}, err
	}
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	for _, u := range s.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *memUserStore) FindByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transientRead(); err != nil {
		return model.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) FindByAPIKey(ctx context.Context, key string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transientRead(); err != nil {
		return model.User{}, err
	}
	for _, u := range s.users {
		if u.APIKey != "" && u.APIKey == key {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *memUserStore) UpdateLastLogin(ctx context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLogin = at
	s.users[id] = u
	return nil
}

func (s *memUserStore) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *memUserStore) UpdateAPIKey(ctx context.Context, id uint64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for otherID, other := range s.users {
		if otherID != id && other.APIKey != "" && other.APIKey == key {
			return repository.ErrAPIKeyExists
		}
	}
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.APIKey = key
	s.users[id] = u
	return nil
}

func (s *memUserStore) SetActive(ctx context.Context, id uint64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	s.users[id] = u
	return nil
}

func (s *memUserStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *memUserStore) List(ctx context.Context) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

// memRevocationStore is an in-memory RevocationStore.  failContains
// makes the next N lookups return repository.ErrUnavailable.
type memRevocationStore struct {
	mu           sync.Mutex
	entries      map[string]time.Time
	failContains int
	addErr       error
}

func newMemRevocationStore() *memRevocationStore {
	return &memRevocationStore{entries: make(map[string]time.Time)}
}

func (s *memRevocationStore) Add(ctx context.Context, tokenID string, userID uint64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.entries[tokenID] = expiresAt
	return nil
}

func (s *memRevocationStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failContains > 0 {
		s.failContains--
		return false, repository.ErrUnavailable
	}
	_, ok := s.entries[tokenID]
	return ok, nil
}

func (s *memRevocationStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, exp := range s.entries {
		if exp.Before(now) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

func (s *memRevocationStore) expiry(tokenID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[tokenID]
	return exp, ok
}

// memUsageStore collects inserted usage rows and serves canned stats.
type memUsageStore struct {
	mu        sync.Mutex
	records   []model.UsageRecord
	stats     []model.EndpointStat
	lastSince time.Time
	insertErr error
	statsErr  error
}

func (s *memUsageStore) Insert(ctx context.Context, rec model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memUsageStore) StatsSince(ctx context.Context, since time.Time) ([]model.EndpointStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSince = since
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return s.stats, nil
}

func (s *memUsageStore) inserted() []model.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.UsageRecord, len(s.records))
	copy(out, s.records)
	return out
}

// memPublisher records published usage events.
type memPublisher struct {
	mu     sync.Mutex
	events []queue.UsageRecordedEvent
	err    error
}

func (p *memPublisher) PublishUsageRecorded(ctx context.Context, ev queue.UsageRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) published() []queue.UsageRecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.UsageRecordedEvent, len(p.events))
	copy(out, p.events)
	return out
}
