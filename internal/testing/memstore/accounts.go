// Package memstore provides in-memory repositories for tests. Their filtering
// goes through the same visibility and soft-delete rules the PostgreSQL
// repositories render as SQL.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/miniintern/bizboard/internal/accounts"
	"github.com/miniintern/bizboard/internal/shared"
)

// Accounts is an in-memory accounts.Repository.
type Accounts struct {
	mu     sync.RWMutex
	users  map[int64]*accounts.User
	nextID int64
}

// NewAccounts constructs an empty store.
func NewAccounts() *Accounts {
	return &Accounts{users: map[int64]*accounts.User{}}
}

// FindByUsername implements accounts.Repository.
func (s *Accounts) FindByUsername(_ context.Context, username string) (*accounts.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

// FindByID implements accounts.Repository.
func (s *Accounts) FindByID(_ context.Context, id int64) (*accounts.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// Create implements accounts.Repository.
func (s *Accounts) Create(_ context.Context, in accounts.NewUser) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username {
			return nil, accounts.ErrDuplicateUsername
		}
	}
	s.nextID++
	now := time.Now().UTC()
	u := &accounts.User{
		ID:           s.nextID,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		BusinessID:   in.BusinessID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	clone := *u
	return &clone, nil
}

// SetActive toggles is_active on a stored user.
func (s *Accounts) SetActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsActive = active
	}
}

// PasswordHash exposes the stored hash for assertions.
func (s *Accounts) PasswordHash(id int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return u.PasswordHash
	}
	return ""
}

var _ accounts.Repository = (*Accounts)(nil)
