package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/miniintern/bizboard/internal/businesses"
	"github.com/miniintern/bizboard/internal/shared"
)

// Businesses is an in-memory businesses.Repository.
type Businesses struct {
	mu     sync.RWMutex
	rows   map[int64]businesses.Business
	nextID int64
	// ListCalls counts List invocations so tests can observe caching.
	ListCalls int
	// InUse reports businesses that posts still reference, standing in for
	// the posts foreign key. Nil means none are referenced.
	InUse func(id int64) bool
}

// NewBusinesses constructs a store seeded with the given names.
func NewBusinesses(names ...string) *Businesses {
	s := &Businesses{rows: map[int64]businesses.Business{}}
	for _, name := range names {
		_, _ = s.Create(context.Background(), businesses.Input{Name: name})
	}
	return s
}

// Exists implements businesses.Repository.
func (s *Businesses) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[id]
	return ok, nil
}

// List implements businesses.Repository.
func (s *Businesses) List(_ context.Context, filter businesses.ListFilter) ([]businesses.Business, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []businesses.Business
	for _, b := range s.rows {
		if search != "" && !strings.Contains(strings.ToLower(b.Name), search) {
			continue
		}
		if filter.Name != "" && b.Name != filter.Name {
			continue
		}
		matched = append(matched, b)
	}
	desc := filter.Ordering.Desc
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Name != b.Name {
			return (a.Name < b.Name) != desc
		}
		return (a.ID < b.ID) != desc
	})
	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}

// Get implements businesses.Repository.
func (s *Businesses) Get(_ context.Context, id int64) (*businesses.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

// Create implements businesses.Repository.
func (s *Businesses) Create(_ context.Context, in businesses.Input) (*businesses.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	b := businesses.Business{ID: s.nextID, Name: in.Name, CreatedAt: now, UpdatedAt: now}
	s.rows[b.ID] = b
	return &b, nil
}

// Update implements businesses.Repository.
func (s *Businesses) Update(_ context.Context, id int64, in businesses.Input) (*businesses.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	b.Name = in.Name
	b.UpdatedAt = time.Now().UTC()
	s.rows[id] = b
	return &b, nil
}

// Delete implements businesses.Repository.
func (s *Businesses) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return shared.ErrNotFound
	}
	if s.InUse != nil && s.InUse(id) {
		return businesses.ErrBusinessInUse
	}
	delete(s.rows, id)
	return nil
}

func paginate[T any](items []T, page, size int) []T {
	if size <= 0 {
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var _ businesses.Repository = (*Businesses)(nil)
