package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"uigen/internal/gateway/entity"
)

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*entity.Session
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*entity.Session),
		now:  time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *entity.Session) (*entity.Session, error) {
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; ok {
		return nil, ErrExists
	}
	stored := s.Clone()
	now := m.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.Revision = 0
	stamp(stored, now)
	m.byID[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*entity.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Update holds the write lock for the duration of fn, so version numbers
// computed inside fn cannot collide.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Revision = cur.Revision
	stamp(next, m.now())
	m.byID[next.ID] = next
	return next.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) (ListResult, error) {
	m.mu.RLock()
	matched := make([]*entity.Session, 0, len(m.byID))
	for _, s := range m.byID {
		if filter.matches(s) {
			matched = append(matched, s)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].Statistics.LastActiveAt, matched[j].Statistics.LastActiveAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return matched[i].ID > matched[j].ID
	})

	out := ListResult{Total: len(matched)}
	start := min(max(filter.Offset, 0), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	for _, s := range matched[start:end] {
		out.Sessions = append(out.Sessions, s.Clone())
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
