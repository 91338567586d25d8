package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"uigen/internal/gateway/entity"
	sessionrepo "uigen/internal/gateway/repository/session"
)

type Store = sessionrepo.Store

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        2 * time.Minute,
		MaxEntries: 1024,
	}
}

type MetricsSnapshot struct {
	Hits           uint64
	Misses         uint64
	OriginReads    uint64
	OriginWrites   uint64
	OriginReadErr  uint64
	OriginWriteErr uint64
}

type Metrics struct {
	hits           atomic.Uint64
	misses         atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

func (m *Metrics) snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Hits:           m.hits.Load(),
		Misses:         m.misses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

// CachedStore is a read-through, write-through cache in front of a session
// store. Lists always go to the origin. The cache is per process: run a
// single gateway instance or keep the TTL short.
type CachedStore struct {
	origin  Store
	docs    *expirable.LRU[string, *entity.Session]
	metrics Metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &CachedStore{
		origin: origin,
		docs:   expirable.NewLRU[string, *entity.Session](cfg.MaxEntries, nil, cfg.TTL),
	}
}

func (s *CachedStore) Create(ctx context.Context, sess *entity.Session) (*entity.Session, error) {
	s.metrics.originWrites.Add(1)
	created, err := s.origin.Create(ctx, sess)
	if err != nil {
		s.metrics.originWriteErr.Add(1)
		return nil, err
	}
	s.docs.Add(created.ID, created.Clone())
	return created, nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (*entity.Session, error) {
	key := strings.TrimSpace(id)
	if cached, ok := s.docs.Get(key); ok {
		s.metrics.hits.Add(1)
		return cached.Clone(), nil
	}
	s.metrics.misses.Add(1)
	s.metrics.originReads.Add(1)

	sess, err := s.origin.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, sessionrepo.ErrNotFound) {
			s.metrics.originReadErr.Add(1)
		}
		return nil, err
	}
	s.docs.Add(key, sess.Clone())
	return sess, nil
}

func (s *CachedStore) Update(ctx context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error) {
	key := strings.TrimSpace(id)
	s.metrics.originWrites.Add(1)
	updated, err := s.origin.Update(ctx, key, fn)
	if err != nil {
		// The cached copy may be behind the origin after a conflict.
		if errors.Is(err, sessionrepo.ErrConflict) || errors.Is(err, sessionrepo.ErrNotFound) {
			s.docs.Remove(key)
		}
		s.metrics.originWriteErr.Add(1)
		return nil, err
	}
	s.docs.Add(key, updated.Clone())
	return updated, nil
}

func (s *CachedStore) List(ctx context.Context, filter sessionrepo.ListFilter) (sessionrepo.ListResult, error) {
	s.metrics.originReads.Add(1)
	res, err := s.origin.List(ctx, filter)
	if err != nil {
		s.metrics.originReadErr.Add(1)
	}
	return res, err
}

func (s *CachedStore) Close() error {
	s.docs.Purge()
	return s.origin.Close()
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.snapshot()
}
