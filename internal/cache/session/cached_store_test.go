package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uigen/internal/gateway/entity"
	sessionrepo "uigen/internal/gateway/repository/session"
)

type fakeOriginStore struct {
	*sessionrepo.MemoryStore
	gets int
}

func (f *fakeOriginStore) Get(ctx context.Context, id string) (*entity.Session, error) {
	f.gets++
	return f.MemoryStore.Get(ctx, id)
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	origin := &fakeOriginStore{MemoryStore: sessionrepo.NewMemoryStore()}
	_, err := origin.Create(ctx, &entity.Session{ID: "s1", UserID: "alice", Title: "A", Status: entity.SessionActive})
	require.NoError(t, err)

	cs := NewCachedStore(origin, CacheConfig{})
	first, err := cs.Get(ctx, "s1")
	require.NoError(t, err)
	first.Title = "mutated by caller"

	second, err := cs.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "A", second.Title)
	assert.Equal(t, 1, origin.gets)

	m := cs.Metrics()
	assert.EqualValues(t, 1, m.Hits)
	assert.EqualValues(t, 1, m.Misses)
}

func TestCachedStoreWriteThrough(t *testing.T) {
	ctx := context.Background()
	origin := &fakeOriginStore{MemoryStore: sessionrepo.NewMemoryStore()}
	cs := NewCachedStore(origin, CacheConfig{})

	_, err := cs.Create(ctx, &entity.Session{ID: "s1", UserID: "alice", Title: "A", Status: entity.SessionActive})
	require.NoError(t, err)
	_, err = cs.Update(ctx, "s1", func(s *entity.Session) error {
		s.Title = "B"
		return nil
	})
	require.NoError(t, err)

	got, err := cs.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)
	assert.Zero(t, origin.gets)

	_, err = cs.Update(ctx, "s1", func(*entity.Session) error { return errors.New("nope") })
	require.Error(t, err)
	assert.EqualValues(t, 1, cs.Metrics().OriginWriteErr)

	_, err = cs.Get(ctx, "missing")
	assert.ErrorIs(t, err, sessionrepo.ErrNotFound)
	assert.Zero(t, cs.Metrics().OriginReadErr)
}
