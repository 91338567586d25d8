package sessionevent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToSessionSubscribers(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "s2")
	require.NoError(t, err)

	b.Publish(Event{Kind: KindVersionAdded, SessionID: "s1", Version: 1})

	select {
	case evt := <-ch:
		assert.Equal(t, KindVersionAdded, evt.Kind)
		assert.Equal(t, 1, evt.Version)
		assert.False(t, evt.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case evt := <-other:
		t.Fatalf("unexpected event for s2: %+v", evt)
	default:
	}
}

func TestBrokerDropsOldestWhenFull(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)

	for i := 1; i <= b.buffer+5; i++ {
		b.Publish(Event{Kind: KindVersionAdded, SessionID: "s1", Version: i})
	}
	first := <-ch
	assert.Equal(t, 6, first.Version)
}

func TestBrokerUnsubscribesOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers("s1"))

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers("s1"))

	_, err = b.Subscribe(context.Background(), " ")
	assert.Error(t, err)
}
