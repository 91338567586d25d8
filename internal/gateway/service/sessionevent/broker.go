// Package sessionevent fans out session change notifications to watchers.
package sessionevent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type Kind string

const (
	KindVersionAdded   Kind = "version_added"
	KindVersionEdited  Kind = "version_edited"
	KindCurrentChanged Kind = "current_changed"
	KindMessages       Kind = "messages_appended"
	KindSessionUpdated Kind = "session_updated"
	KindSessionDeleted Kind = "session_deleted"
)

type Event struct {
	Kind           Kind      `json:"type"`
	SessionID      string    `json:"sessionId"`
	Version        int       `json:"version,omitempty"`
	CurrentVersion int       `json:"currentVersion,omitempty"`
	Revision       int64     `json:"revision"`
	At             time.Time `json:"at"`
}

// Broker delivers events to subscribers of one session. Slow subscribers
// lose their oldest undelivered event rather than blocking publishers.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	buffer int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan Event]struct{}), buffer: 16}
}

// Subscribe returns a channel that is closed once ctx is done.
func (b *Broker) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (b *Broker) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[evt.SessionID] {
		push(ch, evt)
	}
}

// Subscribers reports the number of live subscriptions for sessionID.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[sessionID])
}

func push(out chan Event, evt Event) {
	select {
	case out <- evt:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- evt:
	default:
	}
}
