package syncer

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// StatusTracker holds the current SyncStatus and fans it out to subscribers
// with latest-value semantics: a slow subscriber sees the newest status, not
// every intermediate one.
type StatusTracker struct {
	mu      sync.Mutex
	current models.SyncStatus
	subs    map[chan models.SyncStatus]struct{}
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		current: models.SyncStatus{State: models.PassIdle},
		subs:    make(map[chan models.SyncStatus]struct{}),
	}
}

func (t *StatusTracker) Current() models.SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Update applies fn to the status and publishes the result.
func (t *StatusTracker) Update(fn func(*models.SyncStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.current)
	for ch := range t.subs {
		publish(ch, t.current)
	}
}

// Subscribe returns a channel that receives the current status immediately
// and every later change. It is closed when ctx is done.
func (t *StatusTracker) Subscribe(ctx context.Context) <-chan models.SyncStatus {
	ch := make(chan models.SyncStatus, 1)

	t.mu.Lock()
	ch <- t.current
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, ch)
		close(ch)
		t.mu.Unlock()
	}()
	return ch
}

// publish replaces an unread value so the writer never blocks.
func publish(ch chan models.SyncStatus, s models.SyncStatus) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
