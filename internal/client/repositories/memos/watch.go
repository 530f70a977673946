package memos

import (
	"context"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

type watcher struct {
	accountKey string
	wake       chan struct{}
}

// Watch implements Repository. The returned channel is closed when ctx is done.
func (r *SQLiteRepository) Watch(ctx context.Context, accountKey string) <-chan []models.Memo {
	out := make(chan []models.Memo, 1)
	w := &watcher{accountKey: accountKey, wake: make(chan struct{}, 1)}
	w.wake <- struct{}{}

	r.mu.Lock()
	r.watchers[w] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			r.mu.Lock()
			delete(r.watchers, w)
			r.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
			}

			list, err := r.ListActive(ctx, accountKey)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}

			// Latest value wins: replace an unread stale list.
			select {
			case <-out:
			default:
			}
			select {
			case out <- list:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// notify wakes the account's watchers without blocking.
func (r *SQLiteRepository) notify(accountKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for w := range r.watchers {
		if w.accountKey != accountKey {
			continue
		}
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}
