package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/syncer"
)

const pingTimeout = 3 * time.Second

// StartAutoSync probes the server every interval and, while it answers,
// fires a timer-triggered sync. The policy decides whether the pass runs.
func (a *App) StartAutoSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) tick(ctx context.Context) {
	s := a.session()
	if s == nil || s.engine == nil {
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := s.remote.Ping(pingCtx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)

	a.syncInBackground(ctx, s.engine, func(ctx context.Context) (syncer.Result, error) {
		return s.engine.Sync(ctx, syncer.TriggerAuto, false)
	})
}

// syncInBackground runs fn and logs the outcome. The engine's gate makes
// overlapping calls safe.
func (a *App) syncInBackground(ctx context.Context, e *syncer.Engine, fn func(context.Context) (syncer.Result, error)) {
	res, err := fn(ctx)
	if err != nil {
		a.log.Warn(ctx, "background sync failed", "error", err)
		return
	}
	if res.Ran {
		a.log.Debug(ctx, "background sync finished",
			"pushed", res.Pushed, "pulled", res.Pulled, "dispatched", res.Dispatched, "failures", res.ItemFailures,
			"unsynced", e.Status().Current().UnsyncedCount)
	}
}

// kick asks for a sync after a local change. Inside the pending coalescing
// window the request is dropped and the next tick picks the change up.
func (a *App) kick(ctx context.Context) {
	s := a.session()
	if s == nil || s.engine == nil {
		return
	}
	a.background(func() {
		a.syncInBackground(ctx, s.engine, func(ctx context.Context) (syncer.Result, error) {
			return s.engine.Sync(ctx, syncer.TriggerAuto, false)
		})
	})
}
