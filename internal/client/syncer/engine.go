// Package syncer runs synchronization passes between the local store and the
// remote memo server.
//
// A pass is gated twice: the Coordinator lets at most one pass run at a time
// and ShouldSkipSync drops triggers that arrive inside a coalescing window or
// an active backoff. A pass that runs drains the pending group operations,
// pushes dirty memos, pulls remote changes and refreshes the cached
// snapshots, in that order.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/groups"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/queue"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/memos"
	"github.com/dmitrijs2005/memosync/internal/client/state"
	"github.com/dmitrijs2005/memosync/internal/filex"
	"github.com/dmitrijs2005/memosync/internal/logging"
)

// Config tunes an Engine.
type Config struct {
	AccountKey string
	Policy     Policy

	PageSize         int
	GroupConcurrency int

	AliasRetention  time.Duration
	AliasMaxEntries int

	// FullPullInterval forces a full pull, which also drops memos deleted
	// on the server, once this long has passed since the last one. 0 limits
	// full pulls to passes without an anchor.
	FullPullInterval time.Duration

	// CacheLimit bounds the cached timeline snapshot; 0 keeps everything.
	CacheLimit int

	// Attachments defaults to reading LocalURI as a file path.
	Attachments AttachmentReader
	// Codec defaults to PlainCodec.
	Codec ContentCodec
}

// Result summarizes one call to Sync.
type Result struct {
	Ran   bool
	State models.PassState

	Dispatched int
	Requeued   int
	Pushed     int
	Deleted    int
	Pulled     int
	Pruned     int

	// ItemFailures counts records and operations skipped after a per-item error.
	ItemFailures int
}

// Engine synchronizes one account.
type Engine struct {
	cfg    Config
	remote client.Client
	memos  memos.Repository
	store  *state.Store
	queue  *queue.Queue
	coord  *Coordinator
	status *StatusTracker
	log    logging.Logger

	attachments AttachmentReader
	codec       ContentCodec
	now         func() time.Time
}

func NewEngine(cfg Config, remote client.Client, memoRepo memos.Repository, store *state.Store, log logging.Logger) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.GroupConcurrency <= 0 {
		cfg.GroupConcurrency = 1
	}
	if log == nil {
		log = logging.Nop()
	}
	if cfg.Attachments == nil {
		cfg.Attachments = filex.NewReader("")
	}
	if cfg.Codec == nil {
		cfg.Codec = PlainCodec{}
	}

	return &Engine{
		cfg:         cfg,
		remote:      remote,
		memos:       memoRepo,
		store:       store,
		queue:       queue.New(store, cfg.AccountKey),
		coord:       NewCoordinator(),
		status:      NewStatusTracker(),
		log:         log.With("account", cfg.AccountKey),
		attachments: cfg.Attachments,
		codec:       cfg.Codec,
		now:         time.Now,
	}
}

func (e *Engine) Status() *StatusTracker {
	return e.status
}

func (e *Engine) Coordinator() *Coordinator {
	return e.coord
}

func (e *Engine) Queue() *queue.Queue {
	return e.queue
}

// OnAppStart runs the launch sync and suppresses the resume that follows it.
func (e *Engine) OnAppStart(ctx context.Context) (Result, error) {
	return e.Sync(ctx, TriggerAppStart, false)
}

// OnResume runs a foreground sync unless it directly follows an app start.
func (e *Engine) OnResume(ctx context.Context) (Result, error) {
	return e.Sync(ctx, TriggerAppForeground, false)
}

// Sync runs one pass if the gate and the policy allow it. A skipped trigger
// returns a zero Result and no error. The returned error is the pass-level
// failure, if any; per-item failures are only counted.
func (e *Engine) Sync(ctx context.Context, trigger Trigger, force bool) (Result, error) {
	var acquired bool
	switch trigger {
	case TriggerAppStart:
		acquired = e.coord.RequestAppStartSync()
	case TriggerAppForeground:
		acquired = e.coord.RequestResumeSync()
	default:
		acquired = e.coord.TryAcquire()
	}
	if !acquired {
		skippedTotal.WithLabelValues(string(trigger), "gate").Inc()
		return Result{}, nil
	}
	defer e.coord.CompleteSync()

	pending, err := e.hasPendingWork(ctx)
	if err != nil {
		return e.finish(ctx, trigger, Result{}, fmt.Errorf("failed to check pending work: %w", err))
	}

	now := e.now()
	sched := e.coord.Schedule()
	if ShouldSkipSync(force, trigger, pending, now, sched.LastAttempt, e.cfg.Policy, sched.BackoffUntil) {
		skippedTotal.WithLabelValues(string(trigger), "policy").Inc()
		return Result{}, nil
	}

	e.coord.MarkAttempt(now)
	e.status.Update(func(s *models.SyncStatus) {
		s.State = models.PassRunning
		s.Syncing = true
		s.UploadedBytes, s.TotalBytes = 0, 0
		s.UploadedFiles, s.TotalFiles = 0, 0
	})

	start := time.Now()
	res, err := e.pass(ctx)
	res.Ran = true
	passDuration.Observe(time.Since(start).Seconds())

	return e.finish(ctx, trigger, res, err)
}

func (e *Engine) hasPendingWork(ctx context.Context) (bool, error) {
	dirty, err := e.memos.CountDirty(ctx, e.cfg.AccountKey)
	if err != nil {
		return false, err
	}
	if dirty > 0 {
		return true, nil
	}
	n, err := e.queue.Len(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *Engine) finish(ctx context.Context, trigger Trigger, res Result, err error) (Result, error) {
	class := classify(err)
	now := e.now()

	switch class {
	case classNone:
		e.coord.RecordSuccess()
		res.State = models.PassSucceeded
	case classCanceled:
		res.State = models.PassFailed
	case classHalt:
		res.State = models.PassFailed
		e.log.Warn(ctx, "sync halted", "error", err)
	default:
		until := e.coord.RecordFailure(now, e.cfg.Policy)
		res.State = models.PassFailed
		e.log.Error(ctx, "sync failed", "error", err, "class", class.String(), "backoff_until", until)
	}
	passTotal.WithLabelValues(string(trigger), class.String()).Inc()

	unsynced, countErr := e.memos.CountDirty(context.WithoutCancel(ctx), e.cfg.AccountKey)
	if countErr != nil {
		e.log.Warn(ctx, "failed to count unsynced memos", "error", countErr)
	}

	e.status.Update(func(s *models.SyncStatus) {
		s.Syncing = false
		s.State = res.State
		if countErr == nil {
			s.UnsyncedCount = unsynced
		}
		switch class {
		case classNone:
			s.ErrorMessage = ""
			s.LastSuccessAt = now
		case classCanceled:
		default:
			s.ErrorMessage = err.Error()
		}
	})

	if class == classNone {
		e.log.Info(ctx, "sync finished",
			"trigger", trigger, "dispatched", res.Dispatched, "pushed", res.Pushed,
			"deleted", res.Deleted, "pulled", res.Pulled, "pruned", res.Pruned, "item_failures", res.ItemFailures)
	}
	return res, err
}

// pass runs the four phases and stops at the first pass-level error.
func (e *Engine) pass(ctx context.Context) (Result, error) {
	var res Result

	if err := e.dispatchQueue(ctx, &res); err != nil {
		return res, err
	}
	if err := e.postPendingGroupMemos(ctx, &res); err != nil {
		return res, err
	}
	if err := e.push(ctx, &res); err != nil {
		return res, err
	}
	pulled, err := e.pull(ctx, &res)
	if err != nil {
		return res, err
	}
	if err := e.refreshSnapshots(ctx, pulled); err != nil {
		return res, err
	}
	return res, nil
}

// itemFailed records a per-item failure. Anything else is returned as a
// pass-level error.
func (e *Engine) itemFailed(ctx context.Context, res *Result, mu *sync.Mutex, err error, msg string, args ...any) error {
	if classify(err) != classItem {
		return err
	}
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	res.ItemFailures++
	e.log.Warn(ctx, msg, append(args, "error", err)...)
	return nil
}

// refreshSnapshots stores the anchor, rebuilds the cached timeline and
// trims the alias list.
func (e *Engine) refreshSnapshots(ctx context.Context, pulled pullResult) error {
	active, err := e.memos.ListActive(ctx, e.cfg.AccountKey)
	if err != nil {
		return fmt.Errorf("failed to build memo snapshot: %w", err)
	}
	if e.cfg.CacheLimit > 0 && len(active) > e.cfg.CacheLimit {
		active = active[:e.cfg.CacheLimit]
	}
	cached := make([]models.CachedMemoItem, 0, len(active))
	for i := range active {
		cached = append(cached, active[i].ToCachedMemoItem())
	}

	groupCache := e.fetchGroupSnapshots(ctx)

	return e.store.Update(ctx, e.cfg.AccountKey, func(st *models.AccountState) error {
		if !pulled.anchor.IsZero() {
			st.SyncAnchor = pulled.anchor.UTC().Format(time.RFC3339Nano)
		}
		if pulled.full {
			st.LastFullPullAt = e.now().UTC().Format(time.RFC3339Nano)
		}
		st.CachedMemos = cached
		for id, items := range groupCache {
			if _, ok := st.FindGroup(id); !ok {
				continue
			}
			if st.CachedGroupMemos == nil {
				st.CachedGroupMemos = make(map[string][]models.CachedMemoItem)
			}
			st.CachedGroupMemos[id] = items
		}
		groups.CleanupGroupAliases(st, e.now(), e.cfg.AliasRetention, e.cfg.AliasMaxEntries)
		return nil
	})
}

func parseAnchor(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sync anchor %q: %w", s, err)
	}
	return t, nil
}
