package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/google/uuid"
)

// pullResult is what a pull leaves for refreshSnapshots to store.
type pullResult struct {
	anchor time.Time
	full   bool
}

// pull fetches remote changes since the stored anchor and merges them. With
// no anchor, or once FullPullInterval has passed since the last full pull,
// every memo is listed and clean memos the server no longer has are pruned.
func (e *Engine) pull(ctx context.Context, res *Result) (pullResult, error) {
	st, err := e.store.Load(ctx, e.cfg.AccountKey)
	if err != nil {
		return pullResult{}, err
	}
	anchor, err := parseAnchor(st.SyncAnchor)
	if err != nil {
		e.log.Warn(ctx, "ignoring unreadable sync anchor, doing a full pull", "error", err)
		anchor = time.Time{}
	}
	full := anchor.IsZero() || e.fullPullDue(ctx, st.LastFullPullAt)
	if full {
		// Memos changed remotely before the old anchor are listed anyway.
		anchor = time.Time{}
	}

	filter := ""
	if !full {
		filter = client.AnchorFilter(anchor)
	}

	seen := make(map[string]struct{})
	for _, state := range []string{client.StateNormal, client.StateArchived} {
		token := ""
		for {
			page, err := e.remote.ListMemos(ctx, client.ListMemosRequest{
				PageSize:  e.cfg.PageSize,
				PageToken: token,
				State:     state,
				Filter:    filter,
			})
			if err != nil {
				return pullResult{}, err
			}

			for i := range page.Memos {
				rm := &page.Memos[i]
				if rm.Name == "" {
					continue
				}
				seen[rm.Name] = struct{}{}
				if rm.UpdateTime.After(anchor) {
					anchor = rm.UpdateTime
				}
				if err := e.merge(ctx, rm, res); err != nil {
					pulledTotal.WithLabelValues("failed").Inc()
					if err := e.itemFailed(ctx, res, nil, err, "remote memo skipped", "remote_id", rm.Name); err != nil {
						return pullResult{}, err
					}
				}
			}

			token = page.NextPageToken
			if token == "" {
				break
			}
		}
	}

	if full {
		n, err := e.memos.PruneRemote(ctx, e.cfg.AccountKey, seen)
		if err != nil {
			return pullResult{}, err
		}
		res.Pruned += n
	}
	return pullResult{anchor: anchor, full: full}, nil
}

// fullPullDue reports whether FullPullInterval has passed since last, the
// stored time of the previous full pull.
func (e *Engine) fullPullDue(ctx context.Context, last string) bool {
	if e.cfg.FullPullInterval <= 0 {
		return false
	}
	if last == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339Nano, last)
	if err != nil {
		e.log.Warn(ctx, "ignoring unreadable full pull time", "value", last, "error", err)
		return true
	}
	return !e.now().Before(t.Add(e.cfg.FullPullInterval))
}

// merge applies one remote memo. Remote wins, except that a dirty local
// memo the server has not changed since its last sync keeps its content.
// Tombstones are never resurrected.
func (e *Engine) merge(ctx context.Context, rm *client.Memo, res *Result) error {
	rm, err := e.decodeRemote(rm)
	if err != nil {
		return err
	}

	local, err := e.memos.GetByRemoteID(ctx, e.cfg.AccountKey, rm.Name)
	switch {
	case errors.Is(err, common.ErrNotFound):
		m := &models.Memo{Identifier: uuid.NewString()}
		applyRemote(m, rm, e.cfg.AccountKey)
		stamp := syncedAt(rm, e.now())
		m.LastSyncedAt = &stamp
		if m.LastModified.IsZero() {
			m.LastModified = stamp
		}
		if err := e.memos.Upsert(ctx, m); err != nil {
			return err
		}
		pulledTotal.WithLabelValues("created").Inc()
		res.Pulled++
		return nil
	case err != nil:
		return err
	}

	if local.IsDeleted {
		pulledTotal.WithLabelValues("tombstone").Inc()
		return nil
	}

	seen := local.LastModified
	stamp := syncedAt(rm, e.now())
	if local.NeedsSync && local.LastSyncedAt != nil && !rm.UpdateTime.After(*local.LastSyncedAt) {
		// Only the sync bookkeeping moves forward; content stays local.
		local.RemoteID = rm.Name
		if stamp.After(*local.LastSyncedAt) {
			local.LastSyncedAt = &stamp
		}
		written, err := e.memos.UpsertIfUnchanged(ctx, local, seen)
		if err != nil {
			return err
		}
		if !written {
			return e.editedDuringMerge(ctx, local)
		}
		pulledTotal.WithLabelValues("kept_local").Inc()
		return nil
	}

	if !local.NeedsSync && local.LastSyncedAt != nil && !rm.UpdateTime.After(*local.LastSyncedAt) {
		pulledTotal.WithLabelValues("unchanged").Inc()
		return nil
	}

	applyRemote(local, rm, e.cfg.AccountKey)
	local.NeedsSync = false
	local.LastSyncedAt = &stamp
	written, err := e.memos.UpsertIfUnchanged(ctx, local, seen)
	if err != nil {
		return err
	}
	if !written {
		return e.editedDuringMerge(ctx, local)
	}
	pulledTotal.WithLabelValues("updated").Inc()
	res.Pulled++
	return nil
}

// editedDuringMerge leaves a memo the user changed after merge read it. It
// stays dirty and the next push settles it against the server.
func (e *Engine) editedDuringMerge(ctx context.Context, local *models.Memo) error {
	pulledTotal.WithLabelValues("edited_locally").Inc()
	e.log.Debug(ctx, "memo edited during merge, keeping local edit", "memo", local.Identifier, "remote_id", local.RemoteID)
	return nil
}
