package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/groups"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"golang.org/x/sync/errgroup"
)

// errNeverCreated rejects operations on a local group whose CREATE is gone.
var errNeverCreated = fmt.Errorf("group was never created on the server: %w", client.ErrRejected)

// dispatchQueue drains the pending operations group by group. Groups run
// concurrently up to GroupConcurrency; operations within a group run in
// enqueue order. A failing operation stops its group and the unprocessed
// tail goes back to the queue. Other groups keep going.
func (e *Engine) dispatchQueue(ctx context.Context, res *Result) error {
	groupIDs, err := e.queue.Groups(ctx)
	if err != nil {
		return err
	}
	if len(groupIDs) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		passErr error
	)
	setPassErr := func(err error) {
		mu.Lock()
		if passErr == nil {
			passErr = err
		}
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.GroupConcurrency)

	for _, groupID := range groupIDs {
		g.Go(func() error {
			err := e.dispatchGroup(gctx, groupID, res, &mu)
			if err != nil {
				setPassErr(err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return passErr
}

func (e *Engine) dispatchGroup(ctx context.Context, groupID string, res *Result, mu *sync.Mutex) error {
	ops, err := e.queue.Drain(ctx, groupID)
	if err != nil {
		return err
	}

	st, err := e.store.Load(ctx, e.cfg.AccountKey)
	if err != nil {
		e.requeue(ctx, ops, res, mu)
		return err
	}
	aliases := st.GroupIDAliases

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			e.requeue(ctx, ops[i:], res, mu)
			return err
		}

		err := e.applyOperation(ctx, op, &aliases)
		if err == nil {
			operationTotal.WithLabelValues(string(op.Kind), "ok").Inc()
			mu.Lock()
			res.Dispatched++
			mu.Unlock()
			continue
		}

		if classify(err) == classItem {
			// The operation can never succeed; drop it and keep the rest for
			// the next pass.
			operationTotal.WithLabelValues(string(op.Kind), "dropped").Inc()
			e.requeue(ctx, ops[i+1:], res, mu)
			return e.itemFailed(ctx, res, mu, err, "group operation dropped",
				"group", groupID, "kind", op.Kind, "operation", op.OperationID)
		}

		operationTotal.WithLabelValues(string(op.Kind), "requeued").Inc()
		e.requeue(ctx, ops[i:], res, mu)
		return err
	}
	return nil
}

func (e *Engine) requeue(ctx context.Context, ops []models.PendingGroupOperation, res *Result, mu *sync.Mutex) {
	if len(ops) == 0 {
		return
	}
	// Requeue must land even when the pass is being cancelled.
	if err := e.queue.Requeue(context.WithoutCancel(ctx), ops); err != nil {
		e.log.Error(ctx, "failed to requeue group operations", "error", err, "count", len(ops))
		return
	}
	mu.Lock()
	res.Requeued += len(ops)
	mu.Unlock()
}

// applyOperation sends one operation. aliases is the group's working view
// of the alias list; a CREATE extends it so later operations resolve.
func (e *Engine) applyOperation(ctx context.Context, op models.PendingGroupOperation, aliases *[]models.GroupIDAlias) error {
	target, aliased := groups.ResolveRemoteID(*aliases, op.GroupID)

	switch op.Kind {
	case models.OperationCreate:
		if aliased {
			// Created in an earlier pass that died before the queue was saved.
			return nil
		}
		g, err := e.remote.CreateGroup(ctx, client.GroupRequest{DisplayName: op.Name, Description: op.Description})
		if err != nil {
			return err
		}
		return e.recordGroup(ctx, op.GroupID, g, aliases)

	case models.OperationJoin:
		g, err := e.remote.JoinGroup(ctx, op.InviteCode)
		if err != nil {
			return err
		}
		return e.recordGroup(ctx, op.GroupID, g, aliases)
	}

	if !aliased && groups.IsLocalID(op.GroupID) {
		return errNeverCreated
	}

	switch op.Kind {
	case models.OperationUpdate:
		_, err := e.remote.UpdateGroup(ctx, target, client.GroupRequest{DisplayName: op.Name, Description: op.Description})
		return err

	case models.OperationAddTag:
		_, err := e.remote.AddGroupTag(ctx, target, op.Tag)
		return err

	case models.OperationDeleteOrLeave:
		err := e.remote.DeleteOrLeaveGroup(ctx, target)
		if err != nil && !errors.Is(err, client.ErrNotFound) {
			return err
		}
		return e.store.Update(ctx, e.cfg.AccountKey, func(st *models.AccountState) error {
			groups.RemoveGroupReferences(st, op.GroupID)
			return nil
		})
	}

	return fmt.Errorf("unknown operation kind %q: %w", op.Kind, client.ErrRejected)
}

// recordGroup stores what the server returned for a created or joined group
// and aliases the local id to the server name.
func (e *Engine) recordGroup(ctx context.Context, localID string, g *client.Group, aliases *[]models.GroupIDAlias) error {
	if g.Name == "" {
		return errNoRemoteID
	}
	now := e.now()

	err := e.store.Update(ctx, e.cfg.AccountKey, func(st *models.AccountState) error {
		groups.RecordAlias(st, localID, g.Name, now)

		group, ok := st.FindGroup(g.Name)
		if !ok {
			st.Groups = append(st.Groups, models.Group{ID: g.Name, JoinedAt: now})
			group = &st.Groups[len(st.Groups)-1]
		}
		if g.DisplayName != "" {
			group.Name = g.DisplayName
		}
		group.Description = g.Description
		group.Owner = g.Owner
		if len(g.Tags) > 0 {
			group.Tags = g.Tags
		}
		return nil
	})
	if err != nil {
		return err
	}

	if localID != g.Name {
		*aliases = append(*aliases, models.GroupIDAlias{LocalID: localID, RemoteID: g.Name, UpdatedAt: now})
	}
	return nil
}

// postPendingGroupMemos sends memos written into groups while offline. Memos
// for groups the server does not know yet wait for a later pass.
func (e *Engine) postPendingGroupMemos(ctx context.Context, res *Result) error {
	st, err := e.store.Load(ctx, e.cfg.AccountKey)
	if err != nil {
		return err
	}

	for _, pm := range st.PendingGroupMemos {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, _ := groups.ResolveRemoteID(st.GroupIDAliases, pm.GroupID)
		if groups.IsLocalID(target) {
			continue
		}

		wire, err := e.encodeContent(pm.MemoID, pm.Content)
		var m *client.Memo
		if err == nil {
			m, err = e.remote.CreateGroupMemo(ctx, target, wire)
		}
		if err != nil {
			// A rejected memo is dropped, not retried.
			if err := e.itemFailed(ctx, res, nil, err, "group memo dropped", "group", target, "memo", pm.MemoID); err != nil {
				return err
			}
		}

		err = e.store.Update(ctx, e.cfg.AccountKey, func(st *models.AccountState) error {
			st.PendingGroupMemos = removePendingMemo(st.PendingGroupMemos, pm.MemoID)
			if m != nil {
				if st.CachedGroupMemos == nil {
					st.CachedGroupMemos = make(map[string][]models.CachedMemoItem)
				}
				item := cachedFromRemote(m)
				item.Content = pm.Content
				st.CachedGroupMemos[target] = append(st.CachedGroupMemos[target], item)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func removePendingMemo(list []models.PendingGroupMemo, memoID string) []models.PendingGroupMemo {
	out := list[:0:0]
	for _, pm := range list {
		if pm.MemoID != memoID {
			out = append(out, pm)
		}
	}
	return out
}

func cachedFromRemote(m *client.Memo) models.CachedMemoItem {
	date := m.DisplayTime
	if date.IsZero() {
		date = m.CreateTime
	}
	return models.CachedMemoItem{
		RemoteID:   m.Name,
		Content:    m.Content,
		Date:       date,
		Pinned:     m.Pinned,
		Archived:   m.State == client.StateArchived,
		Visibility: models.ParseVisibility(m.Visibility),
		Tags:       m.Tags,
		Creator:    m.Creator,
	}
}

// fetchGroupSnapshots lists the memos of every known server-side group.
// Failures only leave the previous snapshot in place.
func (e *Engine) fetchGroupSnapshots(ctx context.Context) map[string][]models.CachedMemoItem {
	st, err := e.store.Load(ctx, e.cfg.AccountKey)
	if err != nil {
		e.log.Warn(ctx, "failed to load groups for snapshot", "error", err)
		return nil
	}

	out := make(map[string][]models.CachedMemoItem)
	for _, g := range st.Groups {
		if groups.IsLocalID(g.ID) {
			continue
		}
		list, err := e.remote.ListGroupMemos(ctx, g.ID)
		if err != nil {
			e.log.Warn(ctx, "failed to refresh group memos", "group", g.ID, "error", err)
			continue
		}
		items := make([]models.CachedMemoItem, 0, len(list))
		for i := range list {
			plain, err := e.decodeRemote(&list[i])
			if err != nil {
				e.log.Warn(ctx, "skipping undecodable group memo", "group", g.ID, "error", err)
				continue
			}
			items = append(items, cachedFromRemote(plain))
		}
		out[g.ID] = items
	}
	return out
}
