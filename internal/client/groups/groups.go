// Package groups reconciles locally minted group ids with the ids the server
// assigns, and purges group references from the account state.
package groups

import (
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/google/uuid"
)

// LinkedGroupIDs returns id plus both endpoints of every alias that has id on
// either side. The expansion is one hop: chains like A-B, B-C are not
// followed from A to C.
func LinkedGroupIDs(aliases []models.GroupIDAlias, id string) map[string]struct{} {
	linked := map[string]struct{}{id: {}}
	for _, a := range aliases {
		if a.LocalID == id || a.RemoteID == id {
			linked[a.LocalID] = struct{}{}
			linked[a.RemoteID] = struct{}{}
		}
	}
	return linked
}

// RemoveGroupReferences drops everything in st that refers to groupID or an
// id linked to it: the group itself, pending memos, pinned keys, cached
// memos and tags, and the aliases.
func RemoveGroupReferences(st *models.AccountState, groupID string) {
	linked := LinkedGroupIDs(st.GroupIDAliases, groupID)
	has := func(id string) bool {
		_, ok := linked[id]
		return ok
	}

	st.Groups = filter(st.Groups, func(g models.Group) bool { return !has(g.ID) })
	st.PendingGroupMemos = filter(st.PendingGroupMemos, func(m models.PendingGroupMemo) bool { return !has(m.GroupID) })
	st.PinnedGroupKeys = filter(st.PinnedGroupKeys, func(k string) bool { return !has(k) })
	st.GroupIDAliases = filter(st.GroupIDAliases, func(a models.GroupIDAlias) bool {
		return !has(a.LocalID) && !has(a.RemoteID)
	})

	for id := range linked {
		delete(st.CachedGroupMemos, id)
		delete(st.CachedGroupTags, id)
	}
}

// DropPendingOperations removes queued operations aimed at groupID or an id
// linked to it.
func DropPendingOperations(st *models.AccountState, groupID string) {
	linked := LinkedGroupIDs(st.GroupIDAliases, groupID)
	st.PendingOperations = filter(st.PendingOperations, func(op models.PendingGroupOperation) bool {
		_, ok := linked[op.GroupID]
		return !ok
	})
}

// referencedIDs collects every group id still used by st, aliases excluded.
func referencedIDs(st *models.AccountState) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, g := range st.Groups {
		ids[g.ID] = struct{}{}
	}
	for _, m := range st.PendingGroupMemos {
		ids[m.GroupID] = struct{}{}
	}
	for _, op := range st.PendingOperations {
		ids[op.GroupID] = struct{}{}
	}
	for _, k := range st.PinnedGroupKeys {
		ids[k] = struct{}{}
	}
	for k := range st.CachedGroupMemos {
		ids[k] = struct{}{}
	}
	for k := range st.CachedGroupTags {
		ids[k] = struct{}{}
	}
	return ids
}

// CleanupGroupAliases bounds the alias list. An alias survives when either
// endpoint is still referenced or it is younger than retention. Duplicate
// pairs collapse to the most recently added one. Survivors are ordered newest
// first and cut to maxEntries; maxEntries <= 0 means no limit.
func CleanupGroupAliases(st *models.AccountState, now time.Time, retention time.Duration, maxEntries int) {
	refs := referencedIDs(st)

	type pair struct{ local, remote string }
	latest := make(map[pair]int, len(st.GroupIDAliases))
	for i, a := range st.GroupIDAliases {
		latest[pair{a.LocalID, a.RemoteID}] = i
	}

	kept := make([]models.GroupIDAlias, 0, len(latest))
	for i, a := range st.GroupIDAliases {
		if latest[pair{a.LocalID, a.RemoteID}] != i {
			continue
		}
		_, localRef := refs[a.LocalID]
		_, remoteRef := refs[a.RemoteID]
		if localRef || remoteRef || now.Sub(a.UpdatedAt) < retention {
			kept = append(kept, a)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].UpdatedAt.After(kept[j].UpdatedAt)
	})
	if maxEntries > 0 && len(kept) > maxEntries {
		kept = kept[:maxEntries]
	}
	st.GroupIDAliases = kept
}

// RecordAlias remembers that localID is now known to the server as remoteID
// and renames the group entry.
func RecordAlias(st *models.AccountState, localID, remoteID string, now time.Time) {
	if localID == "" || remoteID == "" || localID == remoteID {
		return
	}
	st.GroupIDAliases = append(st.GroupIDAliases, models.GroupIDAlias{
		LocalID:   localID,
		RemoteID:  remoteID,
		UpdatedAt: now,
	})
	for i := range st.Groups {
		if st.Groups[i].ID == localID {
			st.Groups[i].ID = remoteID
		}
	}
}

// ResolveRemoteID maps id to its server id through the most recent alias
// whose local side is id. It reports false when no alias exists, in which
// case id is returned unchanged.
func ResolveRemoteID(aliases []models.GroupIDAlias, id string) (string, bool) {
	var (
		best  models.GroupIDAlias
		found bool
	)
	for _, a := range aliases {
		if a.LocalID != id {
			continue
		}
		if !found || !a.UpdatedAt.Before(best.UpdatedAt) {
			best, found = a, true
		}
	}
	if !found {
		return id, false
	}
	return best.RemoteID, true
}

// HasPendingCreate reports whether a CREATE for groupID is still queued,
// meaning the server has never seen the group.
func HasPendingCreate(st *models.AccountState, groupID string) bool {
	for _, op := range st.PendingOperations {
		if op.GroupID == groupID && op.Kind == models.OperationCreate {
			return true
		}
	}
	return false
}

func filter[T any](items []T, keep func(T) bool) []T {
	if items == nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// LocalIDPrefix marks group ids minted on this device.
const LocalIDPrefix = "local-"

// NewLocalID mints an id for a group the server has not seen yet.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was minted by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}
