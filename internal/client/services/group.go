package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/groups"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/queue"
	"github.com/dmitrijs2005/memosync/internal/client/state"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/tags"
	"github.com/google/uuid"
)

// GroupService applies group changes to the account state at once and
// queues the matching remote operation for the next sync pass.
type GroupService interface {
	List(ctx context.Context) ([]models.Group, error)
	Create(ctx context.Context, name, description string) (models.Group, error)
	Join(ctx context.Context, inviteCode string) (models.Group, error)
	Update(ctx context.Context, id, name, description string) error
	AddTag(ctx context.Context, id, tag string) error
	// Leave purges the group locally. The server is told only if it has
	// ever seen the group.
	Leave(ctx context.Context, id string) error
	SetPinned(ctx context.Context, id string, pinned bool) error
	PostMemo(ctx context.Context, id, content string) (models.PendingGroupMemo, error)
	// Memos returns the cached memos of the group under any of its ids,
	// followed by memos still waiting to be posted.
	Memos(ctx context.Context, id string) ([]models.CachedMemoItem, error)
}

type groupService struct {
	accountKey string
	store      *state.Store
	now        func() time.Time
}

func NewGroupService(accountKey string, store *state.Store) GroupService {
	return &groupService{accountKey: accountKey, store: store, now: time.Now}
}

func (s *groupService) update(ctx context.Context, fn func(st *models.AccountState) error) error {
	return s.store.Update(ctx, s.accountKey, fn)
}

// find looks id up directly and then through its aliases, so an id handed
// out before the server assigned one keeps working.
func find(st *models.AccountState, id string) (*models.Group, bool) {
	if g, ok := st.FindGroup(id); ok {
		return g, true
	}
	if remote, ok := groups.ResolveRemoteID(st.GroupIDAliases, id); ok {
		return st.FindGroup(remote)
	}
	return nil, false
}

func (s *groupService) List(ctx context.Context) ([]models.Group, error) {
	st, err := s.store.Load(ctx, s.accountKey)
	if err != nil {
		return nil, err
	}

	list := slices.Clone(st.Groups)
	pinned := func(g models.Group) bool { return slices.Contains(st.PinnedGroupKeys, g.ID) }
	slices.SortStableFunc(list, func(a, b models.Group) int {
		switch pa, pb := pinned(a), pinned(b); {
		case pa && !pb:
			return -1
		case pb && !pa:
			return 1
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return list, nil
}

func (s *groupService) Create(ctx context.Context, name, description string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, fmt.Errorf("empty group name: %w", common.ErrInvalidArgument)
	}

	now := s.now().UTC()
	g := models.Group{ID: groups.NewLocalID(), Name: name, Description: description, JoinedAt: now}

	err := s.update(ctx, func(st *models.AccountState) error {
		st.Groups = append(st.Groups, g)
		queue.Append(st, models.PendingGroupOperation{
			GroupID:     g.ID,
			Kind:        models.OperationCreate,
			Name:        name,
			Description: description,
		}, now)
		return nil
	})
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to create group: %w", err)
	}
	return g, nil
}

func (s *groupService) Join(ctx context.Context, inviteCode string) (models.Group, error) {
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" {
		return models.Group{}, fmt.Errorf("empty invite code: %w", common.ErrInvalidArgument)
	}

	now := s.now().UTC()
	// The real name arrives with the server's answer.
	g := models.Group{ID: groups.NewLocalID(), Name: inviteCode, JoinedAt: now}

	err := s.update(ctx, func(st *models.AccountState) error {
		st.Groups = append(st.Groups, g)
		queue.Append(st, models.PendingGroupOperation{
			GroupID:    g.ID,
			Kind:       models.OperationJoin,
			InviteCode: inviteCode,
		}, now)
		return nil
	})
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to join group: %w", err)
	}
	return g, nil
}

func (s *groupService) Update(ctx context.Context, id, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty group name: %w", common.ErrInvalidArgument)
	}

	return s.update(ctx, func(st *models.AccountState) error {
		g, ok := find(st, id)
		if !ok {
			return fmt.Errorf("group %s: %w", id, common.ErrNotFound)
		}
		g.Name = name
		g.Description = description
		queue.Append(st, models.PendingGroupOperation{
			GroupID:     g.ID,
			Kind:        models.OperationUpdate,
			Name:        name,
			Description: description,
		}, s.now().UTC())
		return nil
	})
}

func (s *groupService) AddTag(ctx context.Context, id, tag string) error {
	tag = tags.NormalizeTagName(tag)
	if !tags.IsValidTagName(tag) {
		return fmt.Errorf("tag %q: %w", tag, common.ErrInvalidArgument)
	}

	return s.update(ctx, func(st *models.AccountState) error {
		g, ok := find(st, id)
		if !ok {
			return fmt.Errorf("group %s: %w", id, common.ErrNotFound)
		}
		if slices.Contains(g.Tags, tag) {
			return nil
		}
		g.Tags = append(g.Tags, tag)
		if st.CachedGroupTags == nil {
			st.CachedGroupTags = make(map[string][]string)
		}
		st.CachedGroupTags[g.ID] = append(st.CachedGroupTags[g.ID], tag)
		queue.Append(st, models.PendingGroupOperation{GroupID: g.ID, Kind: models.OperationAddTag, Tag: tag}, s.now().UTC())
		return nil
	})
}

func (s *groupService) Leave(ctx context.Context, id string) error {
	return s.update(ctx, func(st *models.AccountState) error {
		target, _ := groups.ResolveRemoteID(st.GroupIDAliases, id)
		if g, ok := find(st, id); ok {
			target = g.ID
		}

		// A group whose CREATE or JOIN never left the device is unknown to
		// the server.
		localOnly := groups.IsLocalID(target)

		groups.DropPendingOperations(st, target)
		groups.RemoveGroupReferences(st, target)

		if !localOnly {
			queue.Append(st, models.PendingGroupOperation{GroupID: target, Kind: models.OperationDeleteOrLeave}, s.now().UTC())
		}
		return nil
	})
}

func (s *groupService) SetPinned(ctx context.Context, id string, pinned bool) error {
	return s.update(ctx, func(st *models.AccountState) error {
		g, ok := find(st, id)
		if !ok {
			return fmt.Errorf("group %s: %w", id, common.ErrNotFound)
		}
		st.PinnedGroupKeys = slices.DeleteFunc(st.PinnedGroupKeys, func(k string) bool { return k == g.ID })
		if pinned {
			st.PinnedGroupKeys = append(st.PinnedGroupKeys, g.ID)
		}
		return nil
	})
}

func (s *groupService) PostMemo(ctx context.Context, id, content string) (models.PendingGroupMemo, error) {
	if strings.TrimSpace(content) == "" {
		return models.PendingGroupMemo{}, fmt.Errorf("empty memo: %w", common.ErrInvalidArgument)
	}

	var pm models.PendingGroupMemo
	err := s.update(ctx, func(st *models.AccountState) error {
		g, ok := find(st, id)
		if !ok {
			return fmt.Errorf("group %s: %w", id, common.ErrNotFound)
		}
		pm = models.PendingGroupMemo{
			GroupID:   g.ID,
			MemoID:    uuid.NewString(),
			Content:   content,
			CreatedAt: s.now().UTC(),
		}
		st.PendingGroupMemos = append(st.PendingGroupMemos, pm)
		return nil
	})
	if err != nil {
		return models.PendingGroupMemo{}, err
	}
	return pm, nil
}

func (s *groupService) Memos(ctx context.Context, id string) ([]models.CachedMemoItem, error) {
	st, err := s.store.Load(ctx, s.accountKey)
	if err != nil {
		return nil, err
	}

	linked := groups.LinkedGroupIDs(st.GroupIDAliases, id)
	if g, ok := find(&st, id); ok {
		for k := range groups.LinkedGroupIDs(st.GroupIDAliases, g.ID) {
			linked[k] = struct{}{}
		}
	}

	var out []models.CachedMemoItem
	for k := range linked {
		out = append(out, st.CachedGroupMemos[k]...)
	}
	slices.SortStableFunc(out, func(a, b models.CachedMemoItem) int {
		return b.Date.Compare(a.Date)
	})

	for _, pm := range st.PendingGroupMemos {
		if _, ok := linked[pm.GroupID]; ok {
			out = append(out, models.CachedMemoItem{Identifier: pm.MemoID, Content: pm.Content, Date: pm.CreatedAt})
		}
	}
	return out, nil
}
