package models

// AccountState is the per-account settings document. It is the durable
// source of truth for offline queue state and is stored as JSON.
type AccountState struct {
	Groups            []Group                 `json:"groups,omitempty"`
	PendingGroupMemos []PendingGroupMemo      `json:"pending_group_memos,omitempty"`
	PendingOperations []PendingGroupOperation `json:"pending_operations,omitempty"`
	GroupIDAliases    []GroupIDAlias          `json:"group_id_aliases,omitempty"`
	PinnedGroupKeys   []string                `json:"pinned_group_keys,omitempty"`

	// CachedGroupMemos and CachedGroupTags are keyed by group id.
	CachedGroupMemos map[string][]CachedMemoItem `json:"cached_group_memos,omitempty"`
	CachedGroupTags  map[string][]string         `json:"cached_group_tags,omitempty"`

	// CachedMemos is the timeline snapshot for cold start.
	CachedMemos []CachedMemoItem `json:"cached_memos,omitempty"`

	SyncAnchor       string   `json:"sync_anchor,omitempty"`
	LastFullPullAt   string   `json:"last_full_pull_at,omitempty"`
	Draft            string   `json:"draft,omitempty"`
	AcceptedVersions []string `json:"accepted_versions,omitempty"`
}

// FindGroup returns the group with the given id.
func (s *AccountState) FindGroup(id string) (*Group, bool) {
	for i := range s.Groups {
		if s.Groups[i].ID == id {
			return &s.Groups[i], true
		}
	}
	return nil, false
}
