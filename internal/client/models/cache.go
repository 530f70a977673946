package models

import "time"

// CachedMemoItem is a denormalized memo snapshot used for cold-start
// rendering. Resources are intentionally not part of it.
type CachedMemoItem struct {
	Identifier string     `json:"identifier"`
	RemoteID   string     `json:"remote_id,omitempty"`
	Content    string     `json:"content"`
	Date       time.Time  `json:"date"`
	Pinned     bool       `json:"pinned"`
	Archived   bool       `json:"archived,omitempty"`
	Visibility Visibility `json:"visibility"`
	Tags       []string   `json:"tags,omitempty"`
	Creator    string     `json:"creator,omitempty"`
}

// ToCachedMemoItem snapshots the memo.
func (m *Memo) ToCachedMemoItem() CachedMemoItem {
	return CachedMemoItem{
		Identifier: m.Identifier,
		RemoteID:   m.RemoteID,
		Content:    m.Content,
		Date:       m.Date,
		Pinned:     m.Pinned,
		Archived:   m.Archived,
		Visibility: m.Visibility,
		Tags:       append([]string(nil), m.Tags...),
		Creator:    m.Creator,
	}
}

// ToMemo rebuilds a memo from the snapshot. The result carries no resources
// and no sync bookkeeping.
func (c CachedMemoItem) ToMemo() Memo {
	return Memo{
		Identifier: c.Identifier,
		RemoteID:   c.RemoteID,
		Content:    c.Content,
		Date:       c.Date,
		Pinned:     c.Pinned,
		Archived:   c.Archived,
		Visibility: c.Visibility,
		Tags:       append([]string(nil), c.Tags...),
		Creator:    c.Creator,
	}
}
