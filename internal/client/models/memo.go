// Package models defines client-side data models used by the memosync engine.
package models

import "time"

// Visibility controls who can read a memo on the server.
type Visibility string

const (
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityProtected Visibility = "PROTECTED"
	VisibilityPublic    Visibility = "PUBLIC"
)

// ParseVisibility maps a free-form value to a Visibility, defaulting to
// VisibilityPrivate for anything unknown.
func ParseVisibility(s string) Visibility {
	switch Visibility(s) {
	case VisibilityProtected, VisibilityPublic:
		return Visibility(s)
	default:
		return VisibilityPrivate
	}
}

// GeoPoint is an optional memo location.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Memo is a note persisted locally and synced with the server.
type Memo struct {
	// Identifier is the process-local id assigned at creation. Never reused.
	Identifier string

	// RemoteID is the server-assigned id; empty until the server accepts the memo.
	RemoteID string

	// AccountKey scopes the memo to one account.
	AccountKey string

	Content    string
	Date       time.Time
	Visibility Visibility
	Pinned     bool
	Archived   bool
	Location   *GeoPoint

	// Creator is the remote user reference of the author, if known.
	Creator string

	// NeedsSync marks local changes not yet reflected on the remote.
	NeedsSync bool

	// IsDeleted marks the memo as a tombstone, kept until the remote delete
	// is acknowledged.
	IsDeleted bool

	LastModified time.Time
	LastSyncedAt *time.Time

	// Tags holds canonical tag names linked through memo_tags.
	Tags []string

	// Resources are the memo's attachments.
	Resources []Resource
}

// Touch records a local edit.
func (m *Memo) Touch(now time.Time) {
	m.LastModified = now
	m.NeedsSync = true
}

// Tombstone marks the memo deleted and dirty.
func (m *Memo) Tombstone(now time.Time) {
	m.IsDeleted = true
	m.Touch(now)
}

// Synced reports whether the memo was ever accepted by the server.
func (m *Memo) Synced() bool {
	return m.RemoteID != ""
}

// UnsyncedResources returns attachments that have not been uploaded yet.
func (m *Memo) UnsyncedResources() []Resource {
	var out []Resource
	for _, r := range m.Resources {
		if r.RemoteID == "" {
			out = append(out, r)
		}
	}
	return out
}

// Resource is an attachment owned by exactly one memo.
type Resource struct {
	Identifier   string
	RemoteID     string
	AccountKey   string
	MemoID       string
	Date         time.Time
	Filename     string
	URI          string
	LocalURI     string
	MimeType     string
	ThumbnailURI string
	Size         int64
}
