package models

import "time"

// Tag is a canonical tag name scoped per account.
type Tag struct {
	AccountKey string
	Name       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MemoTag links a memo to a tag.
type MemoTag struct {
	MemoID     string
	AccountKey string
	TagName    string
	CreatedAt  time.Time
}

// TagUsage is a tag ranked by recent use.
type TagUsage struct {
	Name       string
	Count      int
	LastUsedAt time.Time
}
