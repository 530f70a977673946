package memos

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

// Repository describes the local memo store. Every method is scoped by
// account key. Lookups return common.ErrNotFound for missing rows.
type Repository interface {
	// ListActive returns non-archived, non-tombstoned memos, pinned first,
	// then by date descending.
	ListActive(ctx context.Context, accountKey string) ([]models.Memo, error)

	// ListArchived returns archived, non-tombstoned memos by date descending.
	ListArchived(ctx context.Context, accountKey string) ([]models.Memo, error)

	// ListDirty returns memos with needs_sync set, tombstones included, in
	// modification order.
	ListDirty(ctx context.Context, accountKey string) ([]models.Memo, error)

	// CountDirty returns the number of memos with needs_sync set.
	CountDirty(ctx context.Context, accountKey string) (int, error)

	// GetByID returns a memo with its tags and resources. It returns an error
	// wrapping common.ErrLocalStorageCorruption when the memo's rows break a
	// local invariant.
	GetByID(ctx context.Context, accountKey, id string) (*models.Memo, error)

	// GetByRemoteID looks a memo up by its server-assigned id.
	GetByRemoteID(ctx context.Context, accountKey, remoteID string) (*models.Memo, error)

	// Upsert inserts or replaces the memo row, its tag set and the resources
	// it carries, atomically. Resources of the memo not carried are removed.
	// Calling it twice with the same memo is a no-op.
	Upsert(ctx context.Context, memo *models.Memo) error

	// UpsertIfUnchanged behaves like Upsert but writes only when the stored
	// last_modified still equals seenModified. It reports whether it wrote.
	UpsertIfUnchanged(ctx context.Context, memo *models.Memo, seenModified time.Time) (bool, error)

	// MarkSynced stores the server id and sync time. needs_sync is cleared
	// only when last_modified still equals seenModified, so an edit made
	// during the upload stays dirty. It reports whether the flag was cleared.
	MarkSynced(ctx context.Context, accountKey, id, remoteID string, syncedAt, seenModified time.Time) (bool, error)

	// Delete physically removes a memo with its resources and tag links.
	Delete(ctx context.Context, accountKey, id string) error

	// PruneRemote removes clean, non-tombstoned memos that have a remote id
	// not present in keep. Memos never accepted by the server are untouched.
	PruneRemote(ctx context.Context, accountKey string, keep map[string]struct{}) (int, error)

	UpsertResource(ctx context.Context, resource *models.Resource) error
	MarkResourceSynced(ctx context.Context, accountKey, id, remoteID, uri string) error
	DeleteResource(ctx context.Context, accountKey, id string) error
	ListResources(ctx context.Context, accountKey, memoID string) ([]models.Resource, error)

	// WipeAccount removes every memo, resource and tag of the account.
	WipeAccount(ctx context.Context, accountKey string) error

	// ReplaceMemoTags atomically replaces the memo's tag set with the
	// normalized, deduplicated tags and prunes unreferenced tags.
	ReplaceMemoTags(ctx context.Context, accountKey, memoID string, tags []string) error

	// ListTagsByRecentUsage ranks tags by the number of non-deleted memos
	// dated at or after since, then by the latest such date, then by name.
	ListTagsByRecentUsage(ctx context.Context, accountKey string, since time.Time) ([]models.TagUsage, error)

	// Watch emits the ListActive result on subscribe and after every
	// committed write for the account, until ctx is done.
	Watch(ctx context.Context, accountKey string) <-chan []models.Memo
}
