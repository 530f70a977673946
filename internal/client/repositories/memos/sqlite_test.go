package memos

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "keer:https://memos.example.com:1"

func setupRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()

	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "memos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLiteRepository(db), db
}

func newMemo(id, content string, date time.Time) *models.Memo {
	return &models.Memo{
		Identifier:   id,
		AccountKey:   testAccount,
		Content:      content,
		Date:         date,
		Visibility:   models.VisibilityPrivate,
		NeedsSync:    true,
		LastModified: date,
	}
}

func TestSQLiteRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	date := time.UnixMilli(1_700_000_000_000).UTC()
	m := newMemo("m1", "hello #work", date)
	m.Pinned = true
	m.Location = &models.GeoPoint{Latitude: 56.95, Longitude: 24.1}
	m.Tags = []string{"#work", "work", "home"}
	m.Resources = []models.Resource{{
		Identifier: "r1",
		Date:       date,
		Filename:   "a.png",
		MimeType:   "image/png",
		LocalURI:   "/tmp/a.png",
		Size:       42,
	}}

	require.NoError(t, repo.Upsert(ctx, m))

	got, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello #work", got.Content)
	assert.True(t, got.Pinned)
	assert.True(t, got.NeedsSync)
	assert.Equal(t, date, got.Date)
	assert.Nil(t, got.LastSyncedAt)
	require.NotNil(t, got.Location)
	assert.InDelta(t, 24.1, got.Location.Longitude, 1e-9)
	assert.Equal(t, []string{"work", "home"}, got.Tags)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "m1", got.Resources[0].MemoID)
	assert.Equal(t, int64(42), got.Resources[0].Size)
	assert.Empty(t, got.Resources[0].RemoteID)

	// Upserting the same memo again changes nothing.
	require.NoError(t, repo.Upsert(ctx, m))
	again, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.GetByID(context.Background(), testAccount, "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteRepository_AccountIsolation(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	require.NoError(t, repo.Upsert(ctx, newMemo("m1", "mine", time.UnixMilli(1000))))

	_, err := repo.GetByID(ctx, "local:other", "m1")
	require.ErrorIs(t, err, common.ErrNotFound)

	list, err := repo.ListActive(ctx, "local:other")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteRepository_ListOrdering(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	old := newMemo("old", "old", time.UnixMilli(1000))
	newer := newMemo("new", "new", time.UnixMilli(3000))
	pinned := newMemo("pinned", "pinned", time.UnixMilli(500))
	pinned.Pinned = true
	archived := newMemo("archived", "archived", time.UnixMilli(2000))
	archived.Archived = true
	gone := newMemo("gone", "gone", time.UnixMilli(4000))
	gone.IsDeleted = true

	for _, m := range []*models.Memo{old, newer, pinned, archived, gone} {
		require.NoError(t, repo.Upsert(ctx, m))
	}

	active, err := repo.ListActive(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, []string{"pinned", "new", "old"}, ids(active))

	arch, err := repo.ListArchived(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, []string{"archived"}, ids(arch))

	dirty, err := repo.ListDirty(ctx, testAccount)
	require.NoError(t, err)
	assert.Len(t, dirty, 5)

	n, err := repo.CountDirty(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestSQLiteRepository_GetByRemoteID(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	m := newMemo("m1", "x", time.UnixMilli(1000))
	m.RemoteID = "memos/9"
	require.NoError(t, repo.Upsert(ctx, m))

	got, err := repo.GetByRemoteID(ctx, testAccount, "memos/9")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.Identifier)

	_, err = repo.GetByRemoteID(ctx, testAccount, "memos/10")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteRepository_MarkSynced(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	m := newMemo("m1", "x", time.UnixMilli(1000))
	require.NoError(t, repo.Upsert(ctx, m))

	syncedAt := time.UnixMilli(5000).UTC()
	cleared, err := repo.MarkSynced(ctx, testAccount, "m1", "memos/1", syncedAt, m.LastModified)
	require.NoError(t, err)
	assert.True(t, cleared)

	got, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.False(t, got.NeedsSync)
	assert.Equal(t, "memos/1", got.RemoteID)
	require.NotNil(t, got.LastSyncedAt)
	assert.Equal(t, syncedAt, *got.LastSyncedAt)
}

func TestSQLiteRepository_MarkSynced_EditDuringUpload(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	m := newMemo("m1", "v1", time.UnixMilli(1000))
	require.NoError(t, repo.Upsert(ctx, m))
	seen := m.LastModified

	// The user edits the memo while the upload of v1 is in flight.
	m.Content = "v2"
	m.LastModified = time.UnixMilli(2000)
	require.NoError(t, repo.Upsert(ctx, m))

	cleared, err := repo.MarkSynced(ctx, testAccount, "m1", "memos/1", time.UnixMilli(3000), seen)
	require.NoError(t, err)
	assert.False(t, cleared)

	got, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.True(t, got.NeedsSync)
	assert.Equal(t, "memos/1", got.RemoteID)
	assert.Equal(t, "v2", got.Content)
}

func TestSQLiteRepository_MarkSynced_NotFound(t *testing.T) {
	repo, _ := setupRepo(t)

	_, err := repo.MarkSynced(context.Background(), testAccount, "nope", "memos/1", time.Now(), time.Now())
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteRepository_Delete_RemovesRelations(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	m := newMemo("m1", "x", time.UnixMilli(1000))
	m.Tags = []string{"solo"}
	m.Resources = []models.Resource{{Identifier: "r1", Date: time.UnixMilli(1000), Filename: "f"}}
	require.NoError(t, repo.Upsert(ctx, m))

	require.NoError(t, repo.Delete(ctx, testAccount, "m1"))

	_, err := repo.GetByID(ctx, testAccount, "m1")
	require.ErrorIs(t, err, common.ErrNotFound)

	assert.Equal(t, 0, countRows(t, db, "resources"))
	assert.Equal(t, 0, countRows(t, db, "memo_tags"))
	assert.Equal(t, 0, countRows(t, db, "tags"))
}

func TestSQLiteRepository_PruneRemote(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	kept := newMemo("kept", "k", time.UnixMilli(1000))
	kept.RemoteID, kept.NeedsSync = "memos/1", false
	stale := newMemo("stale", "s", time.UnixMilli(1000))
	stale.RemoteID, stale.NeedsSync = "memos/2", false
	staleDirty := newMemo("dirty", "d", time.UnixMilli(1000))
	staleDirty.RemoteID = "memos/3"
	localOnly := newMemo("local", "l", time.UnixMilli(1000))
	localOnly.NeedsSync = false

	for _, m := range []*models.Memo{kept, stale, staleDirty, localOnly} {
		require.NoError(t, repo.Upsert(ctx, m))
	}

	n, err := repo.PruneRemote(ctx, testAccount, map[string]struct{}{"memos/1": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := repo.ListActive(ctx, testAccount)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"kept", "dirty", "local"}, ids(active))
}

func TestSQLiteRepository_Resources(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	require.NoError(t, repo.Upsert(ctx, newMemo("m1", "x", time.UnixMilli(1000))))

	res := &models.Resource{
		Identifier: "r1",
		AccountKey: testAccount,
		MemoID:     "m1",
		Date:       time.UnixMilli(1000),
		Filename:   "a.txt",
		LocalURI:   "/tmp/a.txt",
	}
	require.NoError(t, repo.UpsertResource(ctx, res))

	m, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	require.Len(t, m.UnsyncedResources(), 1)

	require.NoError(t, repo.MarkResourceSynced(ctx, testAccount, "r1", "resources/7", "https://x/7"))
	list, err := repo.ListResources(ctx, testAccount, "m1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "resources/7", list[0].RemoteID)
	assert.Equal(t, "https://x/7", list[0].URI)

	err = repo.MarkResourceSynced(ctx, testAccount, "missing", "resources/8", "")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, repo.DeleteResource(ctx, testAccount, "r1"))
	list, err = repo.ListResources(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteRepository_Upsert_DropsMissingResources(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	m := newMemo("m1", "x", time.UnixMilli(1000))
	m.Resources = []models.Resource{
		{Identifier: "r1", RemoteID: "resources/8", Date: time.UnixMilli(1000), Filename: "a.png"},
		{Identifier: "r2", RemoteID: "resources/9", Date: time.UnixMilli(2000), Filename: "b.png"},
	}
	require.NoError(t, repo.Upsert(ctx, m))
	other := newMemo("m2", "y", time.UnixMilli(1000))
	other.Resources = []models.Resource{{Identifier: "r3", Date: time.UnixMilli(1000), Filename: "c.png"}}
	require.NoError(t, repo.Upsert(ctx, other))

	m.Resources = m.Resources[:1]
	require.NoError(t, repo.Upsert(ctx, m))

	list, err := repo.ListResources(ctx, testAccount, "m1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "r1", list[0].Identifier)

	m.Resources = nil
	require.NoError(t, repo.Upsert(ctx, m))
	list, err = repo.ListResources(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Empty(t, list)

	// The other memo's attachment is untouched.
	assert.Equal(t, 1, countRows(t, db, "resources"))
}

func TestSQLiteRepository_UpsertIfUnchanged(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	m := newMemo("m1", "v1", time.UnixMilli(1000))
	require.NoError(t, repo.Upsert(ctx, m))
	seen := m.LastModified

	// A concurrent edit moves last_modified on.
	edit := newMemo("m1", "concurrent edit", time.UnixMilli(1000))
	edit.LastModified = time.UnixMilli(5000)
	require.NoError(t, repo.Upsert(ctx, edit))

	stale := newMemo("m1", "stale write", time.UnixMilli(1000))
	written, err := repo.UpsertIfUnchanged(ctx, stale, seen)
	require.NoError(t, err)
	assert.False(t, written)

	got, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Equal(t, "concurrent edit", got.Content)

	fresh := newMemo("m1", "fresh write", time.UnixMilli(1000))
	fresh.LastModified = time.UnixMilli(6000)
	written, err = repo.UpsertIfUnchanged(ctx, fresh, got.LastModified)
	require.NoError(t, err)
	assert.True(t, written)

	got, err = repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Equal(t, "fresh write", got.Content)

	_, err = repo.UpsertIfUnchanged(ctx, newMemo("missing", "x", time.UnixMilli(1000)), seen)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteRepository_PointLookupLoadsOnlyItsRelations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	memoCols := []string{"identifier", "remote_id", "account_key", "content", "date", "visibility", "pinned",
		"archived", "latitude", "longitude", "creator", "needs_sync", "is_deleted", "last_modified", "last_synced_at"}
	resourceCols := []string{"identifier", "remote_id", "account_key", "date", "filename", "uri", "local_uri",
		"mime_type", "thumbnail_uri", "size", "memo_id"}

	mock.ExpectQuery(`FROM memos WHERE account_key = \? AND remote_id = \?`).
		WithArgs(testAccount, "memos/1").
		WillReturnRows(sqlmock.NewRows(memoCols).
			AddRow("m1", "memos/1", testAccount, "x", 1000, "PRIVATE", 0, 0, nil, nil, "", 0, 0, 1000, nil))
	mock.ExpectQuery(`FROM memo_tags WHERE account_key = \? AND memo_id IN \(\?\)`).
		WithArgs(testAccount, "m1").
		WillReturnRows(sqlmock.NewRows([]string{"memo_id", "tag_name"}).AddRow("m1", "work"))
	mock.ExpectQuery(`FROM resources\s+WHERE account_key = \? AND memo_id IN \(\?\)`).
		WithArgs(testAccount, "m1").
		WillReturnRows(sqlmock.NewRows(resourceCols))

	repo := NewSQLiteRepository(db)
	m, err := repo.GetByRemoteID(context.Background(), testAccount, "memos/1")
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, m.Tags)
	assert.Empty(t, m.Resources)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_WipeAccount(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	mine := newMemo("m1", "x", time.UnixMilli(1000))
	mine.Tags = []string{"a"}
	require.NoError(t, repo.Upsert(ctx, mine))

	other := newMemo("m2", "y", time.UnixMilli(1000))
	other.AccountKey = "local:other"
	other.Tags = []string{"a"}
	require.NoError(t, repo.Upsert(ctx, other))

	require.NoError(t, repo.WipeAccount(ctx, testAccount))

	list, err := repo.ListDirty(ctx, testAccount)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.ListDirty(ctx, "local:other")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, countRows(t, db, "tags"))
}

func TestSQLiteRepository_GetByID_OrphanedTagLink(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	require.NoError(t, repo.Upsert(ctx, newMemo("m1", "x", time.UnixMilli(1000))))

	// Simulate a damaged file: a link whose tag row does not exist.
	_, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO memo_tags (memo_id, account_key, tag_name, created_at) VALUES ('m1', ?, 'ghost', 0)`, testAccount)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `PRAGMA foreign_keys = ON`)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, testAccount, "m1")
	require.ErrorIs(t, err, common.ErrLocalStorageCorruption)
}

func ids(list []models.Memo) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m.Identifier)
	}
	return out
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}
