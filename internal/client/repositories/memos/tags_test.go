package memos

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRepository_ReplaceMemoTags(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	m := newMemo("m1", "x", time.UnixMilli(1000))
	m.Tags = []string{"old"}
	require.NoError(t, repo.Upsert(ctx, m))

	require.NoError(t, repo.ReplaceMemoTags(ctx, testAccount, "m1", []string{"#work", "work", "home/#garden", "bad.tag"}))

	got, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "home/garden"}, got.Tags)
	// "old" lost its only link.
	assert.Equal(t, 2, countRows(t, db, "tags"))

	// Same input twice leaves the same state.
	require.NoError(t, repo.ReplaceMemoTags(ctx, testAccount, "m1", []string{"#work", "work", "home/#garden"}))
	again, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Equal(t, got.Tags, again.Tags)
	assert.Equal(t, 2, countRows(t, db, "memo_tags"))
}

func TestSQLiteRepository_ReplaceMemoTags_SharedTagSurvives(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	a := newMemo("a", "a", time.UnixMilli(1000))
	a.Tags = []string{"shared"}
	b := newMemo("b", "b", time.UnixMilli(1000))
	b.Tags = []string{"shared"}
	require.NoError(t, repo.Upsert(ctx, a))
	require.NoError(t, repo.Upsert(ctx, b))

	require.NoError(t, repo.ReplaceMemoTags(ctx, testAccount, "a", nil))

	assert.Equal(t, 1, countRows(t, db, "tags"))
	got, err := repo.GetByID(ctx, testAccount, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, got.Tags)
}

func TestSQLiteRepository_ReplaceMemoTags_MissingMemo(t *testing.T) {
	repo, _ := setupRepo(t)

	err := repo.ReplaceMemoTags(context.Background(), testAccount, "missing", []string{"x"})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteRepository_ListTagsByRecentUsage(t *testing.T) {
	ctx := context.Background()
	repo, _ := setupRepo(t)

	since := time.UnixMilli(10_000)

	m1 := newMemo("m1", "", time.UnixMilli(11_000))
	m1.Tags = []string{"alpha", "Beta"}
	m2 := newMemo("m2", "", time.UnixMilli(12_000))
	m2.Tags = []string{"alpha", "gamma"}
	m3 := newMemo("m3", "", time.UnixMilli(12_000))
	m3.Tags = []string{"beta"}
	tooOld := newMemo("m4", "", time.UnixMilli(9_000))
	tooOld.Tags = []string{"ancient", "gamma", "gamma"}
	deleted := newMemo("m5", "", time.UnixMilli(13_000))
	deleted.Tags = []string{"ghost"}
	deleted.IsDeleted = true

	for _, m := range []*models.Memo{m1, m2, m3, tooOld, deleted} {
		require.NoError(t, repo.Upsert(ctx, m))
	}

	usage, err := repo.ListTagsByRecentUsage(ctx, testAccount, since)
	require.NoError(t, err)

	names := make([]string, 0, len(usage))
	for _, u := range usage {
		names = append(names, u.Name)
	}
	// alpha: 2 uses. beta and gamma: 1 use at 12000. Beta: 1 use at 11000.
	assert.Equal(t, []string{"alpha", "beta", "gamma", "Beta"}, names)
	assert.Equal(t, 2, usage[0].Count)
	assert.Equal(t, time.UnixMilli(12_000).UTC(), usage[0].LastUsedAt)
}

func TestSQLiteRepository_ReplaceMemoTags_FailureKeepsPreviousSet(t *testing.T) {
	ctx := context.Background()
	repo, db := setupRepo(t)

	m := newMemo("m1", "x", time.UnixMilli(1000))
	m.Tags = []string{"old"}
	require.NoError(t, repo.Upsert(ctx, m))

	_, err := db.ExecContext(ctx, `
		CREATE TRIGGER reject_boom BEFORE INSERT ON memo_tags
		WHEN NEW.tag_name = 'boom'
		BEGIN SELECT RAISE(ABORT, 'tag rejected'); END`)
	require.NoError(t, err)

	err = repo.ReplaceMemoTags(ctx, testAccount, "m1", []string{"fresh", "boom"})
	require.Error(t, err)

	got, err := repo.GetByID(ctx, testAccount, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, got.Tags)
	assert.Equal(t, 1, countRows(t, db, "tags"))
	assert.Equal(t, 1, countRows(t, db, "memo_tags"))
}
