package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/memos"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/filex"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoService(t *testing.T, remote client.Client) (*memoService, *testDeps, string) {
	t.Helper()
	d := newTestDeps(t)
	dir := t.TempDir()
	svc := NewMemoService(testAccount, d.memos, d.store, filex.NewReader(dir), remote, logging.Nop()).(*memoService)
	svc.now = func() time.Time { return testNow }
	return svc, d, dir
}

func TestMemoService_CreateMarksDirtyAndCollectsTags(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, MemoInput{Content: "groceries #home", Tags: []string{"#errands"}})
	require.NoError(t, err)

	got, err := svc.Get(ctx, m.Identifier)
	require.NoError(t, err)
	assert.True(t, got.NeedsSync)
	assert.Equal(t, models.VisibilityPrivate, got.Visibility)
	assert.ElementsMatch(t, []string{"home", "errands"}, got.Tags)
	assert.True(t, testNow.Equal(got.LastModified))
}

func TestMemoService_CreateRejectsEmptyContent(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)

	_, err := svc.Create(context.Background(), MemoInput{Content: "  \n"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestMemoService_EditKeepsCollaborators(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, MemoInput{Content: "draft #work"})
	require.NoError(t, err)
	require.NoError(t, svc.ShareWith(ctx, m.Identifier, []string{"users/7"}))

	_, err = svc.Edit(ctx, m.Identifier, MemoInput{Content: "final #ideas"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, m.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "final #ideas", got.Content)
	assert.ElementsMatch(t, []string{"ideas", "collab/7"}, got.Tags)

	ids, err := svc.Collaborators(ctx, m.Identifier)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, ids)
}

func TestMemoService_PinAndArchive(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, MemoInput{Content: "a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, MemoInput{Content: "b"})
	require.NoError(t, err)

	require.NoError(t, svc.SetPinned(ctx, b.Identifier, true))
	require.NoError(t, svc.SetArchived(ctx, a.Identifier, true))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.Identifier, active[0].Identifier)
	assert.True(t, active[0].Pinned)

	archived, err := svc.ListArchived(ctx)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, a.Identifier, archived[0].Identifier)
}

func TestMemoService_DeleteNeverSyncedRemovesRow(t *testing.T) {
	svc, d, dir := newTestMemoService(t, nil)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0o600))

	m, err := svc.Create(ctx, MemoInput{Content: "with photo"})
	require.NoError(t, err)
	res, err := svc.Attach(ctx, m.Identifier, src)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, m.Identifier))

	_, err = d.memos.GetByID(ctx, testAccount, m.Identifier)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = os.Stat(filepath.Join(dir, res.LocalURI))
	assert.True(t, os.IsNotExist(err))
}

func TestMemoService_DeleteSyncedLeavesTombstone(t *testing.T) {
	svc, d, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, MemoInput{Content: "synced"})
	require.NoError(t, err)
	cleared, err := d.memos.MarkSynced(ctx, testAccount, m.Identifier, "memos/1", testNow, m.LastModified)
	require.NoError(t, err)
	require.True(t, cleared)

	require.NoError(t, svc.Delete(ctx, m.Identifier))

	_, err = svc.Get(ctx, m.Identifier)
	assert.ErrorIs(t, err, common.ErrNotFound)

	row, err := d.memos.GetByID(ctx, testAccount, m.Identifier)
	require.NoError(t, err)
	assert.True(t, row.IsDeleted)
	assert.True(t, row.NeedsSync)
	assert.Equal(t, "memos/1", row.RemoteID)
}

func TestMemoService_AttachCopiesFile(t *testing.T) {
	svc, _, dir := newTestMemoService(t, nil)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(src, []byte("image-bytes"), 0o600))

	m, err := svc.Create(ctx, MemoInput{Content: "receipt"})
	require.NoError(t, err)

	res, err := svc.Attach(ctx, m.Identifier, src)
	require.NoError(t, err)
	assert.Equal(t, "scan.png", res.Filename)
	assert.Equal(t, "image/png", res.MimeType)
	assert.EqualValues(t, len("image-bytes"), res.Size)

	data, err := os.ReadFile(filepath.Join(dir, res.LocalURI))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	got, err := svc.Get(ctx, m.Identifier)
	require.NoError(t, err)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, res.LocalURI, got.Resources[0].LocalURI)
	assert.True(t, got.NeedsSync)
}

func TestMemoService_AttachMissingFile(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, MemoInput{Content: "receipt"})
	require.NoError(t, err)

	_, err = svc.Attach(ctx, m.Identifier, filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)

	got, err := svc.Get(ctx, m.Identifier)
	require.NoError(t, err)
	assert.Empty(t, got.Resources)
}

func TestMemoService_SharedWithNeedsRemote(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)

	_, err := svc.SharedWith(context.Background(), "7")
	assert.ErrorIs(t, err, common.ErrNoAccount)
}

func TestMemoService_SharedWithPages(t *testing.T) {
	remote := &fakeClient{pages: []client.ListMemosResponse{
		{Memos: []client.Memo{{Name: "memos/1", Content: "one", Visibility: "PROTECTED", DisplayTime: testNow}}, NextPageToken: "1"},
		{Memos: []client.Memo{{Name: "memos/2", Content: "two", State: client.StateArchived, CreateTime: testNow}}},
	}}
	svc, _, _ := newTestMemoService(t, remote)

	items, err := svc.SharedWith(context.Background(), "users/7")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "memos/1", items[0].RemoteID)
	assert.Equal(t, models.VisibilityProtected, items[0].Visibility)
	assert.True(t, items[1].Archived)
	assert.True(t, testNow.Equal(items[1].Date))
	assert.Equal(t, []string{`"collab/7" in tags`, `"collab/7" in tags`}, remote.filters)
}

func TestMemoService_RecentTags(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, MemoInput{Content: "#work one"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, MemoInput{Content: "#work #home two"})
	require.NoError(t, err)

	usage, err := svc.RecentTags(ctx, testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, "work", usage[0].Name)
	assert.Equal(t, 2, usage[0].Count)
}

func TestMemoService_Draft(t *testing.T) {
	svc, _, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	draft, err := svc.Draft(ctx)
	require.NoError(t, err)
	assert.Empty(t, draft)

	require.NoError(t, svc.SaveDraft(ctx, "half a thought"))
	draft, err = svc.Draft(ctx)
	require.NoError(t, err)
	assert.Equal(t, "half a thought", draft)
}

func TestMemoService_ListActiveDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM memos`).WillReturnError(errors.New("disk I/O error"))

	d := newTestDeps(t)
	svc := NewMemoService(testAccount, memos.NewSQLiteRepository(db), d.store, nil, nil, nil)

	_, err = svc.ListActive(context.Background())
	require.ErrorContains(t, err, "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}

// racingRepo rewrites the memo right after the service reads it, the way a
// sync pass landing between the read and the write would.
type racingRepo struct {
	*memos.SQLiteRepository

	races int
}

func (r *racingRepo) GetByID(ctx context.Context, accountKey, id string) (*models.Memo, error) {
	m, err := r.SQLiteRepository.GetByID(ctx, accountKey, id)
	if err != nil || r.races == 0 {
		return m, err
	}
	r.races--

	synced := *m
	synced.Content = "from server"
	synced.LastModified = m.LastModified.Add(time.Minute)
	synced.NeedsSync = false
	if err := r.SQLiteRepository.Upsert(ctx, &synced); err != nil {
		return nil, err
	}
	return m, nil
}

func TestMemoService_EditRetriesOnConcurrentWrite(t *testing.T) {
	svc, d, _ := newTestMemoService(t, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, MemoInput{Content: "mine"})
	require.NoError(t, err)

	repo := &racingRepo{SQLiteRepository: d.memos, races: 1}
	svc.memos = repo
	require.NoError(t, svc.SetPinned(ctx, m.Identifier, true))

	got, err := d.memos.GetByID(ctx, testAccount, m.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "from server", got.Content)
	assert.True(t, got.Pinned)
	assert.True(t, got.NeedsSync)

	repo.races = mutateAttempts
	err = svc.SetPinned(ctx, m.Identifier, false)
	assert.ErrorIs(t, err, common.ErrConcurrentModification)
}
