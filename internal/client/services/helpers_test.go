package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/memos"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/memosync/internal/client/state"
	"github.com/dmitrijs2005/memosync/internal/client/storage"
	"github.com/stretchr/testify/require"
)

const testAccount = "keer:memos.example.com:1"

var testNow = time.UnixMilli(1_700_000_000_000).UTC()

type testDeps struct {
	db    *sql.DB
	memos *memos.SQLiteRepository
	meta  *metadata.SQLiteRepository
	store *state.Store
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "memos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	meta := metadata.NewSQLiteRepository(db)
	return &testDeps{
		db:    db,
		memos: memos.NewSQLiteRepository(db),
		meta:  meta,
		store: state.NewStore(meta),
	}
}

// fakeClient answers the few remote calls the services make. Anything else
// panics through the nil embedded interface.
type fakeClient struct {
	client.Client

	user    *client.User
	userErr error
	pages   []client.ListMemosResponse
	filters []string
	closed  bool
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) CurrentUser(context.Context) (*client.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeClient) ListMemos(_ context.Context, req client.ListMemosRequest) (*client.ListMemosResponse, error) {
	f.filters = append(f.filters, req.Filter)
	i := 0
	if req.PageToken != "" {
		i = int(req.PageToken[0] - '0')
	}
	page := f.pages[i]
	return &page, nil
}
