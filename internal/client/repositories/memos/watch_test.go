package memos

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []models.Memo) []models.Memo {
	t.Helper()
	select {
	case list, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return list
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch update")
		return nil
	}
}

func TestSQLiteRepository_Watch(t *testing.T) {
	repo, _ := setupRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := repo.Watch(ctx, testAccount)
	assert.Empty(t, receive(t, ch))

	require.NoError(t, repo.Upsert(context.Background(), newMemo("m1", "x", time.UnixMilli(1000))))

	require.Eventually(t, func() bool {
		select {
		case list := <-ch:
			return len(list) == 1 && list[0].Identifier == "m1"
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSQLiteRepository_Watch_ClosesOnCancel(t *testing.T) {
	repo, _ := setupRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := repo.Watch(ctx, testAccount)
	receive(t, ch)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
