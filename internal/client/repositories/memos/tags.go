package memos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/dbx"
	"github.com/dmitrijs2005/memosync/internal/tags"
)

func (r *SQLiteRepository) ReplaceMemoTags(ctx context.Context, accountKey, memoID string, tagList []string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM memos WHERE account_key = ? AND identifier = ?`, accountKey, memoID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		return replaceTags(ctx, tx, accountKey, memoID, tagList, time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to replace memo tags: %w", err)
	}
	r.notify(accountKey)
	return nil
}

// replaceTags must run inside a transaction.
func replaceTags(ctx context.Context, tx dbx.DBTX, accountKey, memoID string, tagList []string, now time.Time) error {
	if now.IsZero() {
		now = time.Now()
	}
	ts := toMillis(now)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memo_tags WHERE account_key = ? AND memo_id = ?`, accountKey, memoID); err != nil {
		return err
	}

	for _, name := range tags.NormalizeTagList(tagList) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tags (account_key, name, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(account_key, name) DO UPDATE SET updated_at = excluded.updated_at`,
			accountKey, name, ts, ts); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memo_tags (memo_id, account_key, tag_name, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(memo_id, account_key, tag_name) DO NOTHING`,
			memoID, accountKey, name, ts); err != nil {
			return err
		}
	}

	return pruneTags(ctx, tx, accountKey)
}

// pruneTags removes tags of the account that no memo links to.
func pruneTags(ctx context.Context, tx dbx.DBTX, accountKey string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM tags WHERE account_key = ? AND NOT EXISTS (
			SELECT 1 FROM memo_tags mt WHERE mt.account_key = tags.account_key AND mt.tag_name = tags.name
		)`, accountKey)
	return err
}

func (r *SQLiteRepository) ListTagsByRecentUsage(ctx context.Context, accountKey string, since time.Time) ([]models.TagUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.name, COUNT(m.identifier), MAX(m.date)
		FROM tags t
		JOIN memo_tags mt ON mt.account_key = t.account_key AND mt.tag_name = t.name
		JOIN memos m ON m.identifier = mt.memo_id AND m.account_key = mt.account_key
		WHERE t.account_key = ? AND m.is_deleted = 0 AND m.date >= ?
		GROUP BY t.name`, accountKey, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to rank tags: %w", err)
	}
	defer rows.Close()

	var result []models.TagUsage
	for rows.Next() {
		var (
			u    models.TagUsage
			last int64
		)
		if err := rows.Scan(&u.Name, &u.Count, &last); err != nil {
			return nil, fmt.Errorf("failed to scan tag usage: %w", err)
		}
		u.LastUsedAt = fromMillis(last)
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// SQLite's LOWER only folds ASCII, so the name tie-break happens here.
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if !a.LastUsedAt.Equal(b.LastUsedAt) {
			return a.LastUsedAt.After(b.LastUsedAt)
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return result, nil
}
