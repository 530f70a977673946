package memos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/dbx"
)

const memoColumns = `identifier, remote_id, account_key, content, date, visibility, pinned, archived,
	latitude, longitude, creator, needs_sync, is_deleted, last_modified, last_synced_at`

// SQLiteRepository implements Repository on top of a SQLite database.
type SQLiteRepository struct {
	db *sql.DB

	mu       sync.Mutex
	watchers map[*watcher]struct{}
}

// NewSQLiteRepository returns a new SQLiteRepository bound to db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, watchers: make(map[*watcher]struct{})}
}

func (r *SQLiteRepository) ListActive(ctx context.Context, accountKey string) ([]models.Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos
		WHERE account_key = ? AND archived = 0 AND is_deleted = 0
		ORDER BY pinned DESC, date DESC, identifier`
	return r.listWithRelations(ctx, r.db, accountKey, query, accountKey)
}

func (r *SQLiteRepository) ListArchived(ctx context.Context, accountKey string) ([]models.Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos
		WHERE account_key = ? AND archived = 1 AND is_deleted = 0
		ORDER BY date DESC, identifier`
	return r.listWithRelations(ctx, r.db, accountKey, query, accountKey)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context, accountKey string) ([]models.Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos
		WHERE account_key = ? AND needs_sync = 1
		ORDER BY last_modified, identifier`
	return r.listWithRelations(ctx, r.db, accountKey, query, accountKey)
}

func (r *SQLiteRepository) CountDirty(ctx context.Context, accountKey string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memos WHERE account_key = ? AND needs_sync = 1`, accountKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count dirty memos: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, accountKey, id string) (*models.Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos WHERE account_key = ? AND identifier = ?`
	m, err := r.getOne(ctx, accountKey, query, accountKey, id)
	if err != nil {
		return nil, err
	}
	if err := r.checkTagLinks(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *SQLiteRepository) GetByRemoteID(ctx context.Context, accountKey, remoteID string) (*models.Memo, error) {
	query := `SELECT ` + memoColumns + ` FROM memos WHERE account_key = ? AND remote_id = ? LIMIT 1`
	return r.getOne(ctx, accountKey, query, accountKey, remoteID)
}

func (r *SQLiteRepository) getOne(ctx context.Context, accountKey, query string, args ...any) (*models.Memo, error) {
	list, err := r.listWithRelations(ctx, r.db, accountKey, query, args...)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrNotFound
	}
	return &list[0], nil
}

// checkTagLinks reports links whose tag row is missing.
func (r *SQLiteRepository) checkTagLinks(ctx context.Context, m *models.Memo) error {
	var orphans int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memo_tags mt
		LEFT JOIN tags t ON t.account_key = mt.account_key AND t.name = mt.tag_name
		WHERE mt.account_key = ? AND mt.memo_id = ? AND t.name IS NULL`,
		m.AccountKey, m.Identifier).Scan(&orphans)
	if err != nil {
		return fmt.Errorf("failed to check tag links: %w", err)
	}
	if orphans > 0 {
		return fmt.Errorf("memo %s has %d orphaned tag links: %w", m.Identifier, orphans, common.ErrLocalStorageCorruption)
	}
	return nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, m *models.Memo) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return writeMemo(ctx, tx, m)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert memo: %w", err)
	}
	r.notify(m.AccountKey)
	return nil
}

func (r *SQLiteRepository) UpsertIfUnchanged(ctx context.Context, m *models.Memo, seenModified time.Time) (bool, error) {
	written, err := dbx.WithTxValue(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		var lastModified int64
		err := tx.QueryRowContext(ctx,
			`SELECT last_modified FROM memos WHERE account_key = ? AND identifier = ?`,
			m.AccountKey, m.Identifier).Scan(&lastModified)
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrNotFound
		}
		if err != nil {
			return false, err
		}
		if lastModified != toMillis(seenModified) {
			return false, nil
		}
		return true, writeMemo(ctx, tx, m)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert memo: %w", err)
	}
	if written {
		r.notify(m.AccountKey)
	}
	return written, nil
}

// writeMemo stores the memo row, its tag set and its resources. Resource
// rows of the memo missing from m.Resources are removed.
func writeMemo(ctx context.Context, tx dbx.DBTX, m *models.Memo) error {
	if err := upsertMemoRow(ctx, tx, m); err != nil {
		return err
	}
	if err := replaceTags(ctx, tx, m.AccountKey, m.Identifier, m.Tags, m.LastModified); err != nil {
		return err
	}

	keep := make([]any, 0, len(m.Resources)+2)
	keep = append(keep, m.AccountKey, m.Identifier)
	for i := range m.Resources {
		res := m.Resources[i]
		res.MemoID = m.Identifier
		res.AccountKey = m.AccountKey
		if err := upsertResourceRow(ctx, tx, &res); err != nil {
			return err
		}
		keep = append(keep, res.Identifier)
	}

	query := `DELETE FROM resources WHERE account_key = ? AND memo_id = ?`
	if len(m.Resources) > 0 {
		query += ` AND identifier NOT IN (` + placeholders(len(m.Resources)) + `)`
	}
	_, err := tx.ExecContext(ctx, query, keep...)
	return err
}

func upsertMemoRow(ctx context.Context, tx dbx.DBTX, m *models.Memo) error {
	var lat, lng sql.NullFloat64
	if m.Location != nil {
		lat = sql.NullFloat64{Float64: m.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: m.Location.Longitude, Valid: true}
	}

	query := `INSERT INTO memos (` + memoColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			remote_id = excluded.remote_id,
			account_key = excluded.account_key,
			content = excluded.content,
			date = excluded.date,
			visibility = excluded.visibility,
			pinned = excluded.pinned,
			archived = excluded.archived,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			creator = excluded.creator,
			needs_sync = excluded.needs_sync,
			is_deleted = excluded.is_deleted,
			last_modified = excluded.last_modified,
			last_synced_at = excluded.last_synced_at`

	_, err := tx.ExecContext(ctx, query,
		m.Identifier, nullString(m.RemoteID), m.AccountKey, m.Content, toMillis(m.Date), string(m.Visibility),
		dbx.BoolToInt(m.Pinned), dbx.BoolToInt(m.Archived), lat, lng, m.Creator,
		dbx.BoolToInt(m.NeedsSync), dbx.BoolToInt(m.IsDeleted), toMillis(m.LastModified), nullMillis(m.LastSyncedAt))
	return err
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, accountKey, id, remoteID string, syncedAt, seenModified time.Time) (bool, error) {
	cleared, err := dbx.WithTxValue(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		var lastModified int64
		err := tx.QueryRowContext(ctx,
			`SELECT last_modified FROM memos WHERE account_key = ? AND identifier = ?`, accountKey, id).Scan(&lastModified)
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrNotFound
		}
		if err != nil {
			return false, err
		}

		clean := lastModified == toMillis(seenModified)
		_, err = tx.ExecContext(ctx, `
			UPDATE memos SET remote_id = ?, last_synced_at = ?,
				needs_sync = CASE WHEN ? THEN 0 ELSE needs_sync END
			WHERE account_key = ? AND identifier = ?`,
			remoteID, toMillis(syncedAt), dbx.BoolToInt(clean), accountKey, id)
		return clean, err
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark memo synced: %w", err)
	}
	r.notify(accountKey)
	return cleared, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, accountKey, id string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := deleteMemoRows(ctx, tx, accountKey, id); err != nil {
			return err
		}
		return pruneTags(ctx, tx, accountKey)
	})
	if err != nil {
		return fmt.Errorf("failed to delete memo: %w", err)
	}
	r.notify(accountKey)
	return nil
}

func deleteMemoRows(ctx context.Context, tx dbx.DBTX, accountKey, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM memo_tags WHERE account_key = ? AND memo_id = ?`, accountKey, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE account_key = ? AND memo_id = ?`, accountKey, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM memos WHERE account_key = ? AND identifier = ?`, accountKey, id)
	return err
}

func (r *SQLiteRepository) PruneRemote(ctx context.Context, accountKey string, keep map[string]struct{}) (int, error) {
	n, err := dbx.WithTxValue(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) (int, error) {
		rows, err := tx.QueryContext(ctx, `
			SELECT identifier, remote_id FROM memos
			WHERE account_key = ? AND remote_id IS NOT NULL AND remote_id <> ''
				AND needs_sync = 0 AND is_deleted = 0`, accountKey)
		if err != nil {
			return 0, err
		}

		var stale []string
		for rows.Next() {
			var id, remoteID string
			if err := rows.Scan(&id, &remoteID); err != nil {
				rows.Close()
				return 0, err
			}
			if _, ok := keep[remoteID]; !ok {
				stale = append(stale, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return 0, err
		}
		rows.Close()

		for _, id := range stale {
			if err := deleteMemoRows(ctx, tx, accountKey, id); err != nil {
				return 0, err
			}
		}
		if len(stale) > 0 {
			if err := pruneTags(ctx, tx, accountKey); err != nil {
				return 0, err
			}
		}
		return len(stale), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune memos: %w", err)
	}
	if n > 0 {
		r.notify(accountKey)
	}
	return n, nil
}

func (r *SQLiteRepository) UpsertResource(ctx context.Context, res *models.Resource) error {
	if err := upsertResourceRow(ctx, r.db, res); err != nil {
		return fmt.Errorf("failed to upsert resource: %w", err)
	}
	r.notify(res.AccountKey)
	return nil
}

func upsertResourceRow(ctx context.Context, db dbx.DBTX, res *models.Resource) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO resources (identifier, remote_id, account_key, date, filename, uri, local_uri,
			mime_type, thumbnail_uri, size, memo_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			remote_id = excluded.remote_id,
			account_key = excluded.account_key,
			date = excluded.date,
			filename = excluded.filename,
			uri = excluded.uri,
			local_uri = excluded.local_uri,
			mime_type = excluded.mime_type,
			thumbnail_uri = excluded.thumbnail_uri,
			size = excluded.size,
			memo_id = excluded.memo_id`,
		res.Identifier, nullString(res.RemoteID), res.AccountKey, toMillis(res.Date), res.Filename, res.URI,
		nullString(res.LocalURI), res.MimeType, nullString(res.ThumbnailURI), res.Size, res.MemoID)
	return err
}

func (r *SQLiteRepository) MarkResourceSynced(ctx context.Context, accountKey, id, remoteID, uri string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE resources SET remote_id = ?, uri = CASE WHEN ? <> '' THEN ? ELSE uri END
		WHERE account_key = ? AND identifier = ?`,
		remoteID, uri, uri, accountKey, id)
	if err != nil {
		return fmt.Errorf("failed to mark resource synced: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	r.notify(accountKey)
	return nil
}

func (r *SQLiteRepository) DeleteResource(ctx context.Context, accountKey, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE account_key = ? AND identifier = ?`, accountKey, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	r.notify(accountKey)
	return nil
}

func (r *SQLiteRepository) ListResources(ctx context.Context, accountKey, memoID string) ([]models.Resource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources
		WHERE account_key = ? AND memo_id = ? ORDER BY date, identifier`, accountKey, memoID)
	if err != nil {
		return nil, fmt.Errorf("failed to select resources: %w", err)
	}
	defer rows.Close()

	var result []models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) WipeAccount(ctx context.Context, accountKey string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, q := range []string{
			`DELETE FROM memo_tags WHERE account_key = ?`,
			`DELETE FROM resources WHERE account_key = ?`,
			`DELETE FROM memos WHERE account_key = ?`,
			`DELETE FROM tags WHERE account_key = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, accountKey); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to wipe account: %w", err)
	}
	r.notify(accountKey)
	return nil
}

// listWithRelations runs a memo query and attaches tags and resources of
// the selected memos.
func (r *SQLiteRepository) listWithRelations(ctx context.Context, db dbx.DBTX, accountKey, query string, args ...any) ([]models.Memo, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select memos: %w", err)
	}

	var result []models.Memo
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(result) == 0 {
		return result, nil
	}

	index := make(map[string]int, len(result))
	for i := range result {
		index[result[i].Identifier] = i
	}

	// Point lookups filter the relations by id. Larger lists read the
	// account's relations in one pass instead of binding every id.
	var ids []any
	if len(result) <= maxBoundIDs {
		ids = make([]any, 0, len(result))
		for i := range result {
			ids = append(ids, result[i].Identifier)
		}
	}

	if err := attachTags(ctx, db, accountKey, ids, result, index); err != nil {
		return nil, err
	}
	if err := attachResources(ctx, db, accountKey, ids, result, index); err != nil {
		return nil, err
	}
	return result, nil
}

// maxBoundIDs stays below SQLite's default host parameter limit.
const maxBoundIDs = 500

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// memoFilter restricts a relation query to ids, or to the whole account
// when ids is nil.
func memoFilter(accountKey string, ids []any) (string, []any) {
	args := append([]any{accountKey}, ids...)
	if ids == nil {
		return `account_key = ?`, args
	}
	return `account_key = ? AND memo_id IN (` + placeholders(len(ids)) + `)`, args
}

func attachTags(ctx context.Context, db dbx.DBTX, accountKey string, ids []any, memos []models.Memo, index map[string]int) error {
	where, args := memoFilter(accountKey, ids)
	rows, err := db.QueryContext(ctx,
		`SELECT memo_id, tag_name FROM memo_tags WHERE `+where+` ORDER BY rowid`, args...)
	if err != nil {
		return fmt.Errorf("failed to select memo tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memoID, tag string
		if err := rows.Scan(&memoID, &tag); err != nil {
			return err
		}
		if i, ok := index[memoID]; ok {
			memos[i].Tags = append(memos[i].Tags, tag)
		}
	}
	return rows.Err()
}

func attachResources(ctx context.Context, db dbx.DBTX, accountKey string, ids []any, memos []models.Memo, index map[string]int) error {
	where, args := memoFilter(accountKey, ids)
	rows, err := db.QueryContext(ctx, `SELECT `+resourceColumns+` FROM resources
		WHERE `+where+` ORDER BY date, identifier`, args...)
	if err != nil {
		return fmt.Errorf("failed to select resources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return err
		}
		if i, ok := index[res.MemoID]; ok {
			memos[i].Resources = append(memos[i].Resources, res)
		}
	}
	return rows.Err()
}
