package memos

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
)

const resourceColumns = `identifier, remote_id, account_key, date, filename, uri, local_uri,
	mime_type, thumbnail_uri, size, memo_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanMemo(s scanner) (models.Memo, error) {
	var (
		m                    models.Memo
		remoteID             sql.NullString
		visibility           string
		date, lastModified   int64
		lastSynced           sql.NullInt64
		pinned, archived     int
		needsSync, isDeleted int
		lat, lng             sql.NullFloat64
	)

	err := s.Scan(&m.Identifier, &remoteID, &m.AccountKey, &m.Content, &date, &visibility, &pinned, &archived,
		&lat, &lng, &m.Creator, &needsSync, &isDeleted, &lastModified, &lastSynced)
	if err != nil {
		return models.Memo{}, fmt.Errorf("failed to scan memo: %w", err)
	}

	m.RemoteID = remoteID.String
	m.Date = fromMillis(date)
	m.Visibility = models.ParseVisibility(visibility)
	m.Pinned = pinned != 0
	m.Archived = archived != 0
	m.NeedsSync = needsSync != 0
	m.IsDeleted = isDeleted != 0
	m.LastModified = fromMillis(lastModified)
	if lastSynced.Valid {
		t := fromMillis(lastSynced.Int64)
		m.LastSyncedAt = &t
	}
	if lat.Valid && lng.Valid {
		m.Location = &models.GeoPoint{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return m, nil
}

func scanResource(s scanner) (models.Resource, error) {
	var (
		res                           models.Resource
		remoteID, localURI, thumbnail sql.NullString
		date                          int64
	)

	err := s.Scan(&res.Identifier, &remoteID, &res.AccountKey, &date, &res.Filename, &res.URI, &localURI,
		&res.MimeType, &thumbnail, &res.Size, &res.MemoID)
	if err != nil {
		return models.Resource{}, fmt.Errorf("failed to scan resource: %w", err)
	}

	res.RemoteID = remoteID.String
	res.LocalURI = localURI.String
	res.ThumbnailURI = thumbnail.String
	res.Date = fromMillis(date)
	return res, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Timestamps are stored as unix milliseconds.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}
