// Package memos provides the local, authoritative cache of memos, their
// attachments and their tags.
//
// # Overview
//
// The package defines a Repository interface for CRUD, query and reactive
// operations on memos (see internal/client/models). A SQLite-backed
// implementation (SQLiteRepository) persists data in the schema created by
// internal/client/migrations.
//
// # Data Model
//
// Every row carries an account key; all operations are scoped by it, so
// several accounts can share one database with fully isolated data. Memos
// carry a needs_sync flag for local changes not yet on the server and an
// is_deleted tombstone kept until the remote delete is acknowledged. Tags are
// linked to memos through memo_tags; a tag without links is pruned after
// every tag-set mutation.
//
// # Concurrency
//
// Multi-row mutations (tag replacement, deletes, prunes, account wipes) run
// in one transaction, so readers never observe a half-applied change. After
// each committed write the repository wakes the subscribers registered with
// Watch for that account; a slow subscriber never blocks a writer.
//
// Typical Usage
//
//	repo := memos.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, memo)
//	_ = repo.ReplaceMemoTags(ctx, accountKey, memo.Identifier, []string{"work"})
//	list, _ := repo.ListActive(ctx, accountKey)
//	for list := range repo.Watch(ctx, accountKey) { ... }
package memos
