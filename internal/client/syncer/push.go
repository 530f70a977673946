package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
)

// push sends every dirty memo. Attachments go first so the memo can
// reference them. Per-memo failures are counted and skipped.
func (e *Engine) push(ctx context.Context, res *Result) error {
	dirty, err := e.memos.ListDirty(ctx, e.cfg.AccountKey)
	if err != nil {
		return err
	}

	var totalBytes int64
	var totalFiles int
	for i := range dirty {
		if dirty[i].IsDeleted {
			continue
		}
		for _, r := range dirty[i].UnsyncedResources() {
			totalBytes += r.Size
			totalFiles++
		}
	}
	e.status.Update(func(s *models.SyncStatus) {
		s.TotalBytes = totalBytes
		s.TotalFiles = totalFiles
		s.UnsyncedCount = len(dirty)
	})

	for i := range dirty {
		if err := ctx.Err(); err != nil {
			return err
		}

		m := &dirty[i]
		err := e.pushMemo(ctx, m, res)
		if err == nil {
			continue
		}
		pushTotal.WithLabelValues(pushAction(m), "failed").Inc()
		if err := e.itemFailed(ctx, res, nil, err, "memo skipped", "memo", m.Identifier, "remote_id", m.RemoteID); err != nil {
			return err
		}
	}
	return nil
}

func pushAction(m *models.Memo) string {
	switch {
	case m.IsDeleted:
		return "delete"
	case m.RemoteID == "":
		return "create"
	default:
		return "update"
	}
}

func (e *Engine) pushMemo(ctx context.Context, m *models.Memo, res *Result) error {
	if m.IsDeleted {
		return e.pushTombstone(ctx, m, res)
	}

	// Re-read through GetByID so a damaged record is caught before upload.
	full, err := e.memos.GetByID(ctx, e.cfg.AccountKey, m.Identifier)
	if err != nil {
		return err
	}
	seen := full.LastModified

	if err := e.uploadResources(ctx, full); err != nil {
		return err
	}

	wire := *full
	if wire.Content, err = e.encodeContent(full.Identifier, full.Content); err != nil {
		return err
	}

	action := pushAction(full)
	var rm *client.Memo
	if full.RemoteID == "" {
		rm, err = e.remote.CreateMemo(ctx, createRequest(&wire))
	} else {
		rm, err = e.updateMemo(ctx, full, &wire)
	}
	if err != nil {
		return err
	}
	if rm.Name == "" {
		return fmt.Errorf("memo %s: %w", full.Identifier, errNoRemoteID)
	}

	cleared, err := e.memos.MarkSynced(ctx, e.cfg.AccountKey, full.Identifier, rm.Name, syncedAt(rm, e.now()), seen)
	if err != nil {
		return err
	}
	if !cleared {
		e.log.Debug(ctx, "memo edited during upload, stays dirty", "memo", full.Identifier)
	}

	pushTotal.WithLabelValues(action, "ok").Inc()
	res.Pushed++
	return nil
}

// updateMemo sends a full update guarded by the last sync time. On conflict
// the remote version wins except for pinned, archived and location, which
// are reapplied once. wire is m with encoded content.
func (e *Engine) updateMemo(ctx context.Context, m, wire *models.Memo) (*client.Memo, error) {
	rm, err := e.remote.UpdateMemo(ctx, m.RemoteID, updateRequest(wire))
	switch {
	case err == nil:
		return rm, nil
	case errors.Is(err, client.ErrNotFound):
		// Gone on the server while edited here; keep the local edit.
		e.log.Info(ctx, "remote memo missing, recreating", "memo", m.Identifier, "remote_id", m.RemoteID)
		return e.remote.CreateMemo(ctx, createRequest(wire))
	case !errors.Is(err, client.ErrConflict):
		return nil, err
	}

	current, err := e.remote.GetMemo(ctx, m.RemoteID)
	if err != nil {
		return nil, err
	}
	rm, err = e.remote.UpdateMemo(ctx, current.Name, localOnlyRequest(m))
	if err != nil {
		return nil, err
	}
	plain, err := e.decodeRemote(rm)
	if err != nil {
		return nil, err
	}

	merged := *m
	applyRemote(&merged, plain, e.cfg.AccountKey)
	merged.Pinned = m.Pinned
	merged.Archived = m.Archived
	merged.Location = m.Location
	merged.LastModified = m.LastModified
	merged.NeedsSync = true
	written, err := e.memos.UpsertIfUnchanged(ctx, &merged, m.LastModified)
	if err != nil {
		return nil, err
	}
	if !written {
		e.log.Debug(ctx, "memo edited during conflict resolution, keeping local edit", "memo", m.Identifier)
		return rm, nil
	}
	e.log.Info(ctx, "conflict resolved with remote content", "memo", m.Identifier, "remote_id", m.RemoteID)
	return rm, nil
}

func (e *Engine) pushTombstone(ctx context.Context, m *models.Memo, res *Result) error {
	if m.RemoteID != "" {
		err := e.remote.DeleteMemo(ctx, m.RemoteID)
		if err != nil && !errors.Is(err, client.ErrNotFound) {
			return err
		}
	}
	if err := e.memos.Delete(ctx, e.cfg.AccountKey, m.Identifier); err != nil {
		return err
	}
	pushTotal.WithLabelValues("delete", "ok").Inc()
	res.Deleted++
	return nil
}

// uploadResources uploads attachments that have no remote id yet and
// updates m in place with the assigned ids.
func (e *Engine) uploadResources(ctx context.Context, m *models.Memo) error {
	for i := range m.Resources {
		r := &m.Resources[i]
		if r.RemoteID != "" {
			continue
		}
		if r.LocalURI == "" {
			return fmt.Errorf("resource %s has neither remote id nor local file: %w", r.Identifier, common.ErrLocalStorageCorruption)
		}

		data, err := e.attachments.ReadAttachment(r.LocalURI)
		if err != nil {
			return fmt.Errorf("read attachment %s: %v: %w", r.LocalURI, err, common.ErrLocalStorageCorruption)
		}

		rr, err := e.remote.CreateResource(ctx, client.CreateResourceRequest{
			Filename: r.Filename,
			Type:     r.MimeType,
			Content:  data,
		})
		if err != nil {
			return err
		}
		if rr.Name == "" {
			return fmt.Errorf("resource %s: %w", r.Identifier, errNoRemoteID)
		}

		uri := resourceURI(rr)
		if err := e.memos.MarkResourceSynced(ctx, e.cfg.AccountKey, r.Identifier, rr.Name, uri); err != nil {
			return err
		}
		r.RemoteID = rr.Name
		if uri != "" {
			r.URI = uri
		}

		uploadedBytes.Add(float64(len(data)))
		e.status.Update(func(s *models.SyncStatus) {
			s.UploadedBytes += int64(len(data))
			s.UploadedFiles++
		})
	}
	return nil
}
