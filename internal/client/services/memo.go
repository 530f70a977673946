// Package services holds the local-first application services behind the
// CLI. Every mutation lands in the local store first and is marked for the
// next sync pass; nothing here waits for the network except the explicit
// remote lookups.
package services

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/memos"
	"github.com/dmitrijs2005/memosync/internal/client/state"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"github.com/dmitrijs2005/memosync/internal/tags"
	"github.com/google/uuid"
)

// AttachmentStore keeps attachment files on disk until they are uploaded.
type AttachmentStore interface {
	Import(src string) (localURI string, size int64, err error)
	Remove(localURI string) error
}

// MemoInput is the user-editable part of a memo. Inline #tags in Content are
// merged into Tags.
type MemoInput struct {
	Content    string
	Visibility models.Visibility
	Tags       []string
	Location   *models.GeoPoint
}

type MemoService interface {
	Create(ctx context.Context, in MemoInput) (*models.Memo, error)
	Edit(ctx context.Context, id string, in MemoInput) (*models.Memo, error)
	SetPinned(ctx context.Context, id string, pinned bool) error
	SetArchived(ctx context.Context, id string, archived bool) error
	// Delete tombstones a synced memo and removes a never-synced one outright.
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Memo, error)
	ListActive(ctx context.Context) ([]models.Memo, error)
	ListArchived(ctx context.Context) ([]models.Memo, error)
	Attach(ctx context.Context, id, path string) (*models.Resource, error)

	// ShareWith replaces the memo's collaborators.
	ShareWith(ctx context.Context, id string, userIDs []string) error
	Collaborators(ctx context.Context, id string) ([]string, error)
	// SharedWith lists remote memos shared with userID.
	SharedWith(ctx context.Context, userID string) ([]models.CachedMemoItem, error)

	RecentTags(ctx context.Context, since time.Time) ([]models.TagUsage, error)
	Watch(ctx context.Context) <-chan []models.Memo

	Draft(ctx context.Context) (string, error)
	SaveDraft(ctx context.Context, text string) error
}

type memoService struct {
	accountKey string
	memos      memos.Repository
	store      *state.Store
	files      AttachmentStore
	remote     client.Client
	log        logging.Logger
	now        func() time.Time
}

// NewMemoService binds a MemoService to one account. remote may be nil for
// a local-only account.
func NewMemoService(accountKey string, repo memos.Repository, store *state.Store, files AttachmentStore, remote client.Client, log logging.Logger) MemoService {
	if log == nil {
		log = logging.Nop()
	}
	return &memoService{
		accountKey: accountKey,
		memos:      repo,
		store:      store,
		files:      files,
		remote:     remote,
		log:        log,
		now:        time.Now,
	}
}

func inputTags(in MemoInput) []string {
	return tags.NormalizeTagList(append(append([]string(nil), in.Tags...), tags.ExtractFromContent(in.Content)...))
}

func (s *memoService) Create(ctx context.Context, in MemoInput) (*models.Memo, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("empty memo: %w", common.ErrInvalidArgument)
	}

	now := s.now().UTC()
	m := &models.Memo{
		Identifier: uuid.NewString(),
		AccountKey: s.accountKey,
		Content:    in.Content,
		Date:       now,
		Visibility: models.ParseVisibility(string(in.Visibility)),
		Location:   in.Location,
		Tags:       inputTags(in),
	}
	m.Touch(now)

	if err := s.memos.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save memo: %w", err)
	}
	return m, nil
}

// mutateAttempts bounds how often mutate reloads a memo that a sync pass
// rewrote between the read and the write.
const mutateAttempts = 3

// mutate loads a live memo, applies fn, marks it dirty and stores it. The
// write only lands if the memo is unchanged since it was read; otherwise
// fn runs again on the fresh copy.
func (s *memoService) mutate(ctx context.Context, id string, fn func(m *models.Memo) error) (*models.Memo, error) {
	for range mutateAttempts {
		m, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		seen := m.LastModified
		if err := fn(m); err != nil {
			return nil, err
		}
		m.Touch(s.now().UTC())
		written, err := s.memos.UpsertIfUnchanged(ctx, m, seen)
		if err != nil {
			return nil, fmt.Errorf("failed to save memo: %w", err)
		}
		if written {
			return m, nil
		}
		s.log.Debug(ctx, "memo changed while editing, retrying", "memo", id)
	}
	return nil, fmt.Errorf("memo %s: %w", id, common.ErrConcurrentModification)
}

func (s *memoService) Edit(ctx context.Context, id string, in MemoInput) (*models.Memo, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("empty memo: %w", common.ErrInvalidArgument)
	}
	return s.mutate(ctx, id, func(m *models.Memo) error {
		m.Content = in.Content
		if in.Visibility != "" {
			m.Visibility = models.ParseVisibility(string(in.Visibility))
		}
		m.Location = in.Location
		// Collaborators are managed through ShareWith and survive edits.
		m.Tags = tags.MergeTagsWithCollaborators(inputTags(in), tags.ExtractCollaboratorIDs(m.Tags))
		return nil
	})
}

func (s *memoService) SetPinned(ctx context.Context, id string, pinned bool) error {
	_, err := s.mutate(ctx, id, func(m *models.Memo) error {
		m.Pinned = pinned
		return nil
	})
	return err
}

func (s *memoService) SetArchived(ctx context.Context, id string, archived bool) error {
	_, err := s.mutate(ctx, id, func(m *models.Memo) error {
		m.Archived = archived
		return nil
	})
	return err
}

func (s *memoService) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if m.RemoteID != "" {
		m.Tombstone(s.now().UTC())
		if err := s.memos.Upsert(ctx, m); err != nil {
			return fmt.Errorf("failed to delete memo: %w", err)
		}
		return nil
	}

	if err := s.memos.Delete(ctx, s.accountKey, id); err != nil {
		return fmt.Errorf("failed to delete memo: %w", err)
	}
	for _, r := range m.Resources {
		if r.LocalURI == "" || s.files == nil {
			continue
		}
		if err := s.files.Remove(r.LocalURI); err != nil {
			s.log.Warn(ctx, "failed to remove attachment file", "memo", id, "file", r.LocalURI, "error", err)
		}
	}
	return nil
}

// Get returns a live memo; tombstones read as not found.
func (s *memoService) Get(ctx context.Context, id string) (*models.Memo, error) {
	m, err := s.memos.GetByID(ctx, s.accountKey, id)
	if err != nil {
		return nil, fmt.Errorf("memo %s: %w", id, err)
	}
	if m.IsDeleted {
		return nil, fmt.Errorf("memo %s: %w", id, common.ErrNotFound)
	}
	return m, nil
}

func (s *memoService) ListActive(ctx context.Context) ([]models.Memo, error) {
	return s.memos.ListActive(ctx, s.accountKey)
}

func (s *memoService) ListArchived(ctx context.Context) ([]models.Memo, error) {
	return s.memos.ListArchived(ctx, s.accountKey)
}

func (s *memoService) Attach(ctx context.Context, id, path string) (*models.Resource, error) {
	if s.files == nil {
		return nil, fmt.Errorf("no attachment store: %w", common.ErrInvalidArgument)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	uri, size, err := s.files.Import(path)
	if err != nil {
		return nil, fmt.Errorf("failed to import attachment: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	res := models.Resource{
		Identifier: uuid.NewString(),
		AccountKey: s.accountKey,
		MemoID:     id,
		Date:       s.now().UTC(),
		Filename:   filepath.Base(path),
		LocalURI:   uri,
		MimeType:   mimeType,
		Size:       size,
	}

	_, err = s.mutate(ctx, id, func(m *models.Memo) error {
		m.Resources = append(m.Resources, res)
		return nil
	})
	if err != nil {
		_ = s.files.Remove(uri)
		return nil, err
	}
	return &res, nil
}

func (s *memoService) ShareWith(ctx context.Context, id string, userIDs []string) error {
	_, err := s.mutate(ctx, id, func(m *models.Memo) error {
		m.Tags = tags.MergeTagsWithCollaborators(m.Tags, userIDs)
		return nil
	})
	return err
}

func (s *memoService) Collaborators(ctx context.Context, id string) ([]string, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return tags.ExtractCollaboratorIDs(m.Tags), nil
}

func (s *memoService) SharedWith(ctx context.Context, userID string) ([]models.CachedMemoItem, error) {
	if s.remote == nil {
		return nil, fmt.Errorf("shared memos need a server account: %w", common.ErrNoAccount)
	}
	filter := tags.BuildCollaboratorFilterExpression(userID)
	if filter == "" {
		return nil, fmt.Errorf("empty user id: %w", common.ErrInvalidArgument)
	}

	var out []models.CachedMemoItem
	token := ""
	for {
		page, err := s.remote.ListMemos(ctx, client.ListMemosRequest{PageToken: token, Filter: filter})
		if err != nil {
			return nil, fmt.Errorf("failed to list shared memos: %w", err)
		}
		for _, rm := range page.Memos {
			date := rm.DisplayTime
			if date.IsZero() {
				date = rm.CreateTime
			}
			out = append(out, models.CachedMemoItem{
				RemoteID:   rm.Name,
				Content:    rm.Content,
				Date:       date,
				Pinned:     rm.Pinned,
				Archived:   rm.State == client.StateArchived,
				Visibility: models.ParseVisibility(rm.Visibility),
				Tags:       rm.Tags,
				Creator:    rm.Creator,
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

func (s *memoService) RecentTags(ctx context.Context, since time.Time) ([]models.TagUsage, error) {
	return s.memos.ListTagsByRecentUsage(ctx, s.accountKey, since)
}

func (s *memoService) Watch(ctx context.Context) <-chan []models.Memo {
	return s.memos.Watch(ctx, s.accountKey)
}

func (s *memoService) Draft(ctx context.Context) (string, error) {
	st, err := s.store.Load(ctx, s.accountKey)
	if err != nil {
		return "", err
	}
	return st.Draft, nil
}

func (s *memoService) SaveDraft(ctx context.Context, text string) error {
	return s.store.Update(ctx, s.accountKey, func(st *models.AccountState) error {
		st.Draft = text
		return nil
	})
}
