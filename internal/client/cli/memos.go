package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/services"
	"github.com/dmitrijs2005/memosync/internal/common"
)

const (
	shortIDLen   = 8
	dateLayout   = "2006-01-02 15:04"
	defaultTagsN = 30
)

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func usage(u string) error {
	return fmt.Errorf("usage: %s: %w", u, common.ErrInvalidArgument)
}

// resolveMemo finds the memo whose id starts with prefix among live memos,
// archived ones included.
func (a *App) resolveMemo(ctx context.Context, s *session, prefix string) (string, error) {
	active, err := s.memos.ListActive(ctx)
	if err != nil {
		return "", err
	}
	archived, err := s.memos.ListArchived(ctx)
	if err != nil {
		return "", err
	}

	var found []string
	for _, m := range slices.Concat(active, archived) {
		if m.Identifier == prefix {
			return m.Identifier, nil
		}
		if strings.HasPrefix(m.Identifier, prefix) {
			found = append(found, m.Identifier)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("memo %s: %w", prefix, common.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("memo id %q is ambiguous (%d matches)", prefix, len(found))
	}
}

// withMemo resolves the first argument and calls fn with the full id.
func (a *App) withMemo(ctx context.Context, args []string, u string, fn func(s *session, id string) error) error {
	if len(args) == 0 {
		return usage(u)
	}
	s := a.session()
	if s == nil {
		return errNoAccount
	}
	id, err := a.resolveMemo(ctx, s, args[0])
	if err != nil {
		return err
	}
	return fn(s, id)
}

func (a *App) printMemo(m models.Memo) {
	marks := ""
	if m.Pinned {
		marks += "^"
	}
	if m.NeedsSync {
		marks += "*"
	}
	line := fmt.Sprintf("%s %s %-2s %s", shortID(m.Identifier), m.Date.Local().Format(dateLayout), marks, firstLine(m.Content))
	if len(m.Tags) > 0 {
		line += "  #" + strings.Join(m.Tags, " #")
	}
	fmt.Fprintln(a.out, line)
}

// Add creates a memo from the arguments, or from multi-line input when there
// are none.
func (a *App) Add(ctx context.Context, args []string) error {
	s := a.session()
	content := strings.Join(args, " ")
	if content == "" {
		var err error
		if content, err = GetMultiline(a.reader, "Enter memo", a.out); err != nil {
			return err
		}
	}

	m, err := s.memos.Create(ctx, services.MemoInput{Content: content})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Added", shortID(m.Identifier))
	a.kick(ctx)
	return nil
}

func (a *App) Edit(ctx context.Context, args []string) error {
	return a.withMemo(ctx, args, "edit <id> [text]", func(s *session, id string) error {
		m, err := s.memos.Get(ctx, id)
		if err != nil {
			return err
		}

		content := strings.Join(args[1:], " ")
		if content == "" {
			fmt.Fprintln(a.out, m.Content)
			if content, err = GetMultiline(a.reader, "Enter new text", a.out); err != nil {
				return err
			}
		}

		in := services.MemoInput{Content: content, Visibility: m.Visibility, Location: m.Location}
		if _, err := s.memos.Edit(ctx, id, in); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Saved")
		a.kick(ctx)
		return nil
	})
}

// List prints active memos, or archived ones with "list archived".
func (a *App) List(ctx context.Context, args []string) error {
	s := a.session()

	list := s.memos.ListActive
	if len(args) > 0 && args[0] == "archived" {
		list = s.memos.ListArchived
	}
	memos, err := list(ctx)
	if err != nil {
		return err
	}
	if len(memos) == 0 {
		fmt.Fprintln(a.out, "No memos")
		return nil
	}
	for _, m := range memos {
		a.printMemo(m)
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	return a.withMemo(ctx, args, "show <id>", func(s *session, id string) error {
		m, err := s.memos.Get(ctx, id)
		if err != nil {
			return err
		}

		fmt.Fprintf(a.out, "%s  %s  %s\n", m.Identifier, m.Date.Local().Format(dateLayout), m.Visibility)
		if m.RemoteID != "" {
			fmt.Fprintln(a.out, "Remote:", m.RemoteID)
		}
		if m.NeedsSync {
			fmt.Fprintln(a.out, "Not synced yet")
		}
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, m.Content)
		fmt.Fprintln(a.out)
		if len(m.Tags) > 0 {
			fmt.Fprintln(a.out, "Tags:", strings.Join(m.Tags, ", "))
		}
		for _, r := range m.Resources {
			state := "local"
			if r.RemoteID != "" {
				state = r.RemoteID
			}
			fmt.Fprintf(a.out, "Attachment: %s (%s, %d bytes, %s)\n", r.Filename, r.MimeType, r.Size, state)
		}
		return nil
	})
}

func (a *App) setFlag(ctx context.Context, args []string, u, done string, fn func(s *session, id string) error) error {
	return a.withMemo(ctx, args, u, func(s *session, id string) error {
		if err := fn(s, id); err != nil {
			return err
		}
		fmt.Fprintln(a.out, done)
		a.kick(ctx)
		return nil
	})
}

func (a *App) Archive(ctx context.Context, args []string) error {
	return a.setFlag(ctx, args, "archive <id>", "Archived", func(s *session, id string) error {
		return s.memos.SetArchived(ctx, id, true)
	})
}

func (a *App) Unarchive(ctx context.Context, args []string) error {
	return a.setFlag(ctx, args, "unarchive <id>", "Restored", func(s *session, id string) error {
		return s.memos.SetArchived(ctx, id, false)
	})
}

func (a *App) Pin(ctx context.Context, args []string) error {
	return a.setFlag(ctx, args, "pin <id>", "Pinned", func(s *session, id string) error {
		return s.memos.SetPinned(ctx, id, true)
	})
}

func (a *App) Unpin(ctx context.Context, args []string) error {
	return a.setFlag(ctx, args, "unpin <id>", "Unpinned", func(s *session, id string) error {
		return s.memos.SetPinned(ctx, id, false)
	})
}

func (a *App) Delete(ctx context.Context, args []string) error {
	return a.withMemo(ctx, args, "delete <id>", func(s *session, id string) error {
		if !Confirm(a.reader, "Delete memo "+shortID(id)+"?", a.out) {
			return nil
		}
		if err := s.memos.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Deleted")
		a.kick(ctx)
		return nil
	})
}

func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("attach <id> <path>")
	}
	return a.withMemo(ctx, args, "attach <id> <path>", func(s *session, id string) error {
		r, err := s.memos.Attach(ctx, id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Attached %s (%d bytes)\n", r.Filename, r.Size)
		a.kick(ctx)
		return nil
	})
}

// Share replaces the memo's collaborators; with no users it shows them.
func (a *App) Share(ctx context.Context, args []string) error {
	return a.withMemo(ctx, args, "share <id> [user...|-]", func(s *session, id string) error {
		users := args[1:]
		if len(users) == 0 {
			ids, err := s.memos.Collaborators(ctx, id)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(a.out, "Not shared")
				return nil
			}
			fmt.Fprintln(a.out, "Shared with:", strings.Join(ids, ", "))
			return nil
		}
		if len(users) == 1 && users[0] == "-" {
			users = nil
		}
		if err := s.memos.ShareWith(ctx, id, users); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Saved")
		a.kick(ctx)
		return nil
	})
}

// Shared lists server memos shared with a user.
func (a *App) Shared(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("shared <user>")
	}
	items, err := a.session().memos.SharedWith(ctx, args[0])
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Nothing shared")
		return nil
	}
	for _, it := range items {
		a.printMemo(it.ToMemo())
	}
	return nil
}

// Tags ranks tags used in the last N days, 30 by default.
func (a *App) Tags(ctx context.Context, args []string) error {
	days := defaultTagsN
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return usage("tags [days]")
		}
		days = n
	}

	ranked, err := a.session().memos.RecentTags(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		fmt.Fprintln(a.out, "No tags")
		return nil
	}
	for _, u := range ranked {
		fmt.Fprintf(a.out, "#%s  %d  %s\n", u.Name, u.Count, u.LastUsedAt.Local().Format(dateLayout))
	}
	return nil
}

// Draft shows the saved draft, saves the arguments as the new one, or turns
// it into a memo with "draft post".
func (a *App) Draft(ctx context.Context, args []string) error {
	s := a.session()

	switch {
	case len(args) == 0:
		d, err := s.memos.Draft(ctx)
		if err != nil {
			return err
		}
		if d == "" {
			fmt.Fprintln(a.out, "No draft")
			return nil
		}
		fmt.Fprintln(a.out, d)
		return nil

	case len(args) == 1 && args[0] == "post":
		d, err := s.memos.Draft(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("no draft to post: %w", common.ErrInvalidArgument)
		}
		if err := a.Add(ctx, []string{d}); err != nil {
			return err
		}
		return s.memos.SaveDraft(ctx, "")

	default:
		if err := s.memos.SaveDraft(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Draft saved")
		return nil
	}
}
