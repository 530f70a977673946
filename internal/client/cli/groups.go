package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/memosync/internal/client/groups"
)

const groupsUsage = "groups [list|create <name> [description]|join <code>|rename <id> <name>|tag <id> <tag>|" +
	"leave <id>|pin <id>|unpin <id>|post <id> <text>|memos <id>]"

// Groups runs a group subcommand. Changes apply locally at once and reach
// the server with the next sync.
func (a *App) Groups(ctx context.Context, args []string) error {
	s := a.session()
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, rest := args[0], args[1:]

	need := func(n int) error {
		if len(rest) < n {
			return usage(groupsUsage)
		}
		return nil
	}

	switch sub {
	case "list", "ls":
		list, err := s.groups.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(a.out, "No groups")
			return nil
		}
		for _, g := range list {
			marks := ""
			if groups.IsLocalID(g.ID) {
				marks = "*"
			}
			line := fmt.Sprintf("%-20s %-1s %s", g.ID, marks, g.Name)
			if g.Description != "" {
				line += " - " + g.Description
			}
			if len(g.Tags) > 0 {
				line += "  #" + strings.Join(g.Tags, " #")
			}
			fmt.Fprintln(a.out, line)
		}
		return nil

	case "create":
		if err := need(1); err != nil {
			return err
		}
		g, err := s.groups.Create(ctx, rest[0], strings.Join(rest[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Created", g.ID)

	case "join":
		if err := need(1); err != nil {
			return err
		}
		g, err := s.groups.Join(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Joining as", g.ID)

	case "rename":
		if err := need(2); err != nil {
			return err
		}
		if err := s.groups.Update(ctx, rest[0], strings.Join(rest[1:], " "), ""); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Renamed")

	case "tag":
		if err := need(2); err != nil {
			return err
		}
		if err := s.groups.AddTag(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Tagged")

	case "leave", "delete":
		if err := need(1); err != nil {
			return err
		}
		if !Confirm(a.reader, "Leave group "+rest[0]+"?", a.out) {
			return nil
		}
		if err := s.groups.Leave(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Left")

	case "pin", "unpin":
		if err := need(1); err != nil {
			return err
		}
		if err := s.groups.SetPinned(ctx, rest[0], sub == "pin"); err != nil {
			return err
		}
		return nil

	case "post":
		if err := need(2); err != nil {
			return err
		}
		if _, err := s.groups.PostMemo(ctx, rest[0], strings.Join(rest[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Queued")

	case "memos":
		if err := need(1); err != nil {
			return err
		}
		items, err := s.groups.Memos(ctx, rest[0])
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(a.out, "No memos")
			return nil
		}
		for _, it := range items {
			m := it.ToMemo()
			fmt.Fprintf(a.out, "%s %s %s\n", m.Date.Local().Format(dateLayout), m.Creator, firstLine(m.Content))
		}
		return nil

	default:
		return usage(groupsUsage)
	}

	a.kick(ctx)
	return nil
}
