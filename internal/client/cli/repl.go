package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	hasAccount() bool

	SignIn(ctx context.Context, args []string) error
	UseLocal(ctx context.Context, args []string) error
	SignOut(ctx context.Context, args []string) error

	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Archive(ctx context.Context, args []string) error
	Unarchive(ctx context.Context, args []string) error
	Pin(ctx context.Context, args []string) error
	Unpin(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Share(ctx context.Context, args []string) error
	Shared(ctx context.Context, args []string) error
	Tags(ctx context.Context, args []string) error
	Draft(ctx context.Context, args []string) error
	Groups(ctx context.Context, args []string) error

	Sync(ctx context.Context, args []string) error
	Resume(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

var errNoAccount = errors.New("no account: use 'signin' or 'local' first")

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop ends on EOF, on "exit" or "quit", or when ctx is done.
//
// Without an account only signin, local, help and exit are accepted.
// Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	type handler func(context.Context, []string) error

	accountFree := map[string]handler{
		"signin": a.SignIn,
		"local":  a.UseLocal,
	}
	commands := map[string]handler{
		"signout":   a.SignOut,
		"add":       a.Add,
		"edit":      a.Edit,
		"l":         a.List,
		"list":      a.List,
		"show":      a.Show,
		"archive":   a.Archive,
		"unarchive": a.Unarchive,
		"pin":       a.Pin,
		"unpin":     a.Unpin,
		"delete":    a.Delete,
		"rm":        a.Delete,
		"attach":    a.Attach,
		"share":     a.Share,
		"shared":    a.Shared,
		"tags":      a.Tags,
		"draft":     a.Draft,
		"groups":    a.Groups,
		"g":         a.Groups,
		"sync":      a.Sync,
		"resume":    a.Resume,
		"status":    a.Status,
	}

	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("memos %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.hasAccount() {
				printlnFn("Available commands: add, edit, (l)ist, show, archive, unarchive, pin, unpin, delete, attach, " +
					"share, shared, tags, draft, (g)roups, sync, resume, status, signin, local, signout, exit")
			} else {
				printlnFn("Available commands: signin, local, exit")
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		h, ok := accountFree[cmd]
		if !ok {
			if h, ok = commands[cmd]; ok && !a.hasAccount() {
				printlnFn("Error:", errNoAccount)
				continue
			}
		}
		if !ok {
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err := h(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}
