package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/syncer"
)

var errLocalAccount = errors.New("a local account does not sync")

func (a *App) engine() (*syncer.Engine, error) {
	s := a.session()
	if s.engine == nil {
		return nil, errLocalAccount
	}
	return s.engine, nil
}

func (a *App) printResult(res syncer.Result) {
	if !res.Ran {
		fmt.Fprintln(a.out, "Skipped: a pass is running or it is too soon")
		return
	}
	fmt.Fprintf(a.out, "%s: pushed %d, deleted %d, pulled %d, pruned %d, group ops %d",
		res.State, res.Pushed, res.Deleted, res.Pulled, res.Pruned, res.Dispatched)
	if res.Requeued > 0 {
		fmt.Fprintf(a.out, ", requeued %d", res.Requeued)
	}
	if res.ItemFailures > 0 {
		fmt.Fprintf(a.out, ", skipped %d", res.ItemFailures)
	}
	fmt.Fprintln(a.out)
}

// Sync forces a pass regardless of coalescing windows and backoff.
func (a *App) Sync(ctx context.Context, _ []string) error {
	e, err := a.engine()
	if err != nil {
		return err
	}
	res, err := e.Sync(ctx, syncer.TriggerManual, true)
	a.printResult(res)
	return err
}

// Resume behaves like returning to the foreground.
func (a *App) Resume(ctx context.Context, _ []string) error {
	e, err := a.engine()
	if err != nil {
		return err
	}
	res, err := e.OnResume(ctx)
	a.printResult(res)
	return err
}

func (a *App) Status(ctx context.Context, _ []string) error {
	e, err := a.engine()
	if err != nil {
		return err
	}

	st := e.Status().Current()
	fmt.Fprintf(a.out, "State: %s\n", st.State)
	fmt.Fprintf(a.out, "Unsynced memos: %d\n", st.UnsyncedCount)
	if n, err := e.Queue().Len(ctx); err == nil {
		fmt.Fprintf(a.out, "Pending group changes: %d\n", n)
	}
	if p := st.Progress(); p != nil {
		fmt.Fprintf(a.out, "Uploads: %d/%d files, %.0f%%\n", st.UploadedFiles, st.TotalFiles, *p*100)
	}
	if !st.LastSuccessAt.IsZero() {
		fmt.Fprintf(a.out, "Last success: %s\n", st.LastSuccessAt.Local().Format(dateLayout))
	}
	if st.ErrorMessage != "" {
		fmt.Fprintf(a.out, "Last error: %s\n", st.ErrorMessage)
	}
	if sched := e.Coordinator().Schedule(); sched.BackoffUntil.After(time.Now()) {
		fmt.Fprintf(a.out, "Backing off until %s\n", sched.BackoffUntil.Local().Format(dateLayout))
	}
	return nil
}
