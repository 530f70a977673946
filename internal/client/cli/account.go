package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/syncer"
)

// getSimpleText and getToken are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getToken      = GetToken
)

// SignIn verifies a server URL and access token and makes the account
// active. Missing values are prompted for; the token is read without echo.
func (a *App) SignIn(ctx context.Context, args []string) error {
	url := a.config.ServerURL
	if len(args) > 0 {
		url = args[0]
	}
	if url == "" {
		var err error
		if url, err = getSimpleText(a.reader, "Server URL", a.out); err != nil {
			return err
		}
	}

	token, err := getToken(a.out)
	if err != nil {
		return err
	}

	acc, err := a.accounts.SignIn(ctx, url, token)
	if err != nil {
		return err
	}
	return a.activate(ctx, acc)
}

// UseLocal switches to a device-only account that never syncs.
func (a *App) UseLocal(ctx context.Context, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	acc, err := a.accounts.UseLocal(ctx, id)
	if err != nil {
		return err
	}
	return a.activate(ctx, acc)
}

func (a *App) activate(ctx context.Context, acc models.Account) error {
	if err := a.bind(acc); err != nil {
		return err
	}
	s := a.session()
	fmt.Fprintln(a.out, "Using account", s.key)

	if s.engine != nil {
		a.background(func() {
			a.syncInBackground(ctx, s.engine, func(ctx context.Context) (syncer.Result, error) {
				return s.engine.OnAppStart(ctx)
			})
		})
	}
	return nil
}

// SignOut removes the account and everything stored for it.
func (a *App) SignOut(ctx context.Context, _ []string) error {
	s := a.session()
	if s.engine != nil {
		if n, err := s.engine.Queue().Len(ctx); err == nil && n > 0 {
			fmt.Fprintf(a.out, "%d group changes are not synced yet.\n", n)
		}
	}
	if !Confirm(a.reader, "Sign out and delete local data of "+s.key+"?", a.out) {
		return nil
	}

	if err := a.accounts.SignOut(ctx); err != nil {
		return err
	}
	a.unbind()
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
