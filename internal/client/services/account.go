package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/memosync/internal/client/client"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/memos"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/memosync/internal/client/state"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/logging"
	"github.com/google/uuid"
)

// activeAccountKey is the device-wide metadata key holding the active account.
const activeAccountKey = "account"

// Dialer builds a client for a server. The caller closes it.
type Dialer func(serverURL, token string) (client.Client, error)

type AccountService interface {
	// SignIn checks the token against the server and makes the account
	// active. Nothing is stored when the check fails.
	SignIn(ctx context.Context, serverURL, token string) (models.Account, error)
	UseLocal(ctx context.Context, deviceID string) (models.Account, error)
	// Current returns common.ErrNoAccount when nobody is signed in.
	Current(ctx context.Context) (models.Account, error)
	// SignOut wipes every memo and every piece of state of the active account.
	SignOut(ctx context.Context) error
}

type accountService struct {
	meta  metadata.Repository
	memos memos.Repository
	store *state.Store
	dial  Dialer
	log   logging.Logger
}

func NewAccountService(meta metadata.Repository, repo memos.Repository, store *state.Store, dial Dialer, log logging.Logger) AccountService {
	if log == nil {
		log = logging.Nop()
	}
	return &accountService{meta: meta, memos: repo, store: store, dial: dial, log: log}
}

func (s *accountService) SignIn(ctx context.Context, serverURL, token string) (models.Account, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	token = strings.TrimSpace(token)
	if serverURL == "" || token == "" {
		return models.Account{}, fmt.Errorf("server url and token are required: %w", common.ErrInvalidArgument)
	}

	c, err := s.dial(serverURL, token)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Close()

	u, err := c.CurrentUser(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to verify token: %w", err)
	}
	if u.ID() == "" {
		return models.Account{}, fmt.Errorf("server returned user without id: %w", client.ErrInvalidServer)
	}

	acc := models.NewKeerV2Account(serverURL, u.ID(), token)
	if err := s.activate(ctx, acc); err != nil {
		return models.Account{}, err
	}
	s.log.Info(ctx, "signed in", "server", serverURL, "user", u.Username)
	return acc, nil
}

func (s *accountService) UseLocal(ctx context.Context, deviceID string) (models.Account, error) {
	if strings.TrimSpace(deviceID) == "" {
		deviceID = uuid.NewString()
	}
	acc := models.NewLocalAccount(deviceID)
	if err := s.activate(ctx, acc); err != nil {
		return models.Account{}, err
	}
	return acc, nil
}

func (s *accountService) activate(ctx context.Context, acc models.Account) error {
	if _, err := acc.Key(); err != nil {
		return err
	}
	if err := metadata.SetJSON(ctx, s.meta, "", activeAccountKey, acc); err != nil {
		return fmt.Errorf("failed to store account: %w", err)
	}
	return nil
}

func (s *accountService) Current(ctx context.Context) (models.Account, error) {
	var acc models.Account
	ok, err := metadata.GetJSON(ctx, s.meta, "", activeAccountKey, &acc)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	if !ok {
		return models.Account{}, common.ErrNoAccount
	}
	return acc, nil
}

func (s *accountService) SignOut(ctx context.Context) error {
	acc, err := s.Current(ctx)
	if errors.Is(err, common.ErrNoAccount) {
		return nil
	}
	if err != nil {
		return err
	}

	key, err := acc.Key()
	if err != nil {
		return err
	}

	if err := s.memos.WipeAccount(ctx, key); err != nil {
		return fmt.Errorf("failed to wipe memos: %w", err)
	}
	if err := s.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	if err := s.meta.Clear(ctx, key); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	if err := s.meta.Delete(ctx, "", activeAccountKey); err != nil {
		return fmt.Errorf("failed to forget account: %w", err)
	}
	s.log.Info(ctx, "signed out", "account", key)
	return nil
}
