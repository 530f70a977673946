// Package state persists the per-account settings document: groups, the
// pending operation queue, group id aliases and cached snapshots.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/memosync/internal/common"
)

const stateKey = "state"

// Store loads and mutates AccountState documents. Updates for the same
// account are serialized.
type Store struct {
	repo metadata.Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(repo metadata.Repository) *Store {
	return &Store{repo: repo, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) lock(accountKey string) func() {
	s.mu.Lock()
	l, ok := s.locks[accountKey]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountKey] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Load returns the stored state, or an empty one if nothing was saved yet.
func (s *Store) Load(ctx context.Context, accountKey string) (models.AccountState, error) {
	unlock := s.lock(accountKey)
	defer unlock()
	return s.load(ctx, accountKey)
}

func (s *Store) load(ctx context.Context, accountKey string) (models.AccountState, error) {
	var st models.AccountState

	b, err := s.repo.Get(ctx, accountKey, stateKey)
	if err != nil {
		return st, fmt.Errorf("failed to load account state: %w", err)
	}
	if b == nil {
		return st, nil
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return models.AccountState{}, fmt.Errorf("account state of %s is unreadable (%v): %w",
			accountKey, err, common.ErrLocalStorageCorruption)
	}
	return st, nil
}

// Update loads the state, applies fn and saves the result. Nothing is saved
// when fn returns an error.
func (s *Store) Update(ctx context.Context, accountKey string, fn func(*models.AccountState) error) error {
	unlock := s.lock(accountKey)
	defer unlock()

	st, err := s.load(ctx, accountKey)
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	if err := metadata.SetJSON(ctx, s.repo, accountKey, stateKey, st); err != nil {
		return fmt.Errorf("failed to save account state: %w", err)
	}
	return nil
}

// Clear removes the stored state of the account.
func (s *Store) Clear(ctx context.Context, accountKey string) error {
	unlock := s.lock(accountKey)
	defer unlock()

	if err := s.repo.Delete(ctx, accountKey, stateKey); err != nil {
		return fmt.Errorf("failed to clear account state: %w", err)
	}
	return nil
}
