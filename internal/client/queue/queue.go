// Package queue is the durable per-account log of offline group mutations.
//
// Operations are kept in the account state document in enqueue order.
// Ordering is only meaningful within a group: Drain hands out every queued
// operation of one group and Requeue puts an unprocessed tail back in front.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/client/state"
	"github.com/google/uuid"
)

// Queue is bound to one account.
type Queue struct {
	store      *state.Store
	accountKey string
	now        func() time.Time
}

func New(store *state.Store, accountKey string) *Queue {
	return &Queue{store: store, accountKey: accountKey, now: time.Now}
}

// Append adds op to the state document, assigning an operation id and an
// enqueue time when they are missing. It is meant for callers that already
// hold the state inside state.Store.Update.
func Append(st *models.AccountState, op models.PendingGroupOperation, now time.Time) models.PendingGroupOperation {
	if op.OperationID == "" {
		op.OperationID = uuid.NewString()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = now
	}
	st.PendingOperations = append(st.PendingOperations, op)
	return op
}

// Enqueue appends op and returns it with its id filled in.
func (q *Queue) Enqueue(ctx context.Context, op models.PendingGroupOperation) (models.PendingGroupOperation, error) {
	if op.GroupID == "" {
		return op, fmt.Errorf("enqueue %s: empty group id", op.Kind)
	}

	var stored models.PendingGroupOperation
	err := q.store.Update(ctx, q.accountKey, func(st *models.AccountState) error {
		stored = Append(st, op, q.now())
		return nil
	})
	if err != nil {
		return op, fmt.Errorf("failed to enqueue operation: %w", err)
	}
	return stored, nil
}

// Drain removes and returns the queued operations of groupID in enqueue order.
func (q *Queue) Drain(ctx context.Context, groupID string) ([]models.PendingGroupOperation, error) {
	var drained []models.PendingGroupOperation
	err := q.store.Update(ctx, q.accountKey, func(st *models.AccountState) error {
		kept := st.PendingOperations[:0:0]
		for _, op := range st.PendingOperations {
			if op.GroupID == groupID {
				drained = append(drained, op)
				continue
			}
			kept = append(kept, op)
		}
		st.PendingOperations = kept
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drain group %s: %w", groupID, err)
	}
	return drained, nil
}

// Requeue puts ops back at the front of the log in their given order.
// Operations already present, matched by id, are not duplicated.
func (q *Queue) Requeue(ctx context.Context, ops []models.PendingGroupOperation) error {
	if len(ops) == 0 {
		return nil
	}

	err := q.store.Update(ctx, q.accountKey, func(st *models.AccountState) error {
		present := make(map[string]struct{}, len(st.PendingOperations))
		for _, op := range st.PendingOperations {
			present[op.OperationID] = struct{}{}
		}

		front := make([]models.PendingGroupOperation, 0, len(ops)+len(st.PendingOperations))
		for _, op := range ops {
			if _, ok := present[op.OperationID]; ok {
				continue
			}
			present[op.OperationID] = struct{}{}
			front = append(front, op)
		}
		st.PendingOperations = append(front, st.PendingOperations...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to requeue operations: %w", err)
	}
	return nil
}

// Groups lists the groups with queued operations, ordered by their first
// queued operation.
func (q *Queue) Groups(ctx context.Context) ([]string, error) {
	st, err := q.store.Load(ctx, q.accountKey)
	if err != nil {
		return nil, err
	}

	var groups []string
	seen := make(map[string]struct{})
	for _, op := range st.PendingOperations {
		if _, ok := seen[op.GroupID]; ok {
			continue
		}
		seen[op.GroupID] = struct{}{}
		groups = append(groups, op.GroupID)
	}
	return groups, nil
}

// List returns a copy of the whole log.
func (q *Queue) List(ctx context.Context) ([]models.PendingGroupOperation, error) {
	st, err := q.store.Load(ctx, q.accountKey)
	if err != nil {
		return nil, err
	}
	return st.PendingOperations, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	ops, err := q.List(ctx)
	return len(ops), err
}
