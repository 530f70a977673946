// Package metadata stores small per-account key/value documents, such as the
// serialized account state and the remembered account list.
package metadata

import (
	"context"
)

// Repository is a key/value store scoped by account key. Get returns
// (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, accountKey, key string) ([]byte, error)
	Set(ctx context.Context, accountKey, key string, value []byte) error
	Delete(ctx context.Context, accountKey, key string) error
	List(ctx context.Context, accountKey string) (map[string][]byte, error)
	Clear(ctx context.Context, accountKey string) error
}
