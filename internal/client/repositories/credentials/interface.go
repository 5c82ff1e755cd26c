// Package credentials persists the session credential slots (token and
// serialized user) in the local SQLite database.
//
// All writes are whole-slot: a value is replaced or removed as a unit, and
// SetAll/Delete touch several slots inside one transaction.
package credentials

import (
	"context"
)

type Repository interface {
	// Get returns (nil, nil) when the slot is empty.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetAll(ctx context.Context, values map[string][]byte) error
	// Delete is idempotent.
	Delete(ctx context.Context, keys ...string) error
}
