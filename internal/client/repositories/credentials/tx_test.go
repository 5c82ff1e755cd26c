package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func countRows(t *testing.T, r *SQLiteRepository) int {
	t.Helper()
	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM credentials`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	err := withTx(context.Background(), r.db, func(ctx context.Context, tx dbtx) error {
		return set(ctx, tx, "token", []byte("ok"))
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, r))
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	err := withTx(context.Background(), r.db, func(ctx context.Context, tx dbtx) error {
		require.NoError(t, set(ctx, tx, "token", []byte("fail")))
		return errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, 0, countRows(t, r))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	defer func() {
		if p := recover(); p == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, r))
	}()

	_ = withTx(context.Background(), r.db, func(ctx context.Context, tx dbtx) error {
		require.NoError(t, set(ctx, tx, "token", []byte("panic")))
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := withTx(context.Background(), db, func(ctx context.Context, tx dbtx) error { return nil })
	require.Error(t, err)
}
