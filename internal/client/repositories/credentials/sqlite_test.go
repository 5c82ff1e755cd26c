package credentials

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE credentials (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestSetAndGet_InsertThenGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "token", []byte("abc")))

	v, err := r.Get(ctx, "token")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v)
}

func TestGet_NotExists_ReturnsNilNil(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSet_UpsertOverwritesValue(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "user", []byte(`{"name":"Old"}`)))
	require.NoError(t, r.Set(ctx, "user", []byte(`{"name":"New"}`)))

	v, err := r.Get(ctx, "user")
	require.NoError(t, err)
	require.Equal(t, `{"name":"New"}`, string(v))
}

func TestSet_NilValueStoredAsEmpty(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", nil))

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Empty(t, v)
}

func TestSetAll_WritesEverySlot(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "token", []byte("old")))
	require.NoError(t, r.SetAll(ctx, map[string][]byte{
		"token": []byte("abc"),
		"user":  []byte(`{"id":"1"}`),
	}))

	tok, err := r.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(tok))

	usr, err := r.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(usr))
}

func TestSetAll_FailureRollsBack(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := db.Exec(`CREATE TRIGGER reject_user BEFORE INSERT ON credentials
		WHEN NEW.key = 'user' BEGIN SELECT RAISE(ABORT, 'rejected'); END;`)
	require.NoError(t, err)

	err = r.SetAll(ctx, map[string][]byte{"token": []byte("abc"), "user": []byte("{}")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to set credentials")

	v, err := r.Get(ctx, "token")
	require.NoError(t, err)
	assert.Nil(t, v, "token must not be written when the user slot fails")
}

func TestDelete_RemovesKeys_AndIsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "token", []byte("abc")))
	require.NoError(t, r.Set(ctx, "user", []byte("{}")))
	require.NoError(t, r.Set(ctx, "other", []byte("keep")))

	require.NoError(t, r.Delete(ctx, "token", "user"))

	for _, k := range []string{"token", "user"} {
		v, err := r.Get(ctx, k)
		require.NoError(t, err)
		require.Nil(t, v)
	}
	v, err := r.Get(ctx, "other")
	require.NoError(t, err)
	require.Equal(t, "keep", string(v))

	require.NoError(t, r.Delete(ctx, "token", "user"))
}

func TestRepository_DBErrorsWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get credential[k]")

	require.ErrorContains(t, r.Set(ctx, "k", []byte("v")), "failed to set credential[k]")
	require.ErrorContains(t, r.SetAll(ctx, map[string][]byte{"k": nil}), "failed to set credentials")
	require.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete credentials")
}
