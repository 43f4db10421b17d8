package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Embedded {
	t.Helper()
	b, err := OpenEmbedded(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.Execute(context.Background(), "CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)"))
	require.NoError(t, b.Commit())
	return b
}

func count(t *testing.T, b Backend) int {
	t.Helper()
	var n int
	ok, err := b.FetchOne(context.Background(), "SELECT COUNT(*) FROM kv", nil, &n)
	require.NoError(t, err)
	require.True(t, ok)
	return n
}

func TestEmbeddedExecuteAndFetch(t *testing.T) {
	ctx := context.Background()
	b := openMemory(t)

	require.NoError(t, b.ExecuteMany(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", [][]any{{"a", 1}, {"b", 2}, {"c", 3}}))
	// Uncommitted rows are visible through the same backend.
	assert.Equal(t, 3, count(t, b))
	require.NoError(t, b.Commit())

	var got []string
	err := b.FetchAll(ctx, "SELECT k FROM kv WHERE v >= ? ORDER BY k", []any{2}, func(s Scanner) error {
		var k string
		if err := s.Scan(&k); err != nil {
			return err
		}
		got = append(got, k)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got)

	var v int
	ok, err := b.FetchOne(ctx, "SELECT v FROM kv WHERE k = ?", []any{"missing"}, &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddedFailedMutationKeepsPending(t *testing.T) {
	ctx := context.Background()
	b := openMemory(t)

	require.NoError(t, b.Execute(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1))
	err := b.ExecuteMany(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", [][]any{{"b", 2}, {"b", 3}})
	require.Error(t, err)
	// Only the failed batch is undone, including its first row.
	require.NoError(t, b.Execute(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "c", 3))
	require.NoError(t, b.Commit())
	assert.Equal(t, 2, count(t, b))
}

func TestEmbeddedCancelledMutationKeepsPending(t *testing.T) {
	b := openMemory(t)

	ctx1, cancel1 := context.WithTimeout(context.Background(), time.Second)
	require.NoError(t, b.Execute(ctx1, "INSERT INTO kv (k, v) VALUES (?, ?)", "a", 1))
	cancel1()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Execute(cancelled, "DELETE FROM kv"), context.Canceled)

	require.NoError(t, b.Execute(context.Background(), "INSERT INTO kv (k, v) VALUES (?, ?)", "b", 2))
	require.NoError(t, b.Commit())
	assert.Equal(t, 2, count(t, b))
}

func TestEmbeddedTransact(t *testing.T) {
	ctx := context.Background()
	b := openMemory(t)

	require.NoError(t, b.Execute(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "pending", 1))

	boom := errors.New("boom")
	err := b.Transact(ctx, func(e Executor) error {
		if err := e.Execute(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "tx", 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	// The pending write was committed before the transaction began.
	assert.Equal(t, 1, count(t, b))

	err = b.Transact(ctx, func(e Executor) error {
		return e.Execute(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "tx", 2)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, b))
}

func TestEmbeddedCloseDiscardsPending(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "kv.db")

	b, err := OpenEmbedded(ctx, path, WithInit(true))
	require.NoError(t, err)
	assert.Equal(t, path, b.Path())
	require.NoError(t, b.Execute(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)"))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Execute(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "kept", 1))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Execute(ctx, "INSERT INTO kv (k, v) VALUES (?, ?)", "lost", 2))
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Execute(ctx, "SELECT 1"), ErrClosed)

	b, err = OpenEmbedded(ctx, path)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 1, count(t, b))
}
