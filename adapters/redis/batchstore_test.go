package redis

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/coursekb/batch"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts Options) (*BatchStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewBatchStore(client, opts), mr
}

func TestBatchStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t, Options{})

	_, err := store.Get(ctx, "batch_missing")
	assert.ErrorIs(t, err, batch.ErrNotFound)

	state := batch.NewState([]batch.FileInfo{{Name: "a.pdf", Size: 10}, {Name: "b.pdf", Size: 20}}, "batch_1")
	state.UpdateFileStatus("a.pdf_10", batch.StatusSuccess, "", 1)
	state.UpdateFileStatus("b.pdf_20", batch.StatusFailed, "not a valid PDF")
	require.NoError(t, store.Save(ctx, state))
	assert.True(t, mr.Exists("coursekb:batch:batch_1"))

	got, err := store.Get(ctx, "batch_1")
	require.NoError(t, err)
	assert.Equal(t, state.Summary(), got.Summary())
	assert.Equal(t, batch.OverallCompleted, got.OverallStatus)
	assert.Equal(t, "not a valid PDF", got.Files["b.pdf_20"].Error)
	require.NotNil(t, got.Files["a.pdf_10"].UploadTime)
	assert.True(t, got.ShouldProcess("b.pdf_20"))

	require.NoError(t, store.Delete(ctx, "batch_1"))
	_, err = store.Get(ctx, "batch_1")
	assert.ErrorIs(t, err, batch.ErrNotFound)
}

func TestBatchStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t, Options{Prefix: "test:", TTL: time.Hour})

	require.NoError(t, store.Save(ctx, batch.NewState(nil, "batch_ttl")))
	assert.Equal(t, time.Hour, mr.TTL("test:batch_ttl"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "batch_ttl")
	assert.ErrorIs(t, err, batch.ErrNotFound)
}

func TestBatchStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t, Options{})

	require.NoError(t, mr.Set("coursekb:batch:bad", "{"))
	_, err := store.Get(ctx, "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, batch.ErrNotFound)
}

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	addr := mr.Addr()
	client, err := NewClient(context.Background(), addr, "", 0)
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = NewClient(context.Background(), addr, "", 0)
	assert.Error(t, err)
}
