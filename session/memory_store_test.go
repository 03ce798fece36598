package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	brokererrors "github.com/idbroker/broker/internal/errors"
	"github.com/idbroker/broker/session"
)

func TestMemoryStore_putGetDelete(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	id, err := session.NewID()
	require.NoError(t, err)

	record := session.Record{Kind: session.KindEmail, Email: "user@nobody.test", Code: "ABC123"}
	require.NoError(t, store.Put(ctx, id, record, time.Minute))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, record, got)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	require.ErrorIs(t, err, brokererrors.ErrNotFound)
}

func TestMemoryStore_putCollision(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	require.NoError(t, store.Put(ctx, "dup", session.Record{}, time.Minute))
	err := store.Put(ctx, "dup", session.Record{}, time.Minute)
	require.Error(t, err)
}

func TestMemoryStore_verifyAndConsumeMatch(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	record := session.Record{Kind: session.KindEmail, Email: "user@nobody.test", Code: "ABC123"}
	require.NoError(t, store.Put(ctx, "sess", record, time.Minute))

	got, err := store.VerifyAndConsume(ctx, "sess", "ABC123")
	require.NoError(t, err)
	require.Equal(t, record, got)

	_, err = store.Get(ctx, "sess")
	require.ErrorIs(t, err, brokererrors.ErrNotFound)
}

func TestMemoryStore_verifyAndConsumeMismatchLeavesRecord(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	record := session.Record{Kind: session.KindEmail, Email: "user@nobody.test", Code: "ABC123"}
	require.NoError(t, store.Put(ctx, "sess", record, time.Minute))

	_, err := store.VerifyAndConsume(ctx, "sess", "WRONG")
	require.ErrorIs(t, err, brokererrors.ErrMismatch)

	got, err := store.Get(ctx, "sess")
	require.NoError(t, err)
	require.Equal(t, record, got)
}

func TestMemoryStore_ttlExpiry(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	record := session.Record{Kind: session.KindEmail, Code: "ABC123"}
	require.NoError(t, store.Put(ctx, "sess", record, 100*time.Millisecond))

	time.Sleep(150 * time.Millisecond)
	_, err := store.Get(ctx, "sess")
	require.ErrorIs(t, err, brokererrors.ErrNotFound)
}

func TestMemoryStore_atMostOnceRedemption(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	record := session.Record{Kind: session.KindEmail, Code: "ABC123"}
	require.NoError(t, store.Put(ctx, "sess", record, time.Minute))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.VerifyAndConsume(ctx, "sess", "ABC123")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes)
}
