package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

func TestShardedTx_SerialisesSameSession(t *testing.T) {
	tx := NewShardedTx(time.Second)
	sessionID := id.NewSessionID()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tx.RunInTx(context.Background(), sessionID, func(ctx context.Context) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestShardedTx_PropagatesError(t *testing.T) {
	tx := NewShardedTx(0)
	want := dErrors.New(dErrors.CodeConflict, "boom")
	err := tx.RunInTx(context.Background(), id.NewSessionID(), func(context.Context) error { return want })
	assert.Equal(t, want, err)
}

func TestShardedTx_CancelledContext(t *testing.T) {
	tx := NewShardedTx(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := tx.RunInTx(ctx, id.NewSessionID(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeTimeout, dErrors.CodeOf(err))
	assert.False(t, called)
}

func TestShardedTx_AppliesTimeout(t *testing.T) {
	tx := NewShardedTx(20 * time.Millisecond)
	err := tx.RunInTx(context.Background(), id.NewSessionID(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 20*time.Millisecond)
		return nil
	})
	assert.NoError(t, err)
}
