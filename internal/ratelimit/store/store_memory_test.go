package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_Increment(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore()

	for want := 1; want <= 3; want++ {
		count, resetAt, err := st.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.WithinDuration(t, time.Now().Add(time.Minute), resetAt, time.Second)
	}

	other, _, err := st.Increment(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, other)
}

func TestInMemoryStore_WindowRollsOver(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore()

	_, _, err := st.Increment(ctx, "k", 30*time.Millisecond)
	require.NoError(t, err)
	count, _, err := st.Increment(ctx, "k", 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	time.Sleep(50 * time.Millisecond)
	count, _, err = st.Increment(ctx, "k", 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
