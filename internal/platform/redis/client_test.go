package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/platform/config"
)

func TestNewWithoutURL(t *testing.T) {
	client, err := New(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(config.RedisConfig{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis url")
}

func TestOptionsOverlay(t *testing.T) {
	opts, err := options(config.RedisConfig{
		URL:          "redis://cache:6379/2",
		PoolSize:     32,
		MinIdleConns: 4,
		ReadTimeout:  2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 32, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, defaultDialTimeout, opts.DialTimeout)
}
