package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	t.Run("sorts keys at every depth", func(t *testing.T) {
		out, err := Canonical(map[string]any{
			"b": 2,
			"a": map[string]any{"z": true, "m": nil},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"a":{"m":null,"z":true},"b":2}`, string(out))
	})

	t.Run("integral floats render like integers", func(t *testing.T) {
		asFloat, err := Canonical(map[string]any{"age": 30.0})
		require.NoError(t, err)
		asInt, err := Canonical(map[string]any{"age": 30})
		require.NoError(t, err)
		assert.Equal(t, string(asInt), string(asFloat))
		assert.Equal(t, `{"age":30}`, string(asFloat))
	})

	t.Run("does not escape html characters", func(t *testing.T) {
		out, err := Canonical(map[string]any{"note": "a<b>&c"})
		require.NoError(t, err)
		assert.Equal(t, `{"note":"a<b>&c"}`, string(out))
	})

	t.Run("times are rendered in UTC", func(t *testing.T) {
		ist := time.FixedZone("IST", 5*3600+1800)
		ts := time.Date(2025, 1, 2, 15, 30, 0, 0, ist)
		out, err := Canonical(map[string]any{"at": ts})
		require.NoError(t, err)
		assert.Equal(t, `{"at":"2025-01-02T10:00:00Z"}`, string(out))
	})

	t.Run("typed maps and slices", func(t *testing.T) {
		out, err := Canonical(map[string]any{
			"reasons": []string{"PEP Detected"},
			"labels":  map[string]string{"y": "2", "x": "1"},
		})
		require.NoError(t, err)
		assert.Equal(t, `{"labels":{"x":"1","y":"2"},"reasons":["PEP Detected"]}`, string(out))
	})
}

func TestContentHash_OrderInsensitive(t *testing.T) {
	first := map[string]any{"a": 1, "b": 2}
	second := map[string]any{"b": 2, "a": 1}

	assert.Equal(t, ContentHash(first), ContentHash(second))
	assert.Len(t, ContentHash(first), 64)
	assert.NotEqual(t, ContentHash(first), ContentHash(map[string]any{"a": 1, "b": 3}))
}

func TestChainHash(t *testing.T) {
	payload := map[string]any{"action": "SESSION_START"}
	content := ContentHash(payload)

	expected := sha256.Sum256([]byte("prev" + content))
	assert.Equal(t, hex.EncodeToString(expected[:]), ChainHash(payload, "prev"))
	assert.Equal(t, Link("prev", content), ChainHash(payload, "prev"))

	t.Run("same payload with different previous hash differs", func(t *testing.T) {
		assert.NotEqual(t, ChainHash(payload, Empty), ChainHash(payload, "prev"))
	})
}
