package origin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"onboard/pkg/requestcontext"
)

func TestFromContext(t *testing.T) {
	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", "curl/8.4.0")
	ctx = requestcontext.WithRequestID(ctx, "req-1")

	o := FromContext(ctx)
	assert.Equal(t, Origin{IPAddress: "203.0.113.7", UserAgent: "curl/8.4.0", RequestID: "req-1"}, o)
}

func TestClient(t *testing.T) {
	t.Run("no user agent", func(t *testing.T) {
		assert.Nil(t, Origin{}.Client())
	})

	t.Run("mobile browser", func(t *testing.T) {
		o := Origin{UserAgent: "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"}
		client := o.Client()
		assert.Equal(t, "Chrome", client["browser"])
		assert.Equal(t, true, client["mobile"])
		assert.Equal(t, false, client["bot"])
	})
}
