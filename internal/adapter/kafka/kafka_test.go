package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/whereami/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	res, err := domain.NewSuccess(domain.MethodIP, "ip-api", 40.7128, -74.0060)
	require.NoError(t, err)

	msg, err := serializeToMessage(res)
	require.NoError(t, err)

	assert.Equal(t, []byte("ip"), msg.Key)
	assert.Contains(t, string(msg.Value), `"source":"ip-api"`)
	assert.Contains(t, string(msg.Value), `"lat":40.7128`)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "outcome", msg.Headers[0].Key)
	assert.Equal(t, []byte("success"), msg.Headers[0].Value)
	assert.Equal(t, "observed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(res.ObservedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessageFailure(t *testing.T) {
	res := domain.NewFailure(domain.MethodHybrid, "selector", domain.ReasonExhausted)

	msg, err := serializeToMessage(res)
	require.NoError(t, err)

	assert.Equal(t, []byte("hybrid"), msg.Key)
	assert.Equal(t, []byte("failure"), msg.Headers[0].Value)
	assert.Contains(t, string(msg.Value), domain.ReasonExhausted)
}
