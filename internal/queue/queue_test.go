package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: TypeDigest, Body: []byte("12:30")}))

	messages, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case msg := <-messages:
		assert.Equal(t, TypeDigest, msg.Type)
		assert.Equal(t, "12:30", string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryPublishRespectsCancellation(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, Message{Type: TypeDigest, Body: []byte("12:30")}))

	cancel()
	err := q.Publish(ctx, Message{Type: TypeDigest, Body: []byte("16:00")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeDigest, Body: []byte("12:30")}
	got := deserialize(serialize(msg))
	assert.Equal(t, msg, got)
}

func TestDeserializeBodyMayContainSeparator(t *testing.T) {
	msg := Message{Type: TypeDigest, Body: []byte("a|b|c")}
	got := deserialize(serialize(msg))
	assert.Equal(t, TypeDigest, got.Type)
	assert.Equal(t, "a|b|c", string(got.Body))
}

func TestDeserializeWithoutType(t *testing.T) {
	got := deserialize("just-a-body")
	assert.Empty(t, got.Type)
	assert.Equal(t, "just-a-body", string(got.Body))
}
