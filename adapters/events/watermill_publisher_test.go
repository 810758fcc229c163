package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher_PublishAuthenticated(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub, "")
	require.NoError(t, pub.PublishAuthenticated(ctx, "cyber1abc", "sub-1"))

	select {
	case msg := <-messages:
		msg.Ack()

		var event AuthenticatedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "cyber1abc", event.WalletAddress)
		assert.Equal(t, "sub-1", event.SubjectID)
		assert.False(t, event.AuthenticatedAt.IsZero())
		assert.Equal(t, "cyber1abc", msg.Metadata.Get("wallet_address"))
		assert.NotEmpty(t, msg.UUID)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestWatermillPublisher_ClosedPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	require.NoError(t, pubSub.Close())

	pub := NewWatermillPublisher(pubSub, "custom.topic")
	err := pub.PublishAuthenticated(context.Background(), "cyber1abc", "sub-1")
	assert.Error(t, err)
}
