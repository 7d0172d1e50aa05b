package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/tca/internal/types"
)

func TestBroker_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&types.Notification{Type: "backup.failed", Severity: types.SeverityHigh, Message: "disk full"})

	select {
	case n := <-sub:
		require.NotNil(t, n)
		assert.Equal(t, "backup.failed", n.Type)
		assert.Equal(t, types.SeverityHigh, n.Severity)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestBroker_FanOutToMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&types.Notification{Type: "cluster.merged", Severity: types.SeverityLow})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case n := <-sub:
			require.NotNil(t, n)
			assert.Equal(t, "cluster.merged", n.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for notification")
		}
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBroker_SlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe() // never drained
	defer b.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(&types.Notification{Type: "item.normalized"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}
