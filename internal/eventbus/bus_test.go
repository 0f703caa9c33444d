package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	bus := New()
	ch1, unsub1 := bus.Subscribe(4)
	defer unsub1()
	ch2, unsub2 := bus.Subscribe(4)
	defer unsub2()

	bus.Publish(Event{Type: "robot.state", Data: "hello"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			assert.Equal(t, "robot.state", e.Type)
			assert.Equal(t, "hello", e.Data)
			assert.False(t, e.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Type: "burst"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	// The slow subscriber keeps only what fit in its buffer.
	assert.Len(t, ch, 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	ch, unsub := bus.Subscribe(4)

	unsub()
	unsub() // idempotent

	// Channel is closed, and further publishes must not panic.
	_, ok := <-ch
	require.False(t, ok)
	bus.Publish(Event{Type: "after"})
}

func TestSubscribersAreIndependent(t *testing.T) {
	bus := New()
	ch1, unsub1 := bus.Subscribe(4)
	ch2, unsub2 := bus.Subscribe(4)
	unsub1()

	bus.Publish(Event{Type: "only-two"})

	select {
	case e := <-ch2:
		assert.Equal(t, "only-two", e.Type)
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber did not receive event")
	}
	_, ok := <-ch1
	assert.False(t, ok)
	unsub2()
}
