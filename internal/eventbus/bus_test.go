package eventbus

import (
	"testing"
	"time"

	"pushkit/internal/message"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	defer b.Close()

	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub1()
	defer unsub2()

	m := &message.Message{ID: "m1"}
	b.Publish(Event{Type: Added, Message: m})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != Added || e.Message.ID != "m1" {
				t.Fatalf("subscriber %d got %+v", i, e)
			}
			if e.Time.IsZero() {
				t.Fatal("publish should stamp the time")
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()
	b := New()
	defer b.Close()
	// Must not block or panic; the event is simply dropped.
	b.Publish(Event{Type: Received})
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()
	b := New()
	defer b.Close()

	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: Added})
	b.Publish(Event{Type: Added}) // buffer full: dropped, not blocked

	<-ch
	select {
	case <-ch:
		t.Fatal("second event should have been dropped")
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := New()
	defer b.Close()

	ch, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	b.Publish(Event{Type: Tapped}) // no panic
}

func TestCloseSemantics(t *testing.T) {
	t.Parallel()
	b := New()
	ch, _ := b.Subscribe(1)

	b.Close()
	b.Close() // close exactly once; second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatal("subscriber channel should be closed by Close")
	}

	// Publish after close is a no-op, not an error.
	b.Publish(Event{Type: Added})

	// Late subscribers get an already-closed channel.
	late, unsub := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatal("subscribe after close should yield a closed channel")
	}
	unsub()
}

func TestConcurrentSubscribePublish(t *testing.T) {
	t.Parallel()
	b := New()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			b.Publish(Event{Type: Received})
		}
	}()
	for i := 0; i < 50; i++ {
		_, unsub := b.Subscribe(1)
		unsub()
	}
	<-done
}
