package eventbus

import "testing"

func TestBus_PublishReachesSubscribers(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Publish("hello")
	if got := <-sub; got != "hello" {
		t.Fatalf("unexpected event: %v", got)
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	// Fill the buffer and keep publishing; Publish must not block.
	for i := 0; i < 100; i++ {
		b.Publish(i)
	}
	b.Unsubscribe(sub)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed on unsubscribe")
	}
	b.Publish("ignored")
}

func TestBus_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed on Close")
	}
	// Publish and a second Close after shutdown are harmless.
	b.Publish("ignored")
	b.Close()
	if ch := b.Subscribe(); ch == nil {
		t.Fatal("subscribe after close returned nil channel")
	}
}
