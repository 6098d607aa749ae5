package eventbus

import (
	"testing"
	"time"
)

func TestPublishDeliversToMatchingTopic(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicSessionCreated)
	defer b.Unsubscribe(sub)

	b.Publish(TopicSessionCreated, "sess-1")
	b.Publish(TopicSessionDeleted, "sess-2")

	select {
	case evt := <-sub.Events():
		if evt.Topic != TopicSessionCreated || evt.Payload != "sess-1" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for matching event")
	}

	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected second event delivered: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllTopicsWhenNoneGiven(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(TopicBrowserCreated, nil)
	b.Publish(TopicContextDeleted, nil)

	for i := 0; i < 2; i++ {
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestPublishDropsOnFullSubscriberChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicActionExecuted)
	defer b.Unsubscribe(sub)

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(TopicActionExecuted, i)
	}

	if len(sub.Events()) != subscriberBuffer {
		t.Fatalf("subscriber channel len = %d, want full buffer %d", len(sub.Events()), subscriberBuffer)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe(TopicStoreDegraded)
	b.Unsubscribe(sub)

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", b.SubscriberCount())
	}
}
