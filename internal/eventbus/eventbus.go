// Package eventbus is a small in-process publish/subscribe bus for the
// typed lifecycle events the core emits (browser created/released, session
// created/expired, and so on). It has no outbound broker connection: the
// reference streaming frontend subscribes to it directly rather than
// relaying through an external message system.
package eventbus

import (
	"sync"
	"time"
)

// Topic names a category of event. Topics are fixed strings rather than a
// dynamic registry — there is no reflection-based dispatch.
type Topic string

const (
	TopicBrowserCreated   Topic = "browser:created"
	TopicBrowserReleased  Topic = "browser:released"
	TopicBrowserDestroyed Topic = "browser:destroyed"
	TopicSessionCreated   Topic = "session:created"
	TopicSessionDeleted   Topic = "session:deleted"
	TopicSessionExpired   Topic = "session:expired"
	TopicContextCreated   Topic = "context:created"
	TopicContextDeleted   Topic = "context:deleted"
	TopicActionExecuted   Topic = "action:executed"
	TopicStoreDegraded    Topic = "store:degraded"
)

// Event is one published occurrence. Payload is whatever the publisher
// chose to attach — subscribers type-assert it based on Topic.
type Event struct {
	Topic     Topic
	Payload   interface{}
	Timestamp time.Time
}

const subscriberBuffer = 128

// Subscription is a single subscriber's channel and the topics it's bound
// to. Closing it via Bus.Unsubscribe stops further delivery and closes the
// channel.
type Subscription struct {
	ch     chan Event
	topics map[Topic]bool
}

// Events returns the channel this subscription receives on.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Bus fans out published events to every subscriber registered for the
// event's topic. Each subscriber has its own bounded channel; a subscriber
// that isn't draining its channel fast enough has new events dropped for it
// rather than blocking the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber for the given topics. An empty topic
// list subscribes to every topic.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	set := make(map[Topic]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	sub := &Subscription{ch: make(chan Event, subscriberBuffer), topics: set}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to every subscriber interested in its topic.
// Delivery is non-blocking: a full subscriber channel drops the event for
// that subscriber instead of stalling the publisher or other subscribers.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	evt := Event{Topic: topic, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[topic] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// SubscriberCount returns the number of currently registered subscribers,
// used by health/metrics reporting.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
