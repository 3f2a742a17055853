package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishFansOutToTopicSubscribers(t *testing.T) {
	h := NewHub(8, nil)

	s1 := h.Subscribe(ProviderTopic("prov-1"))
	defer s1.Close()
	s2 := h.Subscribe(ProviderTopic("prov-1"))
	defer s2.Close()
	other := h.Subscribe(ProviderTopic("prov-2"))
	defer other.Close()

	h.Publish(Event{Topic: ProviderTopic("prov-1"), Kind: KindSlotUpdate, Payload: "day"})

	for _, s := range []*Subscription{s1, s2} {
		ev := recvEvent(t, s)
		assert.Equal(t, KindSlotUpdate, ev.Kind)
		assert.Equal(t, "day", ev.Payload)
		assert.False(t, ev.PublishedAt.IsZero())
	}

	select {
	case ev := <-other.C():
		t.Fatalf("unexpected event on other topic: %+v", ev)
	default:
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(1, nil)

	slow := h.Subscribe(DepartmentTopic("radiology", "2025-06-01"))
	defer slow.Close()

	// Buffer holds one event; the second must be dropped, not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Publish(Event{Topic: slow.Topic(), Kind: KindQueueUpdate, Payload: 1})
		h.Publish(Event{Topic: slow.Topic(), Kind: KindQueueUpdate, Payload: 2})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}

	ev := recvEvent(t, slow)
	assert.Equal(t, 1, ev.Payload)
	select {
	case ev := <-slow.C():
		t.Fatalf("expected second event to be dropped, got %+v", ev)
	default:
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	h := NewHub(8, nil)
	h.Publish(Event{Topic: PatientTopic("pat-1"), Kind: KindMemoCreated})
}

func TestCloseRemovesSubscription(t *testing.T) {
	h := NewHub(8, nil)
	topic := PatientTopic("pat-1")

	s := h.Subscribe(topic)
	require.Equal(t, 1, h.SubscriberCount(topic))

	s.Close()
	assert.Equal(t, 0, h.SubscriberCount(topic))

	// Channel is closed and double close is safe.
	_, open := <-s.C()
	assert.False(t, open)
	s.Close()

	// Publishing after close must not panic on the closed channel.
	h.Publish(Event{Topic: topic, Kind: KindMemoUpdated})
}

func TestTopicBuilders(t *testing.T) {
	assert.Equal(t, "provider:p1", ProviderTopic("p1"))
	assert.Equal(t, "department:d1:2025-06-01", DepartmentTopic("d1", "2025-06-01"))
	assert.Equal(t, "patient:u1", PatientTopic("u1"))
}
