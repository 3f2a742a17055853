package notify

import (
	"sync"
	"time"

	"github.com/clinicore/slotqueue/pkg/logging"
)

// Event kinds published by the coordination engine.
const (
	KindSlotUpdate  = "slot-update"
	KindQueueUpdate = "queue-update"
	KindMemoCreated = "memo-created"
	KindMemoUpdated = "memo-updated"
)

// Event carries the full updated state for one topic, never a diff.
// Subscribers render from the payload directly.
type Event struct {
	Topic       string    `json:"topic"`
	Kind        string    `json:"kind"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}

// Topic builders. Subscriptions are keyed by provider, by department/date,
// and by patient (memo notifications).
func ProviderTopic(providerID string) string {
	return "provider:" + providerID
}

func DepartmentTopic(departmentID, date string) string {
	return "department:" + departmentID + ":" + date
}

func PatientTopic(patientID string) string {
	return "patient:" + patientID
}

// Publisher is what the engine publishes committed state changes through.
type Publisher interface {
	Publish(ev Event)
}

// Subscription is one observer's channel onto a topic. Close tears it down;
// closing twice is safe.
type Subscription struct {
	topic string
	ch    chan Event
	hub   *Hub
	once  sync.Once
}

// C is the event delivery channel. It is closed when the subscription is.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

func (s *Subscription) Topic() string {
	return s.topic
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub fans committed state changes out to per-topic subscribers. Delivery is
// at-most-once and best-effort: an event is dropped for a subscriber whose
// buffer is full, and the client reconciles by re-fetching the snapshot.
type Hub struct {
	buffer int
	logger *logging.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub(buffer int, logger *logging.Logger) *Hub {
	if buffer <= 0 {
		buffer = 8
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		buffer: buffer,
		logger: logger,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

func (h *Hub) Subscribe(topic string) *Subscription {
	s := &Subscription{
		topic: topic,
		ch:    make(chan Event, h.buffer),
		hub:   h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[topic]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[topic] = set
	}
	set[s] = struct{}{}
	return s
}

// Publish delivers the event to every current subscriber of its topic
// without ever blocking the caller.
func (h *Hub) Publish(ev Event) {
	if ev.PublishedAt.IsZero() {
		ev.PublishedAt = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[ev.Topic] {
		select {
		case s.ch <- ev:
		default:
			h.logger.Debug("notify: dropping event for slow subscriber",
				"topic", ev.Topic, "kind", ev.Kind)
		}
	}
}

// SubscriberCount reports the live subscriber count for a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[s.topic]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.topic)
	}
}
