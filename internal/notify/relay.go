package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/slotqueue/pkg/logging"
)

// Relay bridges the in-process hub with Redis pub/sub so that several API
// instances share one event space. Local publishes fan out locally first,
// then get forwarded to Redis; events arriving from other instances are
// injected into the local hub only. Delivery stays at-most-once end to end.
type Relay struct {
	hub        *Hub
	rdb        *redis.Client
	prefix     string
	instanceID string
	logger     *logging.Logger
}

type envelope struct {
	Origin string    `json:"origin"`
	Event  wireEvent `json:"event"`
}

type wireEvent struct {
	Topic       string          `json:"topic"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

func NewRelay(hub *Hub, rdb *redis.Client, prefix string, logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{
		hub:        hub,
		rdb:        rdb,
		prefix:     prefix,
		instanceID: uuid.NewString(),
		logger:     logger,
	}
}

// Publish implements Publisher. The local hub is served before the Redis
// round trip so in-process subscribers never wait on the network.
func (r *Relay) Publish(ev Event) {
	if ev.PublishedAt.IsZero() {
		ev.PublishedAt = time.Now()
	}
	r.hub.Publish(ev)

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		r.logger.Error("notify: marshal relay payload", "error", err, "topic", ev.Topic)
		return
	}
	data, err := json.Marshal(envelope{
		Origin: r.instanceID,
		Event: wireEvent{
			Topic:       ev.Topic,
			Kind:        ev.Kind,
			Payload:     payload,
			PublishedAt: ev.PublishedAt,
		},
	})
	if err != nil {
		r.logger.Error("notify: marshal relay envelope", "error", err, "topic", ev.Topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.rdb.Publish(ctx, r.prefix+ev.Topic, data).Err(); err != nil {
		r.logger.Error("notify: redis publish failed", "error", err, "topic", ev.Topic)
	}
}

// Run consumes events from other instances until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handleMessage(msg)
		}
	}
}

func (r *Relay) handleMessage(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		r.logger.Error("notify: bad relay envelope", "error", err, "channel", msg.Channel)
		return
	}
	if env.Origin == r.instanceID {
		return
	}

	r.hub.Publish(Event{
		Topic:       env.Event.Topic,
		Kind:        env.Event.Kind,
		Payload:     env.Event.Payload,
		PublishedAt: env.Event.PublishedAt,
	})
}
