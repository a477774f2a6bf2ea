package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const EventClientChanged = "client.changed"

// Event announces that a client's compliance data changed.
type Event struct {
	Type     string    `json:"type"`
	ClientID string    `json:"client_id"`
	At       time.Time `json:"at"`
}

// Publisher sends raw payloads to a shared channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber receives raw payloads from a shared channel.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Broker fans events out to in-process listeners. Slow listeners miss
// events rather than block the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that ends the
// subscription.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Notifier reacts to client mutations: it invalidates the local cache and
// announces the change, through Redis when configured so other instances
// see it, or directly to local listeners otherwise.
type Notifier struct {
	cache   *Cache
	broker  *Broker
	remote  Publisher
	channel string
	now     func() time.Time
}

// NewNotifier creates a notifier. remote may be nil.
func NewNotifier(cache *Cache, broker *Broker, remote Publisher, channel string) *Notifier {
	return &Notifier{cache: cache, broker: broker, remote: remote, channel: channel, now: time.Now}
}

func (n *Notifier) ClientChanged(ctx context.Context, clientID string) {
	n.cache.Invalidate()

	ev := Event{Type: EventClientChanged, ClientID: clientID, At: n.now().UTC()}
	if n.remote == nil {
		n.broker.Publish(ev)
		return
	}

	payload, err := json.Marshal(ev)
	if err == nil {
		err = n.remote.Publish(ctx, n.channel, payload)
	}
	if err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("dashboard: publish change event failed; delivering locally")
		n.broker.Publish(ev)
	}
}

// Watch consumes change events from channel until ctx is done, invalidating
// the cache and forwarding each event to local listeners.
func Watch(ctx context.Context, sub Subscriber, channel string, cache *Cache, broker *Broker) error {
	messages, cleanup, err := sub.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("dashboard.Watch: %w", err)
	}
	defer cleanup()

	log.Info().Str("channel", channel).Msg("dashboard: watching change events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				log.Warn().Err(err).Msg("dashboard: dropping malformed change event")
				continue
			}
			cache.Invalidate()
			broker.Publish(ev)
		}
	}
}
