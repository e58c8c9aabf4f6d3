/*
bus.go - Fan-out bus for snapshot update events

PURPOSE:
  Maintains a registry of subscribers and broadcasts update events to all
  of them. One subscriber's dead connection must not affect delivery to
  the others, and must never propagate an error back to the poller.

CONCURRENCY:
  The registry is a lock-free concurrent map, so register/unregister are
  safe while a broadcast is in flight. A subscriber added mid-broadcast
  may or may not see that broadcast; it sees every subsequent one.
  Broadcasts themselves are issued by the poller one cycle at a time, so
  events reach each subscriber in detection order.

SEE ALSO:
  - api/ws.go: the websocket transport wired into Register/Unregister
  - poller.go: the broadcasting side
*/
package engine

import (
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// Sender delivers one event to one subscriber's transport.
// A failed send is that subscriber's problem alone.
type Sender interface {
	Send(event string, payload any) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(event string, payload any) error

func (f SenderFunc) Send(event string, payload any) error { return f(event, payload) }

// Subscriber is a registered observer: an opaque connection id plus the
// identity resolved at connect time.
type Subscriber struct {
	ID       string
	Identity string
	Admin    bool
	sender   Sender
}

// Bus is the subscriber registry and broadcast fan-out.
type Bus struct {
	subs   *xsync.MapOf[string, *Subscriber]
	logger zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   xsync.NewMapOf[string, *Subscriber](),
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// Register adds a subscriber. Re-registering an id replaces the previous
// entry (a reconnect under the same id supersedes the old connection).
func (b *Bus) Register(id, identity string, admin bool, sender Sender) {
	b.subs.Store(id, &Subscriber{ID: id, Identity: identity, Admin: admin, sender: sender})
	b.logger.Debug().Str("subscriber", id).Str("identity", identity).Msg("registered")
}

// Unregister removes a subscriber. Unknown ids are a no-op.
func (b *Bus) Unregister(id string) {
	b.subs.Delete(id)
	b.logger.Debug().Str("subscriber", id).Msg("unregistered")
}

// Count returns the number of registered subscribers.
func (b *Bus) Count() int {
	return b.subs.Size()
}

// Broadcast delivers the payload to every currently registered subscriber.
// Per-subscriber delivery errors are logged and swallowed.
func (b *Bus) Broadcast(event string, payload any) {
	b.subs.Range(func(id string, sub *Subscriber) bool {
		if err := sub.sender.Send(event, payload); err != nil {
			b.logger.Warn().Str("subscriber", id).Err(err).Msg("delivery failed")
		}
		return true
	})
}
