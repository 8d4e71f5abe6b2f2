// Package notify carries plugin-command events out of the journal.
//
// The journal publishes a confirm or delete command (and, since failures
// must not stay invisible, their failures) to an injected Publisher when
// command publishing is enabled. Delivery is fire-and-forget with no
// guarantee: slow subscribers lose events rather than stall the journal.
package notify

import (
	"sync"

	"github.com/google/uuid"
)

// Kind tags the command a published event describes.
type Kind string

const (
	KindConfirmed     Kind = "confirmed"
	KindConfirmFailed Kind = "confirm-failed"
	KindDeleted       Kind = "deleted"
	KindDeleteFailed  Kind = "delete-failed"
)

// Event is a published command value.
type Event struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	StreamID  string `json:"stream_id"`
	SeqNr     uint64 `json:"seq_nr,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	FromSeq   uint64 `json:"from_seq,omitempty"`
	ToSeq     uint64 `json:"to_seq,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
	Error     string `json:"error,omitempty"`
	AtMs      int64  `json:"at_ms"`
}

// NewEventID returns a fresh event identifier.
func NewEventID() string { return uuid.NewString() }

// Publisher is the capability the journal is handed for command publishing.
type Publisher interface {
	Publish(ev Event)
}

// Combine fans one Publish out to several publishers.
func Combine(pubs ...Publisher) Publisher {
	out := make(multiPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multiPublisher []Publisher

func (m multiPublisher) Publish(ev Event) {
	for _, p := range m {
		p.Publish(ev)
	}
}

// Broadcaster is an in-process multi-subscriber fan-out. Publish never
// blocks: events are dropped per subscriber when its buffer is full.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buf    int
}

// NewBroadcaster returns a Broadcaster with the given per-subscriber buffer
// length (minimum 1).
func NewBroadcaster(buf int) *Broadcaster {
	if buf <= 0 {
		buf = 16
	}
	return &Broadcaster{subs: make(map[int]chan Event), buf: buf}
}

// Subscribe registers a subscriber. The returned cancel func removes the
// subscription and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buf)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish implements Publisher.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber too slow; drop
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
