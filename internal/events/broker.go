package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/observability"
)

// Event is one extraction pushed to subscribers.
type Event struct {
	ID      string                     `json:"id"`
	Source  string                     `json:"source"`
	URL     string                     `json:"url"`
	Site    string                     `json:"site"`
	Posting extractor.ParsedJobPosting `json:"posting"`
	At      time.Time                  `json:"at"`
}

// NewEvent stamps a posting with a fresh id.
func NewEvent(source, url, site string, posting extractor.ParsedJobPosting, at time.Time) Event {
	return Event{
		ID:      uuid.NewString(),
		Source:  source,
		URL:     url,
		Site:    site,
		Posting: posting,
		At:      at.UTC(),
	}
}

// Publisher accepts events without waiting for anyone to read them.
type Publisher interface {
	Publish(Event)
}

// Broker fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
	closed bool
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a channel of future events and a function that detaches
// it. The channel is closed by cancel or Close.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			observability.IncEventPublished()
		default:
			observability.IncEventDropped()
		}
	}
}

// Subscribers reports how many channels are attached.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscriber. Later publishes are ignored.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
