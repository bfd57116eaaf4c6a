package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/cloudstream/internal/ply"
)

// Snapshot is one decoded frame. Once published it is never modified.
type Snapshot struct {
	Name        string
	Index       uint64
	Slot        int
	Header      *ply.Header
	Cloud       *ply.Cloud
	PublishedAt time.Time
}

// Len is the number of points in the frame.
func (s *Snapshot) Len() int {
	return s.Cloud.Len()
}

// Publisher holds the latest snapshot and fans it out to subscribers.
// Publishing swaps a pointer, so readers see either the previous snapshot
// or the new one in full.
type Publisher struct {
	latest atomic.Pointer[Snapshot]

	mu     sync.Mutex
	nextID int
	subs   map[int]chan *Snapshot
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]chan *Snapshot)}
}

// Publish replaces the current snapshot. Subscribers whose buffer is full
// miss this notification; Latest still returns it.
func (p *Publisher) Publish(s *Snapshot) {
	p.latest.Store(s)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Latest returns the most recently published snapshot, or nil.
func (p *Publisher) Latest() *Snapshot {
	return p.latest.Load()
}

// Subscribe registers a channel receiving each published snapshot. The
// returned func unregisters it and closes the channel.
func (p *Publisher) Subscribe(buffer int) (<-chan *Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Snapshot, buffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers is the number of registered subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}
