package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zsiec/cloudstream/internal/ply"
)

func snapshot(name string) *Snapshot {
	return &Snapshot{Name: name, Cloud: &ply.Cloud{}, PublishedAt: time.Now()}
}

func TestPublisherLatest(t *testing.T) {
	p := NewPublisher()
	assert.Nil(t, p.Latest())

	a, b := snapshot("frame_0"), snapshot("frame_1")
	p.Publish(a)
	assert.Same(t, a, p.Latest())
	p.Publish(b)
	assert.Same(t, b, p.Latest())
}

func TestPublisherSubscribe(t *testing.T) {
	p := NewPublisher()
	ch, unsubscribe := p.Subscribe(2)
	assert.Equal(t, 1, p.Subscribers())

	a := snapshot("frame_0")
	p.Publish(a)
	assert.Same(t, a, <-ch)

	// A full buffer drops notifications instead of blocking.
	for i := 0; i < 5; i++ {
		p.Publish(snapshot("burst"))
	}
	assert.Len(t, ch, 2)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, p.Subscribers())

	for range ch {
	}
	_, open := <-ch
	assert.False(t, open)
}

func TestPublisherConcurrentReaders(t *testing.T) {
	p := NewPublisher()
	p.Publish(snapshot("frame_0"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					if s := p.Latest(); assert.NotNil(t, s) {
						assert.NotEmpty(t, s.Name)
					}
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		p.Publish(snapshot("frame_n"))
	}
	close(stop)
	wg.Wait()
}
