package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Broadcaster fans annotated JPEG frames out to any number of viewers. Sends
// never block: a viewer that is not keeping up misses frames instead of
// stalling the pipeline.
type Broadcaster struct {
	mu      sync.Mutex
	viewers map[chan []byte]struct{}
	gauge   prometheus.Gauge
}

// NewBroadcaster creates a broadcaster. gauge may be nil.
func NewBroadcaster(gauge prometheus.Gauge) *Broadcaster {
	return &Broadcaster{
		viewers: make(map[chan []byte]struct{}),
		gauge:   gauge,
	}
}

// Subscribe registers a viewer and returns its frame channel plus an
// unsubscribe function. The channel holds one frame of slack.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	b.mu.Lock()
	b.viewers[ch] = struct{}{}
	b.mu.Unlock()
	if b.gauge != nil {
		b.gauge.Inc()
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.viewers, ch)
			b.mu.Unlock()
			if b.gauge != nil {
				b.gauge.Dec()
			}
		})
	}
	return ch, unsubscribe
}

// Publish delivers a frame to every viewer that has room for it.
func (b *Broadcaster) Publish(jpeg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.viewers {
		select {
		case ch <- jpeg:
		default:
			// viewer is behind, drop the frame for it
		}
	}
}

// ViewerCount returns the number of subscribed viewers.
func (b *Broadcaster) ViewerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.viewers)
}
