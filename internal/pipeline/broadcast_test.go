package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBroadcasterDeliversToAllViewers(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, stop1 := b.Subscribe()
	ch2, stop2 := b.Subscribe()
	defer stop1()
	defer stop2()

	b.Publish([]byte("frame-1"))

	assert.Equal(t, []byte("frame-1"), <-ch1)
	assert.Equal(t, []byte("frame-1"), <-ch2)
}

func TestBroadcasterDropsForSlowViewer(t *testing.T) {
	b := NewBroadcaster(nil)

	slow, stop := b.Subscribe()
	defer stop()

	// The viewer buffer holds one frame; further publishes must not block.
	b.Publish([]byte("frame-1"))
	b.Publish([]byte("frame-2"))
	b.Publish([]byte("frame-3"))

	assert.Equal(t, []byte("frame-1"), <-slow)
	select {
	case extra := <-slow:
		t.Fatalf("expected dropped frames, got %q", extra)
	default:
	}
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)

	_, stop := b.Subscribe()
	require.Equal(t, 1, b.ViewerCount())

	stop()
	stop() // second call is a no-op
	assert.Equal(t, 0, b.ViewerCount())

	// Publishing with no viewers is fine.
	b.Publish([]byte("frame"))
}
