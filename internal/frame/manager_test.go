package frame

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource yields a fixed number of frames, then fails.
type fakeSource struct {
	frames int
	errs   []error // returned after frames run out, last one repeats
	closed bool
	seq    uint64
}

func (s *fakeSource) NextFrame(ctx context.Context) (*Frame, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.frames > 0 {
		s.frames--
		s.seq++
		return &Frame{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), Seq: s.seq, Timestamp: time.Now()}, nil
	}
	if len(s.errs) > 1 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if len(s.errs) == 1 {
		return nil, s.errs[0]
	}
	return nil, ErrEmptyFrame
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeOpener scripts a sequence of Open outcomes.
type fakeOpener struct {
	mu      sync.Mutex
	name    string
	script  []func() (Source, error)
	attempt int
}

func (o *fakeOpener) Name() string { return o.name }

func (o *fakeOpener) Open(ctx context.Context) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attempt >= len(o.script) {
		return nil, ErrNoSource
	}
	fn := o.script[o.attempt]
	o.attempt++
	return fn()
}

func (o *fakeOpener) attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempt
}

func openOK(frames int) func() (Source, error) {
	return func() (Source, error) { return &fakeSource{frames: frames}, nil }
}

func openFail() func() (Source, error) {
	return func() (Source, error) { return nil, ErrNoSource }
}

// recordingSleeper records requested waits without actually waiting.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func TestReopenRetriesWithFixedBackoff(t *testing.T) {
	// Source fails to open twice, then succeeds: exactly 3 attempts with
	// the fixed backoff before each, ending in Streaming.
	opener := &fakeOpener{name: "http://cam/stream", script: []func() (Source, error){
		openFail(),
		openFail(),
		openOK(1),
	}}
	sleeper := &recordingSleeper{}

	m := NewManager(opener, nil, 0)
	m.SetSleeper(sleeper.sleep)

	src, err := m.reopen(context.Background(), opener)
	require.NoError(t, err)
	require.NotNil(t, src)

	assert.Equal(t, 3, opener.attempts())
	assert.Equal(t, StateStreaming, m.State())
	waits := sleeper.recorded()
	require.Len(t, waits, 3, "one backoff wait before every attempt")
	for _, w := range waits {
		assert.GreaterOrEqual(t, w, 2*time.Second)
	}
}

func TestRunReconnectsAfterStreamDrop(t *testing.T) {
	opener := &fakeOpener{name: "cam", script: []func() (Source, error){
		openOK(2), // initial connection: two frames, then empty frame error
		openOK(3), // reconnect: three more frames
	}}
	sleeper := &recordingSleeper{}

	m := NewManager(opener, nil, 0)
	m.SetSleeper(sleeper.sleep)

	ctx, cancel := context.WithCancel(context.Background())
	var frames int
	err := m.Run(ctx, func(f *Frame) {
		frames++
		if frames == 5 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, frames)
	assert.Equal(t, 2, opener.attempts())
}

func TestInitialOpenFallsBackToDeviceOnce(t *testing.T) {
	primary := &fakeOpener{name: "http://cam/stream", script: []func() (Source, error){
		openFail(), // initial open of the URL fails
	}}
	fallback := &fakeOpener{name: "/dev/video0", script: []func() (Source, error){
		openOK(1),
	}}

	m := NewManager(primary, fallback, 0)
	m.SetSleeper((&recordingSleeper{}).sleep)

	ctx, cancel := context.WithCancel(context.Background())
	err := m.Run(ctx, func(f *Frame) { cancel() })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.attempts())
	assert.Equal(t, 1, fallback.attempts(), "device fallback used for the initial open")
}

func TestRunHaltsWhenNoSourceOpens(t *testing.T) {
	primary := &fakeOpener{name: "url", script: []func() (Source, error){openFail()}}
	fallback := &fakeOpener{name: "dev", script: []func() (Source, error){openFail()}}

	m := NewManager(primary, fallback, 0)
	err := m.Run(context.Background(), func(f *Frame) { t.Fatal("no frame expected") })

	assert.ErrorIs(t, err, ErrNoSource)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestMalformedFrameSkipsCycleWithoutReconnect(t *testing.T) {
	opener := &fakeOpener{name: "cam", script: []func() (Source, error){
		func() (Source, error) {
			return &fakeSource{frames: 1, errs: []error{ErrMalformedFrame, ErrMalformedFrame, ErrEmptyFrame}}, nil
		},
		openOK(1),
	}}
	sleeper := &recordingSleeper{}

	m := NewManager(opener, nil, 0)
	m.SetSleeper(sleeper.sleep)

	ctx, cancel := context.WithCancel(context.Background())
	var frames int
	err := m.Run(ctx, func(f *Frame) {
		frames++
		if frames == 2 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	// Malformed frames did not trigger a reconnect; the empty frame did.
	assert.Equal(t, 2, opener.attempts())
	assert.Equal(t, 2, frames)
}

func TestRunCancelDuringBackoff(t *testing.T) {
	opener := &fakeOpener{name: "cam", script: []func() (Source, error){
		openOK(1), // connects, yields one frame, then fails
	}}

	m := NewManager(opener, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	m.SetSleeper(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	err := m.Run(ctx, func(f *Frame) {})
	assert.ErrorIs(t, err, context.Canceled)
}
