package pipeline

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaltonen/facewatch-go/internal/attendance"
	"github.com/jvaltonen/facewatch-go/internal/conf"
	"github.com/jvaltonen/facewatch-go/internal/facedet"
	"github.com/jvaltonen/facewatch-go/internal/frame"
	"github.com/jvaltonen/facewatch-go/internal/ledger"
)

type fakeDetector struct {
	calls      int
	detections []facedet.Detection
	err        error
}

func (d *fakeDetector) Detect(ctx context.Context, img image.Image) ([]facedet.Detection, error) {
	d.calls++
	return d.detections, d.err
}

func testWindow(t *testing.T) conf.Window {
	t.Helper()
	start, err := conf.ParseTimeOfDay("08:00")
	require.NoError(t, err)
	end, err := conf.ParseTimeOfDay("11:00")
	require.NoError(t, err)
	return conf.Window{Start: start, End: end}
}

func newTestTracker(t *testing.T) *attendance.Tracker {
	t.Helper()
	led := ledger.New(filepath.Join(t.TempDir(), "attendance.csv"))
	require.NoError(t, led.EnsureInitialized())

	tr := attendance.NewTracker(led, testWindow(t))
	tr.SetClock(func() time.Time {
		return time.Date(2026, 8, 29, 9, 30, 0, 0, time.Local)
	})
	return tr
}

func newTestFrame(seq uint64) *frame.Frame {
	return &frame.Frame{
		Image:     image.NewRGBA(image.Rect(0, 0, 64, 48)),
		Seq:       seq,
		Timestamp: time.Now(),
		Source:    "test",
	}
}

func knownMatcher() *facedet.Matcher {
	return facedet.NewMatcher(&facedet.Registry{
		Names:     []string{"alice"},
		Encodings: [][]float64{{0.0, 0.0}},
	}, 0.6)
}

func TestProcessorAlternatesDetection(t *testing.T) {
	det := &fakeDetector{}
	b := NewBroadcaster(nil)
	p := NewProcessor(det, knownMatcher(), newTestTracker(t), b, nil, time.Second)

	handle := p.Handler(context.Background())
	for seq := uint64(1); seq <= 4; seq++ {
		handle(newTestFrame(seq))
	}

	assert.Equal(t, 2, det.calls, "every other frame runs detection")
}

func TestProcessorPublishesEveryFrame(t *testing.T) {
	det := &fakeDetector{}
	b := NewBroadcaster(nil)
	p := NewProcessor(det, knownMatcher(), newTestTracker(t), b, nil, time.Second)

	frames, stop := b.Subscribe()
	defer stop()

	handle := p.Handler(context.Background())
	handle(newTestFrame(1))

	select {
	case data := <-frames:
		assert.NotEmpty(t, data)
	default:
		t.Fatal("no frame published")
	}
}

func TestProcessorMarksRecognizedIdentity(t *testing.T) {
	det := &fakeDetector{detections: []facedet.Detection{{
		Box:       facedet.Box{Top: 1, Right: 10, Bottom: 10, Left: 1},
		Embedding: []float64{0.01, 0.0},
	}}}
	tracker := newTestTracker(t)
	p := NewProcessor(det, knownMatcher(), tracker, NewBroadcaster(nil), nil, time.Second)

	handle := p.Handler(context.Background())
	handle(newTestFrame(1))

	assert.True(t, tracker.IsMarked("alice"))
	require.Len(t, p.lastFaces, 1)
	assert.Equal(t, "alice", p.lastFaces[0].name)
	assert.False(t, p.lastFaces[0].alreadyMarked, "first sighting draws as newly marked")
	assert.Equal(t, facedet.Box{Top: 4, Right: 40, Bottom: 40, Left: 4}, p.lastFaces[0].box,
		"box scaled back to full resolution")

	// Second detection cycle sees the identity as already marked.
	handle(newTestFrame(2)) // skipped by alternation
	handle(newTestFrame(3))
	require.Len(t, p.lastFaces, 1)
	assert.True(t, p.lastFaces[0].alreadyMarked)
}

func TestProcessorUnmatchedFaceIsUnknown(t *testing.T) {
	det := &fakeDetector{detections: []facedet.Detection{{
		Box:       facedet.Box{Top: 0, Right: 5, Bottom: 5, Left: 0},
		Embedding: []float64{9.0, 9.0},
	}}}
	tracker := newTestTracker(t)
	p := NewProcessor(det, knownMatcher(), tracker, NewBroadcaster(nil), nil, time.Second)

	p.Handler(context.Background())(newTestFrame(1))

	require.Len(t, p.lastFaces, 1)
	assert.Equal(t, attendance.UnknownIdentity, p.lastFaces[0].name)
	assert.Equal(t, 0, tracker.MarkedCount(), "unknown faces never mark attendance")
}

func TestProcessorDetectionErrorDegradesToNoFaces(t *testing.T) {
	det := &fakeDetector{err: errors.New("service down")}
	b := NewBroadcaster(nil)
	p := NewProcessor(det, knownMatcher(), newTestTracker(t), b, nil, time.Second)

	frames, stop := b.Subscribe()
	defer stop()

	p.Handler(context.Background())(newTestFrame(1))

	assert.Empty(t, p.lastFaces)
	select {
	case data := <-frames:
		assert.NotEmpty(t, data, "stream continues despite detector failure")
	default:
		t.Fatal("no frame published after detection error")
	}
}

func TestAnnotatedFaceColors(t *testing.T) {
	assert.Equal(t, colorUnknown, annotatedFace{name: attendance.UnknownIdentity}.color())
	assert.Equal(t, colorMarked, annotatedFace{name: "alice", alreadyMarked: true}.color())
	assert.Equal(t, colorUnmarked, annotatedFace{name: "alice"}.color())
}
