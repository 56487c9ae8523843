// Package pipeline turns raw frames into attendance marks and an annotated
// live stream. One processor goroutine consumes frames from the source
// manager; everything it publishes is read-only for consumers.
package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/jvaltonen/facewatch-go/internal/attendance"
	"github.com/jvaltonen/facewatch-go/internal/facedet"
	"github.com/jvaltonen/facewatch-go/internal/frame"
	"github.com/jvaltonen/facewatch-go/internal/logging"
	"github.com/jvaltonen/facewatch-go/internal/telemetry"
)

// downscaleFactor is how much frames are shrunk before detection. Boxes come
// back in downscaled coordinates and are scaled up by the same factor.
const downscaleFactor = 4

const jpegQuality = 80

// Processor runs detection on alternating frames, resolves identities,
// records attendance and publishes annotated JPEG frames.
type Processor struct {
	detector      facedet.Detector
	matcher       *facedet.Matcher
	tracker       *attendance.Tracker
	broadcaster   *Broadcaster
	metrics       *telemetry.Metrics
	detectTimeout time.Duration
	log           *slog.Logger

	skipNext  bool
	lastFaces []annotatedFace
}

// NewProcessor wires a processor. metrics may be nil.
func NewProcessor(detector facedet.Detector, matcher *facedet.Matcher,
	tracker *attendance.Tracker, broadcaster *Broadcaster,
	metrics *telemetry.Metrics, detectTimeout time.Duration) *Processor {
	return &Processor{
		detector:      detector,
		matcher:       matcher,
		tracker:       tracker,
		broadcaster:   broadcaster,
		metrics:       metrics,
		detectTimeout: detectTimeout,
		log:           logging.ForService("pipeline"),
	}
}

// Handler returns the frame callback for the source manager. Frames arrive
// from a single goroutine; the processor is not safe for concurrent frames.
func (p *Processor) Handler(ctx context.Context) frame.Handler {
	return func(f *frame.Frame) {
		p.process(ctx, f)
	}
}

func (p *Processor) process(ctx context.Context, f *frame.Frame) {
	p.tracker.CheckRollover()

	if p.skipNext {
		// Alternation: reuse the previous cycle's faces for annotation.
		if p.metrics != nil {
			p.metrics.FramesSkipped.Inc()
		}
	} else {
		p.lastFaces = p.detectAndMark(ctx, f)
		if p.metrics != nil {
			p.metrics.FramesProcessed.Inc()
		}
	}
	p.skipNext = !p.skipNext

	annotate(f.Image, p.lastFaces)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: jpegQuality}); err != nil {
		p.log.Warn("encoding annotated frame failed", "seq", f.Seq, "error", err)
		return
	}
	p.broadcaster.Publish(buf.Bytes())
}

// detectAndMark runs one detection cycle. Detection errors degrade to zero
// faces so a flaky detector never stops the stream.
func (p *Processor) detectAndMark(ctx context.Context, f *frame.Frame) []annotatedFace {
	detectCtx, cancel := context.WithTimeout(ctx, p.detectTimeout)
	defer cancel()

	detections, err := p.detector.Detect(detectCtx, downscale(f.Image))
	if err != nil {
		p.log.Warn("detection failed, continuing with no faces", "seq", f.Seq, "error", err)
		if p.metrics != nil {
			p.metrics.DetectionErrors.Inc()
		}
		return nil
	}
	if p.metrics != nil {
		p.metrics.FacesDetected.Add(float64(len(detections)))
	}

	faces := make([]annotatedFace, 0, len(detections))
	for _, det := range detections {
		name := attendance.UnknownIdentity
		if matched, _, ok := p.matcher.Match(det.Embedding); ok {
			name = matched
		}

		alreadyMarked := false
		if name != attendance.UnknownIdentity {
			alreadyMarked = p.tracker.IsMarked(name)
			if marked, status, err := p.tracker.ConsiderMarking(name); err != nil {
				p.log.Error("recording attendance failed", "name", name, "error", err)
			} else if marked {
				p.log.Info("attendance marked", "name", name, "status", status)
			}
		}

		faces = append(faces, annotatedFace{
			box:           det.Box.Scale(downscaleFactor),
			name:          name,
			alreadyMarked: alreadyMarked,
		})
	}
	return faces
}

// downscale shrinks a frame by downscaleFactor for cheaper detection.
func downscale(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx()/downscaleFactor, b.Dy()/downscaleFactor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
