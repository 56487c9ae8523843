// Package frame owns the live frame source: connecting to an MJPEG stream
// or a local capture device, detecting stalls and reconnecting with a fixed
// backoff. Frames are normalized to an 8-bit RGBA pixel layout before they
// enter the pipeline.
package frame

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/jpeg"
	"time"

	ferrors "github.com/jvaltonen/facewatch-go/internal/errors"
)

// Sentinel errors for the manager's per-frame policy.
var (
	// ErrEmptyFrame marks a read that produced no usable image. The
	// manager treats it like a connection failure and reconnects.
	ErrEmptyFrame = ferrors.NewStd("empty frame")

	// ErrMalformedFrame marks a decodable image that cannot be converted
	// to the fixed 3-channel layout. The cycle is skipped, the stream
	// stays connected.
	ErrMalformedFrame = ferrors.NewStd("malformed frame")
)

// Frame is a single normalized video frame.
type Frame struct {
	Image     *image.RGBA
	Seq       uint64
	Timestamp time.Time
	Source    string
}

// Source is a live connection to a frame producer. Owned exclusively by the
// Manager; never shared.
type Source interface {
	// NextFrame blocks until a frame is available or the context ends.
	NextFrame(ctx context.Context) (*Frame, error)
	Close() error
}

// Opener establishes a Source. Open is retried by the Manager, so openers
// must be safe to call repeatedly.
type Opener interface {
	Open(ctx context.Context) (Source, error)
	Name() string
}

// Decode parses a JPEG payload and normalizes it. An empty payload or a
// payload that does not decode is reported as ErrEmptyFrame, matching the
// "lost connection or garbage on the wire" reconnect policy.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrEmptyFrame
	}
	return Normalize(img)
}

// Normalize converts an image to the fixed RGBA layout the pipeline works
// on. Single-channel images are promoted by replicating the channel rather
// than rejected. Images without pixels are malformed.
func Normalize(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrMalformedFrame
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrMalformedFrame
	}

	switch src := img.(type) {
	case *image.RGBA:
		return src, nil
	case *image.Gray:
		return grayToRGBA(src), nil
	default:
		dst := image.NewRGBA(b)
		draw.Draw(dst, b, img, b.Min, draw.Src)
		return dst, nil
	}
}

// grayToRGBA promotes a single-channel image by channel replication.
func grayToRGBA(src *image.Gray) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := src.GrayAt(x, y).Y
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = v
			dst.Pix[i+1] = v
			dst.Pix[i+2] = v
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}
