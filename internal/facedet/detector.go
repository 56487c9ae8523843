// Package facedet provides face detection and identification against a set
// of known encodings. Detection runs in an external service reached over
// HTTP; matching is done locally by nearest-neighbor distance.
package facedet

import (
	"context"
	"image"
)

// Box is a face location in frame coordinates.
type Box struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Scale returns the box scaled by factor, used to map detections made on a
// downsampled frame back onto the full-resolution frame.
func (b Box) Scale(factor int) Box {
	return Box{
		Top:    b.Top * factor,
		Right:  b.Right * factor,
		Bottom: b.Bottom * factor,
		Left:   b.Left * factor,
	}
}

// Detection is one face found in a frame: where it is and its embedding
// vector for identification.
type Detection struct {
	Box       Box       `json:"box"`
	Embedding []float64 `json:"embedding"`
}

// Detector finds faces in an image. Implementations must be safe for use
// from a single pipeline goroutine; they are not required to be concurrent.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}
