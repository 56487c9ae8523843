package pipeline

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/jvaltonen/facewatch-go/internal/attendance"
	"github.com/jvaltonen/facewatch-go/internal/facedet"
)

var (
	colorUnmarked = color.RGBA{G: 0xff, A: 0xff}          // green, recognized and just marked
	colorMarked   = color.RGBA{R: 0xff, G: 0xff, A: 0xff} // yellow, already marked today
	colorUnknown  = color.RGBA{R: 0xff, A: 0xff}          // red, no match below threshold
)

const (
	boxThickness = 2
	labelHeight  = 16
)

// annotatedFace is a face ready to draw: its full-resolution box, the
// resolved identity and whether it was already marked when sighted.
type annotatedFace struct {
	box           facedet.Box
	name          string
	alreadyMarked bool
}

func (f annotatedFace) color() color.RGBA {
	switch {
	case f.name == attendance.UnknownIdentity:
		return colorUnknown
	case f.alreadyMarked:
		return colorMarked
	default:
		return colorUnmarked
	}
}

// annotate draws a labeled bounding box per face onto img.
func annotate(img *image.RGBA, faces []annotatedFace) {
	for _, f := range faces {
		c := f.color()
		drawBox(img, f.box, c)
		drawLabel(img, f.box, f.name, c)
	}
}

// drawBox outlines the face box with a fixed border thickness.
func drawBox(img *image.RGBA, b facedet.Box, c color.RGBA) {
	src := image.NewUniform(c)
	// top and bottom edges
	draw.Draw(img, image.Rect(b.Left, b.Top, b.Right, b.Top+boxThickness), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Left, b.Bottom-boxThickness, b.Right, b.Bottom), src, image.Point{}, draw.Src)
	// left and right edges
	draw.Draw(img, image.Rect(b.Left, b.Top, b.Left+boxThickness, b.Bottom), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(b.Right-boxThickness, b.Top, b.Right, b.Bottom), src, image.Point{}, draw.Src)
}

// drawLabel paints a filled name bar along the bottom edge of the box.
func drawLabel(img *image.RGBA, b facedet.Box, name string, c color.RGBA) {
	bar := image.Rect(b.Left, b.Bottom-labelHeight, b.Right, b.Bottom)
	draw.Draw(img, bar, image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Left+boxThickness+2, b.Bottom-4),
	}
	d.DrawString(name)
}
