package draw

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/visionguard/visionguard/pkg/nn"
)

// Package draw renders detection boxes onto a frame.

// Colors are purely visual, telling apart which model produced a box.
var (
	ColorIDCard  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorGeneric = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Detection is one box to render, with its class already resolved to a name
type Detection struct {
	Box        nn.Rect
	Label      string
	Confidence float32
	Color      color.RGBA
}

// Annotate draws a rectangle and a "label confidence" caption for every
// detection, directly onto img, and returns the sorted set of unique labels.
// Zero detections leave img untouched and return an empty set.
func Annotate(img *image.RGBA, detections []Detection) []string {
	if len(detections) == 0 {
		return []string{}
	}
	dc := gg.NewContextForRGBA(img)
	dc.SetFontFace(basicfont.Face7x13)
	seen := map[string]bool{}
	for _, det := range detections {
		dc.SetColor(det.Color)
		dc.SetLineWidth(2)
		dc.DrawRectangle(float64(det.Box.X), float64(det.Box.Y), float64(det.Box.Width), float64(det.Box.Height))
		dc.Stroke()
		caption := fmt.Sprintf("%v %.2f", det.Label, det.Confidence)
		dc.DrawString(caption, float64(det.Box.X), float64(det.Box.Y-4))
		seen[det.Label] = true
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
