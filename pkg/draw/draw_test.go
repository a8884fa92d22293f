package draw

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionguard/visionguard/pkg/nn"
)

func TestAnnotateEmpty(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	before := append([]byte(nil), img.Pix...)

	labels := Annotate(img, nil)
	require.NotNil(t, labels)
	require.Empty(t, labels)
	require.Equal(t, before, img.Pix)
}

func TestAnnotate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	before := append([]byte(nil), img.Pix...)

	detections := []Detection{
		{Box: nn.Rect{X: 10, Y: 20, Width: 40, Height: 30}, Label: "person", Confidence: 0.8, Color: ColorGeneric},
		{Box: nn.Rect{X: 60, Y: 60, Width: 30, Height: 30}, Label: "IDCard", Confidence: 0.9, Color: ColorIDCard},
		{Box: nn.Rect{X: 15, Y: 70, Width: 20, Height: 20}, Label: "person", Confidence: 0.6, Color: ColorGeneric},
	}
	labels := Annotate(img, detections)

	// Unique, sorted
	require.Equal(t, []string{"IDCard", "person"}, labels)
	require.NotEqual(t, before, img.Pix)
}
