package detect

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"

	"golang.org/x/image/webp"

	"github.com/visionguard/visionguard/pkg/draw"
)

// OutputFilename is the name of the annotated artifact for a given upload
func OutputFilename(originalFilename string) string {
	return "merged_" + filepath.Base(originalFilename)
}

// RunImage decodes a still image, runs both detectors over it, draws the
// boxes, and writes the annotated copy into the result directory.
func (p *Pipeline) RunImage(localPath, originalFilename string) (*Result, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	img, err := decodeImage(src, originalFilename)
	if err != nil {
		p.log.Infof("Failed to decode image %v: %v", originalFilename, err)
		return nil, ErrInvalidInput
	}

	detections, err := p.DetectFrame(img)
	if err != nil {
		return nil, err
	}
	labels := draw.Annotate(img, detections)

	outPath := filepath.Join(p.resultDir, OutputFilename(originalFilename))
	if err := encodeImage(outPath, img); err != nil {
		return nil, err
	}
	p.log.Infof("Annotated %v: %v object class(es)", originalFilename, len(labels))
	return &Result{OutputPath: outPath, Labels: labels}, nil
}

func decodeImage(r io.Reader, filename string) (*image.RGBA, error) {
	var img image.Image
	var err error
	if strings.EqualFold(filepath.Ext(filename), ".webp") {
		img, err = webp.Decode(r)
	} else {
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return rgba
}

// encodeImage writes img as PNG or JPEG depending on the output extension
func encodeImage(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode(f, img)
	default:
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	}
}
