package detect

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/visionguard/visionguard/pkg/draw"
	"github.com/visionguard/visionguard/pkg/nn"
)

var (
	// ErrInvalidInput is returned for uploads we cannot decode
	ErrInvalidInput = errors.New("Unsupported or corrupt media file")

	// ErrServiceUnavailable is returned when a model backend is unreachable
	ErrServiceUnavailable = errors.New("Detection service unavailable")
)

// VideoExtensions is the set of container formats we accept for video uploads
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
}

// IsVideoFilename reports whether the filename looks like a video upload
func IsVideoFilename(name string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Result is the outcome of running detection over one upload
type Result struct {
	// OutputPath is the annotated file written into the result directory
	OutputPath string
	// Labels are the unique class names found in the media, sorted.
	// Empty slice (not nil) when nothing was detected.
	Labels []string
}

// Pipeline runs both detectors over uploaded media and writes annotated output.
// The two detectors are injected, so tests run against fakes and the server
// decides at startup where the real model backends live.
type Pipeline struct {
	log       logs.Log
	idcard    nn.ObjectDetector
	generic   nn.ObjectDetector
	resultDir string
}

func NewPipeline(log logs.Log, idcard, generic nn.ObjectDetector, resultDir string) *Pipeline {
	return &Pipeline{
		log:       log,
		idcard:    idcard,
		generic:   generic,
		resultDir: resultDir,
	}
}

// DetectFrame runs both detectors on a single frame and returns the
// drawable detections plus their labels. The frame is not modified.
func (p *Pipeline) DetectFrame(img *image.RGBA) ([]draw.Detection, error) {
	params := nn.NewDetectionParams()

	merged := []draw.Detection{}
	for _, src := range []struct {
		det   nn.ObjectDetector
		color color.RGBA
	}{
		{p.idcard, draw.ColorIDCard},
		{p.generic, draw.ColorGeneric},
	} {
		if src.det == nil {
			return nil, ErrServiceUnavailable
		}
		objects, err := src.det.DetectObjects(img, params)
		if err != nil {
			return nil, ErrServiceUnavailable
		}
		cfg := src.det.Config()
		for _, obj := range objects {
			if obj.Confidence < params.ProbabilityThreshold {
				continue
			}
			merged = append(merged, draw.Detection{
				Box:        obj.Box,
				Label:      cfg.ClassName(obj.Class),
				Confidence: obj.Confidence,
				Color:      src.color,
			})
		}
	}
	return merged, nil
}

// Run dispatches an upload to the image or video path based on its filename
func (p *Pipeline) Run(localPath, originalFilename string) (*Result, error) {
	if IsVideoFilename(originalFilename) {
		return p.RunVideo(localPath, originalFilename)
	}
	return p.RunImage(localPath, originalFilename)
}
