package nn

import (
	"bufio"
	"encoding/json"
	"image"
	"os"
	"strings"
)

// Package nn is the interface layer between us and the object detection models.
// The models themselves run out of process; see RemoteDetector.

const DefaultProbabilityThreshold = 0.5

// DetectionParams are the knobs we pass down to a detector for a single run
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
	}
}

// ObjectDetection is an object that a detection model has found in an image
type ObjectDetection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// ObjectDetector is given an image, and returns zero or more detected objects
type ObjectDetector interface {
	// Close closes the detector (you MUST call this when finished with it)
	Close()

	// DetectObjects returns a list of objects detected in the image.
	// You can create a default DetectionParams with NewDetectionParams()
	DetectObjects(img *image.RGBA, params *DetectionParams) ([]ObjectDetection, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the detector has been created.
	Config() *ModelConfig
}

// ModelConfig describes a detection model, most importantly its class table,
// which maps the integer class of an ObjectDetection to a name.
type ModelConfig struct {
	Name    string   `json:"name"`    // eg "yolov8n"
	Width   int      `json:"width"`   // eg 640
	Height  int      `json:"height"`  // eg 480
	Classes []string `json:"classes"` // eg ["person", "bicycle", "car", ...]
}

// ClassName returns the name for a class index, or "" if the index is out of range
func (c *ModelConfig) ClassName(class int) string {
	if class < 0 || class >= len(c.Classes) {
		return ""
	}
	return c.Classes[class]
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Load a text file with class names on each line
func LoadClassFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, nil
}
