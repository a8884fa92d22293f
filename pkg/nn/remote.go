package nn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"

	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
)

// RemoteDetector talks to an out of process model server.
// The server accepts a JPEG frame and returns the objects it found, so the
// inference engine (and its weights) live entirely outside this process.
type RemoteDetector struct {
	log     logs.Log
	baseURL string
	config  *ModelConfig
	client  *http.Client
	timeout time.Duration
}

// SYNC-MODEL-SERVER-RESPONSE
type remoteDetectionsJSON struct {
	Objects []ObjectDetection `json:"objects"`
}

func NewRemoteDetector(log logs.Log, baseURL string, config *ModelConfig, timeout time.Duration) *RemoteDetector {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RemoteDetector{
		log:     log,
		baseURL: baseURL,
		config:  config,
		client:  http.DefaultClient,
		timeout: timeout,
	}
}

func (d *RemoteDetector) Close() {
}

func (d *RemoteDetector) Config() *ModelConfig {
	return d.config
}

func (d *RemoteDetector) DetectObjects(img *image.RGBA, params *DetectionParams) ([]ObjectDetection, error) {
	threshold := params.ProbabilityThreshold
	if threshold == 0 {
		threshold = DefaultProbabilityThreshold
	}
	body := bytes.Buffer{}
	if err := jpeg.Encode(&body, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("Failed to encode frame for %v: %w", d.config.Name, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	url := fmt.Sprintf("%v/api/detect?threshold=%.2f", d.baseURL, threshold)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := d.client.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Model %v failed: %v", d.config.Name, www.FailedRequestSummary(resp, err))
	}
	defer resp.Body.Close()
	detections := remoteDetectionsJSON{}
	if err := json.NewDecoder(resp.Body).Decode(&detections); err != nil {
		return nil, fmt.Errorf("Model %v returned invalid response: %w", d.config.Name, err)
	}
	return detections.Objects, nil
}
