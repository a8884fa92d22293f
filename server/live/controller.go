package live

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/visionguard/visionguard/pkg/draw"
	"github.com/visionguard/visionguard/server/alerts"
	"github.com/visionguard/visionguard/server/configdb"
	"github.com/visionguard/visionguard/server/detect"
	"github.com/visionguard/visionguard/server/history"
	"github.com/visionguard/visionguard/server/publish"
)

// LatestSnapshotFilename is the continuously overwritten frame on disk,
// relative to the result directory
const LatestSnapshotFilename = "live/latest.jpg"

// How often a running session persists an annotated snapshot to the
// operator's history
const snapshotInterval = 10 * time.Second

const stopTimeout = 5 * time.Second

// State of the live detection session
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Identity is the operator a live session runs on behalf of.
// nil identity means an anonymous session: frames still stream, but
// nothing is persisted and nobody is emailed.
type Identity struct {
	UserID int64
	Email  string
}

// Controller owns the single live detection session.
// All state transitions go through lock; there is never more than one
// capture worker alive.
type Controller struct {
	log       logs.Log
	pipeline  *detect.Pipeline
	publisher *publish.Publisher
	history   *history.History
	notifier  *alerts.Notifier
	newCamera func() (CameraSource, error)
	resultDir string

	lock     sync.Mutex
	state    State
	identity *Identity
	stop     chan struct{}
	done     chan struct{}

	frameLock  sync.Mutex
	latestJPEG []byte
	latestAt   time.Time
}

func NewController(log logs.Log, pipeline *detect.Pipeline, publisher *publish.Publisher, hist *history.History, notifier *alerts.Notifier, newCamera func() (CameraSource, error), resultDir string) *Controller {
	return &Controller{
		log:       log,
		pipeline:  pipeline,
		publisher: publisher,
		history:   hist,
		notifier:  notifier,
		newCamera: newCamera,
		resultDir: resultDir,
	}
}

// State returns the current session state
func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Start begins a live session. Starting an already running session is a
// no-op, regardless of who asks.
func (c *Controller) Start(identity *Identity) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.state == StateRunning {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(filepath.Join(c.resultDir, LatestSnapshotFilename)), 0755); err != nil {
		return err
	}
	camera, err := c.newCamera()
	if err != nil {
		return err
	}
	if err := camera.Start(); err != nil {
		return err
	}
	c.state = StateRunning
	c.identity = identity
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	who := "anonymous"
	if identity != nil {
		who = identity.Email
	}
	c.log.Infof("Live session started (%v)", who)
	go c.run(camera, identity, c.stop, c.done)
	return nil
}

// Stop ends the session and waits for the worker to finish, up to a bound.
// Stopping a stopped session is a no-op.
func (c *Controller) Stop() {
	c.lock.Lock()
	if c.state != StateRunning {
		c.lock.Unlock()
		return
	}
	stop, done := c.stop, c.done
	c.lock.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(stopTimeout):
		c.log.Warnf("Live worker did not stop within %v", stopTimeout)
	}

	c.lock.Lock()
	c.state = StateStopped
	c.identity = nil
	c.lock.Unlock()
	c.log.Infof("Live session stopped")
}

// LatestJPEG returns the most recent annotated frame, or ok=false if no
// frame has been captured yet
func (c *Controller) LatestJPEG() (data []byte, at time.Time, ok bool) {
	c.frameLock.Lock()
	defer c.frameLock.Unlock()
	if c.latestJPEG == nil {
		return nil, time.Time{}, false
	}
	return c.latestJPEG, c.latestAt, true
}

func (c *Controller) run(camera CameraSource, identity *Identity, stop chan struct{}, done chan struct{}) {
	defer close(done)
	defer camera.Close()

	lastSnapshot := time.Now()
	var lastFrame *image.RGBA
	var lastLabels []string

	// One final persisted snapshot on the way out, however the loop ends,
	// so the history shows how the session ended. Best effort.
	defer func() {
		if lastFrame != nil {
			c.persistSnapshot(lastFrame, lastLabels, identity)
		}
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := camera.ReadFrame()
		if err != nil {
			c.log.Errorf("Live capture failed: %v", err)
			select {
			case <-stop:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		detections, err := c.pipeline.DetectFrame(frame)
		if err != nil {
			c.log.Warnf("Live detection failed: %v", err)
			continue
		}
		labels := draw.Annotate(frame, detections)

		jpegData, err := encodeJPEG(frame)
		if err != nil {
			c.log.Errorf("Failed to encode live frame: %v", err)
			continue
		}
		c.setLatest(jpegData)
		c.writeLatestFile(jpegData)

		lastFrame = frame
		lastLabels = labels

		if time.Since(lastSnapshot) >= snapshotInterval {
			lastSnapshot = time.Now()
			c.persistSnapshot(frame, labels, identity)
		}
	}
}

func (c *Controller) setLatest(jpegData []byte) {
	c.frameLock.Lock()
	c.latestJPEG = append([]byte(nil), jpegData...)
	c.latestAt = time.Now()
	c.frameLock.Unlock()
}

// writeLatestFile overwrites latest.jpg atomically, via rename
func (c *Controller) writeLatestFile(jpegData []byte) {
	final := filepath.Join(c.resultDir, LatestSnapshotFilename)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, jpegData, 0644); err != nil {
		c.log.Warnf("Failed to write %v: %v", tmp, err)
		return
	}
	if err := os.Rename(tmp, final); err != nil {
		c.log.Warnf("Failed to replace %v: %v", final, err)
	}
}

// persistSnapshot publishes the frame and records it in the operator's
// history. Anonymous sessions persist nothing.
func (c *Controller) persistSnapshot(frame *image.RGBA, labels []string, identity *Identity) {
	if identity == nil {
		return
	}
	jpegData, err := encodeJPEG(frame)
	if err != nil {
		c.log.Errorf("Failed to encode live snapshot: %v", err)
		return
	}
	name := "live_" + time.Now().UTC().Format("20060102_150405") + ".jpg"
	localPath := filepath.Join(c.resultDir, name)
	if err := os.WriteFile(localPath, jpegData, 0644); err != nil {
		c.log.Errorf("Failed to write live snapshot: %v", err)
		return
	}
	ref, err := c.publisher.Publish(localPath, configdb.KindLive)
	if err != nil {
		c.log.Errorf("Failed to publish live snapshot: %v", err)
		return
	}
	if _, err := c.history.Record(identity.UserID, name, ref, labels, configdb.KindLive); err != nil {
		c.log.Errorf("Failed to record live snapshot: %v", err)
		return
	}
	if len(labels) == 0 {
		c.notifier.NotifyEmptyDetection(identity.Email, configdb.KindLive)
	}
}

func encodeJPEG(img *image.RGBA) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrNotRunning is returned when a stream is requested with no session active
var ErrNotRunning = errors.New("Live detection is not running")

// ServeMJPEG streams annotated frames as multipart/x-mixed-replace until the
// client disconnects or the session stops
func (c *Controller) ServeMJPEG(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("Streaming unsupported")
	}
	if c.State() != StateRunning {
		return ErrNotRunning
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastSent time.Time
	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-ticker.C:
		}
		if c.State() != StateRunning {
			return nil
		}
		data, at, ok := c.LatestJPEG()
		if !ok || !at.After(lastSent) {
			continue
		}
		lastSent = at
		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			return nil
		}
		if _, err := w.Write(data); err != nil {
			return nil
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return nil
		}
		flusher.Flush()
	}
}
