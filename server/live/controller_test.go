package live

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/visionguard/visionguard/pkg/nn"
	"github.com/visionguard/visionguard/server/alerts"
	"github.com/visionguard/visionguard/server/configdb"
	"github.com/visionguard/visionguard/server/detect"
	"github.com/visionguard/visionguard/server/history"
	"github.com/visionguard/visionguard/server/publish"
)

type fakeCamera struct {
	frame *image.RGBA
}

func (c *fakeCamera) Start() error {
	return nil
}

func (c *fakeCamera) ReadFrame() (*image.RGBA, error) {
	// Pace the loop like a real camera would
	time.Sleep(20 * time.Millisecond)
	return c.frame, nil
}

func (c *fakeCamera) Close() {}

// wedgingCamera serves a few good frames, then fails forever
type wedgingCamera struct {
	frame      *image.RGBA
	goodFrames int
	served     int
}

func (c *wedgingCamera) Start() error {
	return nil
}

func (c *wedgingCamera) ReadFrame() (*image.RGBA, error) {
	if c.served >= c.goodFrames {
		return nil, errors.New("device wedged")
	}
	c.served++
	time.Sleep(5 * time.Millisecond)
	return c.frame, nil
}

func (c *wedgingCamera) Close() {}

type fakeDetector struct {
	config nn.ModelConfig
}

func (f *fakeDetector) Close() {}

func (f *fakeDetector) DetectObjects(img *image.RGBA, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	return nil, nil
}

func (f *fakeDetector) Config() *nn.ModelConfig {
	return &f.config
}

type testRig struct {
	controller *Controller
	db         *configdb.ConfigDB
	resultDir  string
	cameras    *int32
	sender     *fakeSender
	user       *configdb.User
}

type fakeSender struct {
	sent int32
}

func (f *fakeSender) Send(to, subject, body string) error {
	atomic.AddInt32(&f.sent, 1)
	return nil
}

func createRig(t *testing.T) *testRig {
	log := logs.NewTestingLog(t)
	db, err := configdb.NewConfigDB(log, filepath.Join(t.TempDir(), "test-live.sqlite"))
	require.NoError(t, err)
	storage, err := publish.NewStorageFS(log, t.TempDir(), "http://localhost:8080/results")
	require.NoError(t, err)
	resultDir := t.TempDir()
	publisher := publish.NewPublisher(log, storage, resultDir, "http://localhost:8080/results")
	hist := history.NewHistory(log, db, publisher)
	sender := &fakeSender{}
	notifier := alerts.NewNotifier(log, sender)
	pipeline := detect.NewPipeline(log,
		&fakeDetector{config: nn.ModelConfig{Name: "idcard", Classes: nn.IDCardClasses}},
		&fakeDetector{config: nn.ModelConfig{Name: "generic", Classes: nn.COCOClasses}},
		resultDir)

	cameras := int32(0)
	newCamera := func() (CameraSource, error) {
		atomic.AddInt32(&cameras, 1)
		return &fakeCamera{frame: image.NewRGBA(image.Rect(0, 0, 64, 64))}, nil
	}

	user := &configdb.User{Email: "alice@example.com", Provider: configdb.AuthProviderLocal}
	require.NoError(t, db.CreateUser(user))

	return &testRig{
		controller: NewController(log, pipeline, publisher, hist, notifier, newCamera, resultDir),
		db:         db,
		resultDir:  resultDir,
		cameras:    &cameras,
		sender:     sender,
		user:       user,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Condition not reached within timeout")
}

func TestStartStop(t *testing.T) {
	rig := createRig(t)
	c := rig.controller

	require.Equal(t, StateStopped, c.State())
	require.NoError(t, c.Start(nil))
	require.Equal(t, StateRunning, c.State())

	// Second start is a no-op, no second camera
	require.NoError(t, c.Start(nil))
	require.Equal(t, int32(1), atomic.LoadInt32(rig.cameras))

	waitFor(t, 2*time.Second, func() bool {
		_, _, ok := c.LatestJPEG()
		return ok
	})

	// latest.jpg is continuously overwritten on disk
	waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(filepath.Join(rig.resultDir, LatestSnapshotFilename))
		return err == nil
	})

	c.Stop()
	require.Equal(t, StateStopped, c.State())
	// Stopping again is harmless
	c.Stop()

	// Anonymous session persisted nothing
	list, err := rig.db.ListDetections(rig.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 0)
}

func TestIdentifiedSessionPersists(t *testing.T) {
	rig := createRig(t)
	c := rig.controller

	require.NoError(t, c.Start(&Identity{UserID: rig.user.ID, Email: rig.user.Email}))
	waitFor(t, 2*time.Second, func() bool {
		_, _, ok := c.LatestJPEG()
		return ok
	})
	c.Stop()

	// The final snapshot lands in the operator's history
	list, err := rig.db.ListDetections(rig.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	require.Equal(t, configdb.KindLive, list[0].Kind)

	// No detections in the blank frame, so the operator got an alert
	require.Greater(t, atomic.LoadInt32(&rig.sender.sent), int32(0))
}

// A session stopped while the camera is down must still persist its final
// frame, as long as one was ever captured
func TestStopDuringCaptureFailurePersists(t *testing.T) {
	rig := createRig(t)
	c := rig.controller

	camera := &wedgingCamera{frame: image.NewRGBA(image.Rect(0, 0, 64, 64)), goodFrames: 3}
	c.newCamera = func() (CameraSource, error) {
		return camera, nil
	}

	require.NoError(t, c.Start(&Identity{UserID: rig.user.ID, Email: rig.user.Email}))
	waitFor(t, 2*time.Second, func() bool {
		_, _, ok := c.LatestJPEG()
		return ok
	})

	// The camera is wedged by now, so the worker sits in its error backoff
	c.Stop()
	require.Equal(t, StateStopped, c.State())

	list, err := rig.db.ListDetections(rig.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	require.Equal(t, configdb.KindLive, list[0].Kind)
}

func TestRestartAfterStop(t *testing.T) {
	rig := createRig(t)
	c := rig.controller

	require.NoError(t, c.Start(nil))
	c.Stop()
	require.NoError(t, c.Start(nil))
	require.Equal(t, StateRunning, c.State())
	require.Equal(t, int32(2), atomic.LoadInt32(rig.cameras))
	c.Stop()
}
