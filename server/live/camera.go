package live

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
)

// CameraSource produces raw frames. The webcam implementation shells out to
// ffmpeg; tests inject a synthetic source.
type CameraSource interface {
	// Start opens the device and begins capture
	Start() error
	// ReadFrame blocks until the next frame is available.
	// The returned image is only valid until the next ReadFrame call.
	ReadFrame() (*image.RGBA, error)
	// Close stops capture and releases the device
	Close()
}

// FFmpegCamera captures from a V4L2 device as a raw RGBA pipe
type FFmpegCamera struct {
	Device string
	Width  int
	Height int
	FPS    int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	buf    []byte
	frame  *image.RGBA
}

func NewFFmpegCamera(device string, width, height, fps int) *FFmpegCamera {
	return &FFmpegCamera{
		Device: device,
		Width:  width,
		Height: height,
		FPS:    fps,
	}
}

func (c *FFmpegCamera) Start() error {
	c.cmd = exec.Command("ffmpeg",
		"-f", "v4l2",
		"-framerate", fmt.Sprintf("%v", c.FPS),
		"-video_size", fmt.Sprintf("%vx%v", c.Width, c.Height),
		"-i", c.Device,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-v", "error",
		"-")
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return err
	}
	c.stdout = stdout
	c.stderr = &bytes.Buffer{}
	c.cmd.Stderr = c.stderr
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start camera capture on %v: %w", c.Device, err)
	}
	c.buf = make([]byte, c.Width*c.Height*4)
	c.frame = &image.RGBA{
		Pix:    c.buf,
		Stride: c.Width * 4,
		Rect:   image.Rect(0, 0, c.Width, c.Height),
	}
	return nil
}

func (c *FFmpegCamera) ReadFrame() (*image.RGBA, error) {
	if _, err := io.ReadFull(c.stdout, c.buf); err != nil {
		detail := strings.TrimSpace(c.stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("camera %v: %v (%v)", c.Device, err, detail)
		}
		return nil, fmt.Errorf("camera %v: %w", c.Device, err)
	}
	return c.frame, nil
}

func (c *FFmpegCamera) Close() {
	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
		c.cmd.Wait()
	}
	if c.stdout != nil {
		c.stdout.Close()
	}
}
