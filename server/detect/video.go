package detect

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/visionguard/visionguard/pkg/draw"
)

// videoInfo is the subset of stream metadata we need to re-encode
type videoInfo struct {
	Width  int
	Height int
	FPS    float64
}

// RunVideo decodes a video frame by frame, runs detection on every frame,
// and re-encodes the annotated frames into an mp4 in the result directory.
// ffmpeg does the codec work on both ends; we only ever see raw RGB frames.
func (p *Pipeline) RunVideo(localPath, originalFilename string) (*Result, error) {
	info, err := probeVideo(localPath)
	if err != nil {
		p.log.Infof("Failed to probe video %v: %v", originalFilename, err)
		return nil, ErrInvalidInput
	}

	outName := OutputFilename(originalFilename)
	if !strings.EqualFold(filepath.Ext(outName), ".mp4") {
		outName = strings.TrimSuffix(outName, filepath.Ext(outName)) + ".mp4"
	}
	outPath := filepath.Join(p.resultDir, outName)

	decoder := exec.Command("ffmpeg",
		"-i", localPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-v", "error",
		"-")
	decodeOut, err := decoder.StdoutPipe()
	if err != nil {
		return nil, err
	}
	decodeErr := &bytes.Buffer{}
	decoder.Stderr = decodeErr
	if err := decoder.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg decoder: %w", err)
	}
	defer decoder.Process.Kill()

	encoder := exec.Command("ffmpeg",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%vx%v", info.Width, info.Height),
		"-r", fmt.Sprintf("%.4f", info.FPS),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-v", "error",
		outPath)
	encodeIn, err := encoder.StdinPipe()
	if err != nil {
		return nil, err
	}
	encodeErr := &bytes.Buffer{}
	encoder.Stderr = encodeErr
	if err := encoder.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg encoder: %w", err)
	}
	defer encoder.Process.Kill()

	frameSize := info.Width * info.Height * 4
	buf := make([]byte, frameSize)
	seen := map[string]bool{}
	nFrames := 0

	for {
		_, err := io.ReadFull(decodeOut, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read frame %v: %w", nFrames, err)
		}
		frame := &image.RGBA{
			Pix:    buf,
			Stride: info.Width * 4,
			Rect:   image.Rect(0, 0, info.Width, info.Height),
		}
		detections, err := p.DetectFrame(frame)
		if err != nil {
			return nil, err
		}
		for _, label := range draw.Annotate(frame, detections) {
			seen[label] = true
		}
		if _, err := encodeIn.Write(frame.Pix); err != nil {
			return nil, fmt.Errorf("failed to write frame %v to encoder: %v (%v)", nFrames, err, strings.TrimSpace(encodeErr.String()))
		}
		nFrames++
		if nFrames%30 == 0 {
			p.log.Infof("Video %v: processed %v frames", originalFilename, nFrames)
		}
	}

	if err := decoder.Wait(); err != nil {
		p.log.Infof("ffmpeg decoder failed on %v: %v (%v)", originalFilename, err, strings.TrimSpace(decodeErr.String()))
		return nil, ErrInvalidInput
	}
	encodeIn.Close()
	if err := encoder.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg encoder failed: %v (%v)", err, strings.TrimSpace(encodeErr.String()))
	}
	if nFrames == 0 {
		return nil, ErrInvalidInput
	}

	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	p.log.Infof("Annotated video %v: %v frames, %v object class(es)", originalFilename, nFrames, len(labels))
	return &Result{OutputPath: outPath, Labels: labels}, nil
}

// probeVideo reads the resolution and frame rate of the first video stream
func probeVideo(videoPath string) (*videoInfo, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate",
		"-of", "csv=p=0",
		videoPath)
	stdout := &bytes.Buffer{}
	cmd.Stdout = stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	parts := strings.Split(strings.TrimSpace(stdout.String()), ",")
	if len(parts) < 3 {
		return nil, fmt.Errorf("unexpected ffprobe output %q", stdout.String())
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, err
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, err
	}
	fps, err := parseFrameRate(parts[2])
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %vx%v", width, height)
	}
	return &videoInfo{Width: width, Height: height, FPS: fps}, nil
}

// parseFrameRate parses ffprobe's rational frame rate, eg "30000/1001"
func parseFrameRate(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, fmt.Errorf("invalid frame rate %q", s)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	return f, nil
}
