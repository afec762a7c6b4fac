//go:build cgo
// +build cgo

// Package camera provides a gocv.VideoCapture-backed CameraSource for
// local devices, files, and network streams.
package camera

import (
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// fourccMJPEG is the FourCC code for the Motion JPEG codec, widely
// supported by USB webcams and set explicitly for compatibility.
const fourccMJPEG = 0x47504A4D

// OpenCVCamera implements busvision.CameraSource using OpenCV via gocv.
// A bare integer streamURI ("0", "1", ...) opens a local V4L2 device; any
// other string (file path, RTSP/HTTP URL) opens through gocv's generic
// backend.
type OpenCVCamera struct {
	mu sync.Mutex

	webcam *gocv.VideoCapture
	opened bool
}

// NewOpenCVCamera creates a gocv-backed camera source.
func NewOpenCVCamera() *OpenCVCamera {
	return &OpenCVCamera{}
}

// Open initializes the capture device or stream.
func (c *OpenCVCamera) Open(streamURI string, width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return fmt.Errorf("camera already opened")
	}

	var webcam *gocv.VideoCapture
	var err error
	if deviceID, convErr := strconv.Atoi(streamURI); convErr == nil {
		webcam, err = gocv.OpenVideoCaptureWithAPI(deviceID, gocv.VideoCaptureV4L2)
	} else {
		webcam, err = gocv.OpenVideoCapture(streamURI)
	}
	if err != nil {
		return fmt.Errorf("opening stream %q: %w", streamURI, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("stream %q not found or unavailable", streamURI)
	}

	webcam.Set(gocv.VideoCaptureFOURCC, fourccMJPEG)
	if width > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if fps > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(fps))
	}

	c.webcam = webcam
	c.opened = true
	return nil
}

// NextFrame reads the next frame from the underlying capture.
func (c *OpenCVCamera) NextFrame() (gocv.Mat, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return gocv.Mat{}, false, fmt.Errorf("camera not opened")
	}

	mat := gocv.NewMat()
	if ok := c.webcam.Read(&mat); !ok {
		mat.Close()
		return gocv.Mat{}, false, nil
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, true, fmt.Errorf("captured frame is empty")
	}
	return mat, true, nil
}

// Close releases the underlying capture device.
func (c *OpenCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}
	c.opened = false
	if c.webcam != nil {
		return c.webcam.Close()
	}
	return nil
}
