//go:build cgo
// +build cgo

// Package writer provides a gocv.VideoWriter-backed VideoSink that
// rotates its output file every wall-clock hour.
package writer

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// extensionForFourCC maps a codec FourCC to its conventional container
// extension.
var extensionForFourCC = map[string]string{
	"XVID": ".avi",
	"MJPG": ".avi",
	"MP4V": ".mp4",
	"X264": ".mp4",
}

func extensionFor(fourcc string) string {
	if ext, ok := extensionForFourCC[fourcc]; ok {
		return ext
	}
	return ".mp4"
}

// HourRotatingWriter persists frames to {outDir}/video_{date}_hour{HH}_cam{N}{ext},
// opening a fresh file whenever the wall-clock hour changes.
type HourRotatingWriter struct {
	mu sync.Mutex

	outDir string
	camera int
	fourcc string
	fps    float64
	width  int
	height int

	writer     *gocv.VideoWriter
	openedHour int
	openedDate string
}

// NewHourRotatingWriter constructs a writer for one camera. No file is
// opened until the first WriteFrame call.
func NewHourRotatingWriter(outDir string, camera int, fourcc string, fps, width, height int) *HourRotatingWriter {
	return &HourRotatingWriter{
		outDir:     outDir,
		camera:     camera,
		fourcc:     fourcc,
		fps:        float64(fps),
		width:      width,
		height:     height,
		openedHour: -1,
	}
}

// WriteFrame writes frame, rotating to a new output file first if the
// wall-clock hour (or date) has changed since the file was opened.
func (w *HourRotatingWriter) WriteFrame(frame gocv.Mat, now time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := now.Format("2006-01-02")
	hour := now.Hour()
	if w.writer == nil || hour != w.openedHour || date != w.openedDate {
		if err := w.rotate(date, hour); err != nil {
			return err
		}
	}
	return w.writer.Write(frame)
}

func (w *HourRotatingWriter) rotate(date string, hour int) error {
	if w.writer != nil {
		w.writer.Close()
		w.writer = nil
	}

	path := filepath.Join(w.outDir, fmt.Sprintf("video_%s_hour%02d_cam%d%s", date, hour, w.camera, extensionFor(w.fourcc)))
	writer, err := gocv.VideoWriterFile(path, w.fourcc, w.fps, w.width, w.height, true)
	if err != nil {
		return fmt.Errorf("opening output video %q: %w", path, err)
	}
	w.writer = writer
	w.openedHour = hour
	w.openedDate = date
	return nil
}

// Close releases the currently open output file, if any.
func (w *HourRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return nil
	}
	err := w.writer.Close()
	w.writer = nil
	return err
}
