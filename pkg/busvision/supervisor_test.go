package busvision

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/busvision/busvision/internal/config"
)

// stubCamera produces a handful of frames then blocks forever, simulating
// a stream that stalls without reaching end of stream.
type stubCamera struct {
	remaining atomic.Int32
}

func (c *stubCamera) Open(streamURI string, width, height, fps int) error { return nil }

func (c *stubCamera) NextFrame() (gocv.Mat, bool, error) {
	if c.remaining.Add(-1) >= 0 {
		return gocv.NewMat(), true, nil
	}
	select {} // block forever, standing in for a stalled stream
}

func (c *stubCamera) Close() error { return nil }

type stubDetector struct{}

func (stubDetector) Detect(frame gocv.Mat) ([]BoundingBox, error) { return nil, nil }
func (stubDetector) Close() error                                 { return nil }

type stubClassifier struct{}

func (stubClassifier) ClassifyClosed(frame gocv.Mat) (float64, error) { return 1, nil }
func (stubClassifier) Close() error                                   { return nil }

type stubSink struct{}

func (stubSink) WriteFrame(frame gocv.Mat, now time.Time) error { return nil }
func (stubSink) Close() error                                   { return nil }

func newTestSupervisorSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.Session.BusID = "081433"
	cfg.Session.RouteID = "304A"
	cfg.Cameras = []config.CameraConfig{{Stream: "0"}}
	cfg.Detector.Weights = "detector.onnx"
	cfg.Classifier.Weights = "classifier.onnx"
	cfg.Classifier.Width = 64
	cfg.Classifier.Height = 64
	return NewSession(cfg, time.Now())
}

func TestSupervisor_InspectRestartsStalledReader(t *testing.T) {
	s := newTestSupervisorSession(t)

	var cameraBuilds atomic.Int32
	newCamera := func(stream *Stream) (CameraSource, error) {
		cameraBuilds.Add(1)
		cam := &stubCamera{}
		cam.remaining.Store(1)
		return cam, nil
	}
	newDetector := func(stream *Stream) (Detector, error) { return stubDetector{}, nil }
	newClassifier := func(stream *Stream) (Classifier, error) { return stubClassifier{}, nil }
	newSink := func(stream *Stream) (VideoSink, error) { return stubSink{}, nil }

	sup := NewSupervisor(s, 50*time.Millisecond, stubGPSSource{}, newCamera, newDetector, newClassifier, newSink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.startStreamWorkers(ctx, 0, s.Streams[0])
	if cameraBuilds.Load() != 1 {
		t.Fatalf("expected 1 camera build after initial start, got %d", cameraBuilds.Load())
	}

	// Force the heartbeat stale, then let inspect observe and restart it.
	s.Streams[0].touchReader(time.Now().Add(-time.Hour))
	sup.inspect(ctx, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for cameraBuilds.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if cameraBuilds.Load() < 2 {
		t.Fatalf("expected stalled reader to be restarted with a fresh camera, got %d builds", cameraBuilds.Load())
	}
}

func TestSupervisor_RunStopsWhenSessionIsOver(t *testing.T) {
	s := newTestSupervisorSession(t)
	s.StopHour = time.Now().Hour()

	newCamera := func(stream *Stream) (CameraSource, error) {
		cam := &stubCamera{}
		cam.remaining.Store(0)
		return cam, nil
	}
	newDetector := func(stream *Stream) (Detector, error) { return stubDetector{}, nil }
	newClassifier := func(stream *Stream) (Classifier, error) { return stubClassifier{}, nil }
	newSink := func(stream *Stream) (VideoSink, error) { return stubSink{}, nil }

	sup := NewSupervisor(s, time.Minute, stubGPSSource{}, newCamera, newDetector, newClassifier, newSink)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Supervisor.Run did not stop once the session's stop hour was reached")
	}
}
