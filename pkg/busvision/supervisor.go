package busvision

import (
	"context"
	"log"
	"sync"
	"time"
)

// supervisorTick is the liveness-inspection interval.
const supervisorTick = 1 * time.Second

// CameraFactory constructs a fresh CameraSource for one Stream. The
// Supervisor calls it once at startup and again every time it restarts a
// stalled Reader, since a CameraSource instance is never reused after
// Close.
type CameraFactory func(stream *Stream) (CameraSource, error)

// DetectorFactory, ClassifierFactory, and VideoSinkFactory construct the
// remaining opaque per-Stream adapters once at startup; only the Reader
// is restarted mid-session.
type (
	DetectorFactory   func(stream *Stream) (Detector, error)
	ClassifierFactory func(stream *Stream) (Classifier, error)
	VideoSinkFactory  func(stream *Stream) (VideoSink, error)
)

// Supervisor starts every worker for a Session, restarts a Stream's
// Reader when its heartbeat goes stale, and stops all workers once the
// session's stop hour is reached.
type Supervisor struct {
	Session    *Session
	GPSSource  GPSSource
	NewCamera  CameraFactory
	NewDetector DetectorFactory
	NewClassifier ClassifierFactory
	NewSink    VideoSinkFactory

	patience time.Duration

	wg         sync.WaitGroup
	readerCtxs []context.CancelFunc
	mu         sync.Mutex
}

// NewSupervisor constructs a Supervisor for s. patience bounds how long a
// Reader may go silent before it is restarted.
func NewSupervisor(s *Session, patience time.Duration, gps GPSSource, newCam CameraFactory, newDet DetectorFactory, newCls ClassifierFactory, newSink VideoSinkFactory) *Supervisor {
	return &Supervisor{
		Session:       s,
		GPSSource:     gps,
		NewCamera:     newCam,
		NewDetector:   newDet,
		NewClassifier: newCls,
		NewSink:       newSink,
		patience:      patience,
		readerCtxs:    make([]context.CancelFunc, len(s.Streams)),
	}
}

// Run starts every worker and runs the inspection loop on a one-second
// ticker until the ticker's time falls in the session's stop hour or ctx
// is cancelled. It then cancels every worker and returns once the Logger,
// the GPS worker and the non-Reader stages have exited. Reader goroutines
// are cancelled but not joined: a Reader blocked inside
// CameraSource.NextFrame does not see the cancellation until that call
// returns.
func (sup *Supervisor) Run(ctx context.Context) {
	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	sup.wg.Add(1)
	go func() {
		defer sup.wg.Done()
		RunLogger(sessionCtx, sup.Session)
	}()

	sup.wg.Add(1)
	go func() {
		defer sup.wg.Done()
		RunGPS(sessionCtx, sup.Session, sup.GPSSource)
	}()

	for i, stream := range sup.Session.Streams {
		sup.startStreamWorkers(sessionCtx, i, stream)
	}

	ticker := time.NewTicker(supervisorTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sup.wg.Wait()
			return
		case now := <-ticker.C:
			if sup.Session.IsOver(now) {
				cancelSession()
				sup.wg.Wait()
				return
			}
			sup.inspect(sessionCtx, now)
		}
	}
}

// startStreamWorkers starts the five non-Reader stages for stream (which
// run for the life of the session) plus an initial Reader.
func (sup *Supervisor) startStreamWorkers(ctx context.Context, idx int, stream *Stream) {
	det, err := sup.NewDetector(stream)
	if err != nil {
		log.Printf("busvision: camera %d: detector init failed: %v", stream.Camera, err)
		return
	}
	cls, err := sup.NewClassifier(stream)
	if err != nil {
		log.Printf("busvision: camera %d: classifier init failed: %v", stream.Camera, err)
		return
	}
	sink, err := sup.NewSink(stream)
	if err != nil {
		log.Printf("busvision: camera %d: writer init failed: %v", stream.Camera, err)
		return
	}

	sup.wg.Add(4)
	go func() { defer sup.wg.Done(); RunPreprocessor(ctx, sup.Session, stream) }()
	go func() { defer sup.wg.Done(); RunDetectorStage(ctx, sup.Session, stream, det) }()
	go func() { defer sup.wg.Done(); RunClassifierStage(ctx, sup.Session, stream, cls) }()
	go func() { defer sup.wg.Done(); RunTracker(ctx, sup.Session, stream) }()

	sup.wg.Add(1)
	go func() { defer sup.wg.Done(); RunWriterStage(ctx, sup.Session, stream, sink) }()

	sup.startReader(ctx, idx, stream)
}

// startReader constructs a fresh CameraSource and launches a Reader
// goroutine for stream, tracked under its own cancelable context so it
// alone can be restarted.
func (sup *Supervisor) startReader(parent context.Context, idx int, stream *Stream) {
	cam, err := sup.NewCamera(stream)
	if err != nil {
		log.Printf("busvision: camera %d: reader init failed: %v", stream.Camera, err)
		return
	}
	if err := cam.Open(stream.StreamURI, stream.Frame.Width, stream.Frame.Height, 0); err != nil {
		log.Printf("busvision: camera %d: open failed: %v", stream.Camera, err)
		return
	}

	readerCtx, cancel := context.WithCancel(parent)
	sup.mu.Lock()
	sup.readerCtxs[idx] = cancel
	sup.mu.Unlock()

	stream.touchReader(time.Now())

	// Not tracked by sup.wg: a Reader stuck in NextFrame cannot observe
	// readerCtx, and joining it would keep Run from returning.
	go RunReader(readerCtx, sup.Session, stream, cam)
}

// inspect checks every Stream's Reader heartbeat and restarts any stalled
// one exactly once per stale detection.
func (sup *Supervisor) inspect(ctx context.Context, now time.Time) {
	for i, stream := range sup.Session.Streams {
		if !stream.readerStalled(now, sup.patience) {
			continue
		}

		sup.mu.Lock()
		cancel := sup.readerCtxs[i]
		sup.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		stream.touchReader(now)
		sup.startReader(ctx, i, stream)
	}
}
