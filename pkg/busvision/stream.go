package busvision

import (
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/busvision/busvision/internal/config"
)

// queueCapacity bounds every per-Stream queue. The original source used
// unbounded multiprocessing queues; spec.md's drop-oldest Reader policy
// only makes sense against a fixed bound, so every queue here is bounded
// alike and sized for a few frames of slack rather than unbounded growth.
const queueCapacity = 4

// Stream owns one camera's six-stage pipeline: the queues connecting
// consecutive stages, the counters the Tracker stage increments, and the
// Reader heartbeat the Supervisor polls for liveness.
type Stream struct {
	Camera int // 1-based camera index within the Session

	StreamURI string
	Frame     config.FrameConfig
	Detector  config.DetectorConfig
	Classifier config.ClassifierConfig
	Tracker   config.TrackerConfig
	Writer    config.WriterConfig

	raw       *queue[gocv.Mat]
	detectIn  *queue[gocv.Mat]
	clsIn     *queue[gocv.Mat]
	writeIn   *queue[gocv.Mat]
	detectOut *queue[[]BoundingBox]
	clsOut    *queue[DoorState]
	logs      *queue[LogRecord]

	countIn  atomic.Uint64
	countOut atomic.Uint64

	lastReadNanos atomic.Int64
}

// newStream constructs one Stream for the given 1-based camera index,
// copying the tuple of per-session configuration it needs.
func newStream(camera int, cam config.CameraConfig, cfg *config.Config) *Stream {
	s := &Stream{
		Camera:     camera,
		StreamURI:  cam.Stream,
		Frame:      cfg.Frame,
		Detector:   cfg.Detector,
		Classifier: cfg.Classifier,
		Tracker:    cfg.Tracker,
		Writer:     cfg.Writer,

		raw:       newQueue[gocv.Mat](queueCapacity),
		detectIn:  newQueue[gocv.Mat](queueCapacity),
		clsIn:     newQueue[gocv.Mat](queueCapacity),
		writeIn:   newQueue[gocv.Mat](queueCapacity),
		detectOut: newQueue[[]BoundingBox](queueCapacity),
		clsOut:    newQueue[DoorState](queueCapacity),
		logs:      newQueue[LogRecord](queueCapacity * 4),
	}
	s.lastReadNanos.Store(time.Now().UnixNano())
	return s
}

// touchReader stamps the Reader heartbeat; called once per successful
// decode.
func (s *Stream) touchReader(now time.Time) {
	s.lastReadNanos.Store(now.UnixNano())
}

// readerStalled reports whether the Reader heartbeat is older than
// patience, the Supervisor's restart trigger.
func (s *Stream) readerStalled(now time.Time, patience time.Duration) bool {
	last := time.Unix(0, s.lastReadNanos.Load())
	return now.Sub(last) > patience
}

// CountIn returns the current boarding count for this camera.
func (s *Stream) CountIn() uint64 { return s.countIn.Load() }

// CountOut returns the current alighting count for this camera.
func (s *Stream) CountOut() uint64 { return s.countOut.Load() }

// registerIn increments count_in, the Tracker's sole writer.
func (s *Stream) registerIn() { s.countIn.Add(1) }

// registerOut increments count_out, the Tracker's sole writer.
func (s *Stream) registerOut() { s.countOut.Add(1) }

// decrementIn clamps count_in down by one, never below zero, for a
// cancelled enter event.
func (s *Stream) decrementIn() { clampDecrement(&s.countIn) }

// decrementOut clamps count_out down by one, never below zero, for a
// cancelled exit event.
func (s *Stream) decrementOut() { clampDecrement(&s.countOut) }

// clampDecrement atomically decrements counter by one unless it is
// already zero.
func clampDecrement(counter *atomic.Uint64) {
	for {
		cur := counter.Load()
		if cur == 0 {
			return
		}
		if counter.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// pushLog enqueues a log record, dropping the oldest on overflow: the log
// queue favors recency over completeness identically to the raw queue,
// since a blocked Logger must never back-pressure a pipeline stage.
func (s *Stream) pushLog(rec LogRecord) {
	s.logs.PushDropOldest(rec)
}

// pushRaw enqueues a decoded frame into raw, releasing any Mat it evicts
// to free the underlying C memory immediately rather than waiting on a
// consumer that will never arrive.
func (s *Stream) pushRaw(mat gocv.Mat) {
	if evicted, had := s.raw.PushDropOldestNotify(mat); had {
		evicted.Close()
	}
}
