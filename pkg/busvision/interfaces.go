package busvision

import (
	"time"

	"gocv.io/x/gocv"
)

// CameraSource produces a sequence of decoded frames from one stream
// source (file path, URL, or RTSP URI). Implementations are not shared
// across workers: each Reader owns its own instance. Mats returned by
// NextFrame are owned by the caller, which must Close them once done.
type CameraSource interface {
	// Open initializes the source. streamURI is a file path, URL, or RTSP
	// address; width/height/fps are requested capture settings (0 means
	// "use source default").
	Open(streamURI string, width, height, fps int) error
	// NextFrame returns the next decoded frame, or ok=false at end of
	// stream. A decode glitch is reported via err; the caller logs it and
	// continues reading.
	NextFrame() (frame gocv.Mat, ok bool, err error)
	// Close releases the underlying decoder.
	Close() error
}

// Detector runs the person detector on exactly one image and returns
// candidate bounding boxes with confidence. Geometric post-filtering
// (area, aspect ratio) happens in the detector stage, not here.
type Detector interface {
	Detect(frame gocv.Mat) ([]BoundingBox, error)
	Close() error
}

// Classifier runs the door classifier on the cls-frame and returns the
// probability of the "closed" class, which the classifier stage
// thresholds into a DoorState.
type Classifier interface {
	ClassifyClosed(frame gocv.Mat) (probClosed float64, err error)
	Close() error
}

// VideoSink persists annotated frames to an hour-rotated output file.
type VideoSink interface {
	// WriteFrame appends frame to the currently open output file, rotating
	// to a new file first if the wall-clock hour has changed since open.
	WriteFrame(frame gocv.Mat, now time.Time) error
	Close() error
}

// GPSSource is the opaque "current position" provider. An unreachable or
// invalid sample is reported via ok=false and leaves the Session's
// previous position intact.
type GPSSource interface {
	CurrentPosition() (loc Geolocation, ok bool)
}
