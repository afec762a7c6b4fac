// Package busvision implements the per-camera staged pipeline and session
// supervisor that count bus passengers boarding and alighting across
// several camera streams in real time.
//
// A Session owns one Stream per camera. Each Stream runs a fixed six-stage
// pipeline: reader, preprocessor, detector, classifier, tracker, writer,
// connected by bounded queues. Two session-level workers, Logger and GPS,
// run once per Session. A Supervisor starts every worker, restarts a
// stalled Reader, and stops the session at the configured wall-clock hour.
package busvision

import "fmt"

// BoundingBox is an axis-aligned detection box in detector-frame
// coordinates. Invariant: X1 < X2 and Y1 < Y2.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
	Confidence     float64
}

// Width returns the box width.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area.
func (b BoundingBox) Area() float64 { return b.Width() * b.Height() }

// Valid reports whether the box satisfies X1<X2 and Y1<Y2.
func (b BoundingBox) Valid() bool { return b.X1 < b.X2 && b.Y1 < b.Y2 }

// DoorState is the thresholded output of the door classifier.
type DoorState int

const (
	// DoorClosed means the bus doors are shut.
	DoorClosed DoorState = 0
	// DoorOpen means the bus doors are open.
	DoorOpen DoorState = 1
)

func (d DoorState) String() string {
	if d == DoorOpen {
		return "open"
	}
	return "closed"
}

// DirTag is the finite tagged state of a tracked identity's last committed
// or upgraded crossing event.
type DirTag int

const (
	// DirNone means no crossing event has been recorded yet for this id.
	DirNone DirTag = iota
	// DirEnterStrong is a committed center-crossing enter.
	DirEnterStrong
	// DirEnterWeak is a committed edge-band enter.
	DirEnterWeak
	// DirExitStrong is a committed center-crossing exit.
	DirExitStrong
	// DirExitWeak is a committed edge-band exit.
	DirExitWeak
)

func (d DirTag) String() string {
	switch d {
	case DirEnterStrong:
		return "enter_s"
	case DirEnterWeak:
		return "enter_w"
	case DirExitStrong:
		return "exit_s"
	case DirExitWeak:
		return "exit_w"
	default:
		return "none"
	}
}

// isEnter reports whether the tag names an enter event.
func (d DirTag) isEnter() bool { return d == DirEnterStrong || d == DirEnterWeak }

// isExit reports whether the tag names an exit event.
func (d DirTag) isExit() bool { return d == DirExitStrong || d == DirExitWeak }

// isStrong reports whether the tag is a strong (center-crossing) variant.
func (d DirTag) isStrong() bool { return d == DirEnterStrong || d == DirExitStrong }

// Geolocation is a latitude/longitude pair, or the zero value's absence
// reported as ok=false by Session.Geolocation when the GPS fix is stale.
type Geolocation struct {
	Latitude, Longitude float64
}

func (g Geolocation) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", g.Latitude, g.Longitude)
}
