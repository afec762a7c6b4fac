package busvision

import (
	"context"
	"time"
)

// RunDetectorStage drains detectIn, runs det on each frame, applies the
// geometric post-filters (min_square, max_sides_relation), and pushes the
// surviving boxes to detectOut. Detection errors are logged and do not
// stop the stage. Exits when ctx is cancelled.
func RunDetectorStage(ctx context.Context, s *Session, stream *Stream, det Detector) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := stream.detectIn.Pop()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		boxes, err := det.Detect(frame)
		frame.Close()
		if err != nil {
			stream.pushLog(newErrorLog(s, stream.Camera, "detector_error", err, time.Now()))
			continue
		}

		stream.detectOut.Push(filterBoxes(boxes, stream.Detector.MinSquare, stream.Detector.MaxSidesRelation))
	}
}

// filterBoxes rejects invalid boxes, boxes whose area is at most
// minSquare, and boxes whose w/h or h/w ratio is at least
// maxSidesRelation, matching spec.md's thin/small-box
// rejection to stabilize tracking.
func filterBoxes(boxes []BoundingBox, minSquare, maxSidesRelation float64) []BoundingBox {
	kept := make([]BoundingBox, 0, len(boxes))
	for _, b := range boxes {
		if !b.Valid() {
			continue
		}
		if b.Area() <= minSquare {
			continue
		}
		w, h := b.Width(), b.Height()
		if h == 0 || w == 0 {
			continue
		}
		if w/h >= maxSidesRelation || h/w >= maxSidesRelation {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}
