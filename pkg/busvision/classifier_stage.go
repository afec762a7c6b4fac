package busvision

import (
	"context"
	"time"
)

// RunClassifierStage drains clsIn, classifies each frame's P(closed), and
// pushes the thresholded DoorState to clsOut. Classification errors are
// logged and do not stop the stage. Exits when ctx is cancelled.
func RunClassifierStage(ctx context.Context, s *Session, stream *Stream, cls Classifier) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := stream.clsIn.Pop()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		probClosed, err := cls.ClassifyClosed(frame)
		frame.Close()
		if err != nil {
			stream.pushLog(newErrorLog(s, stream.Camera, "classifier_error", err, time.Now()))
			continue
		}

		door := DoorOpen
		if probClosed > stream.Classifier.Threshold {
			door = DoorClosed
		}
		stream.clsOut.Push(door)
	}
}
