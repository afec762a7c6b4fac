package busvision

import (
	"context"
	"time"
)

// RunWriterStage drains writeIn and persists each frame via sink,
// which is responsible for its own hour-based rotation. Write errors are
// logged and do not stop the stage. Exits when ctx is cancelled.
func RunWriterStage(ctx context.Context, s *Session, stream *Stream, sink VideoSink) {
	defer sink.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := stream.writeIn.Pop()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		now := time.Now()
		if err := sink.WriteFrame(frame, now); err != nil {
			stream.pushLog(newErrorLog(s, stream.Camera, "writer_error", err, now))
		}
		frame.Close()
	}
}
