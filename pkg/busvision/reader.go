package busvision

import (
	"context"
	"time"
)

// RunReader decodes frames from src and pushes them into stream.raw,
// preferring freshness over completeness under backpressure. A decode
// error is logged and reading continues; end of stream or ctx
// cancellation returns. The caller is responsible for constructing a
// fresh CameraSource on restart; this function never retries Open.
func RunReader(ctx context.Context, s *Session, stream *Stream, src CameraSource) {
	defer src.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok, err := src.NextFrame()
		now := time.Now()
		if err != nil {
			stream.pushLog(newErrorLog(s, stream.Camera, "reader_error", err, now))
			continue
		}
		if !ok {
			return
		}

		stream.pushRaw(frame)
		stream.touchReader(now)
	}
}
