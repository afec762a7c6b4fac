package busvision

import (
	"context"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// RunPreprocessor derives the detect frame and the classifier frame from
// each raw frame and fans them out to three downstream queues: the same
// detect frame goes to both detectIn and writeIn (as independent clones,
// since each consumer closes its own Mat), and the door-crop frame goes
// to clsIn. Exits when ctx is cancelled.
func RunPreprocessor(ctx context.Context, s *Session, stream *Stream) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, ok := stream.raw.Pop()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		detectFrame := gocv.NewMat()
		gocv.Resize(raw, &detectFrame, image.Pt(stream.Frame.Width, stream.Frame.Height), 0, 0, gocv.InterpolationLinear)

		clsFrame := buildClassifierFrame(raw, stream.Classifier.Width, stream.Classifier.Height)

		raw.Close()

		stream.detectIn.Push(detectFrame.Clone())
		stream.writeIn.Push(detectFrame)
		stream.clsIn.Push(clsFrame)
	}
}

// buildClassifierFrame horizontally concatenates the left third and right
// third of raw (where the doors are) and resizes the result to the
// classifier's input shape.
func buildClassifierFrame(raw gocv.Mat, width, height int) gocv.Mat {
	thirdWidth := raw.Cols() / 3

	left := raw.Region(image.Rect(0, 0, thirdWidth, raw.Rows()))
	defer left.Close()
	right := raw.Region(image.Rect(raw.Cols()-thirdWidth, 0, raw.Cols(), raw.Rows()))
	defer right.Close()

	doors := gocv.NewMat()
	defer doors.Close()
	gocv.Hconcat(left, right, &doors)

	clsFrame := gocv.NewMat()
	gocv.Resize(doors, &clsFrame, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	return clsFrame
}
