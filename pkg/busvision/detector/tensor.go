package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// writeCHWTensor resizes frame to (width, height) if needed, converts it
// to float32 in [0, 1], and writes it into dst in planar CHW order
// (channel, then row, then column), the layout ONNX vision models expect.
func writeCHWTensor(frame gocv.Mat, dst []float32, width, height int) error {
	resized := frame
	owned := false
	if frame.Cols() != width || frame.Rows() != height {
		resized = gocv.NewMat()
		gocv.Resize(frame, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
		owned = true
	}
	if owned {
		defer resized.Close()
	}

	floatMat := gocv.NewMat()
	defer floatMat.Close()
	resized.ConvertTo(&floatMat, gocv.MatTypeCV32F)

	data, err := floatMat.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("reading frame data: %w", err)
	}

	channels := floatMat.Channels()
	plane := width * height
	if len(dst) < channels*plane {
		return fmt.Errorf("tensor buffer too small: have %d, need %d", len(dst), channels*plane)
	}

	for idx := 0; idx < plane; idx++ {
		for c := 0; c < channels; c++ {
			dst[c*plane+idx] = data[idx*channels+c] / 255.0
		}
	}
	return nil
}
