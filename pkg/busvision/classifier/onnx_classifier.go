// Package classifier provides an ONNX Runtime-backed busvision.Classifier
// that scores the door-crop frame's probability of being closed.
package classifier

import (
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXClassifier runs a binary door-state classification model via ONNX
// Runtime. Width and Height must match the model's expected input shape.
type ONNXClassifier struct {
	mu sync.Mutex

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	width, height int
}

// NewONNXClassifier loads the model at weightsPath and prepares fixed
// input/output tensors sized to (width, height).
func NewONNXClassifier(weightsPath, onnxLibPath string, width, height int) (*ONNXClassifier, error) {
	if onnxLibPath != "" {
		ort.SetSharedLibraryPath(onnxLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(height), int64(width)))
	if err != nil {
		return nil, fmt.Errorf("allocating classifier input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocating classifier output tensor: %w", err)
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(weightsPath)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("reading classifier model info: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		weightsPath,
		[]string{inputInfo[0].Name}, []string{outputInfo[0].Name},
		[]ort.Value{input}, []ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("creating classifier session: %w", err)
	}

	return &ONNXClassifier{
		session: session,
		input:   input,
		output:  output,
		width:   width,
		height:  height,
	}, nil
}

// closedIndex and openIndex name the two-way probability vector's slots.
const (
	closedIndex = 0
	openIndex   = 1
)

// ClassifyClosed runs the classifier on frame and returns P(closed).
func (c *ONNXClassifier) ClassifyClosed(frame gocv.Mat) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeCHWTensor(frame, c.input.GetData(), c.width, c.height); err != nil {
		return 0, err
	}

	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("running classifier session: %w", err)
	}

	data := c.output.GetData()
	return softmaxClosed(float64(data[closedIndex]), float64(data[openIndex])), nil
}

// softmaxClosed converts the raw closed/open logits into P(closed).
func softmaxClosed(closedLogit, openLogit float64) float64 {
	// Numerically stable two-way softmax.
	m := closedLogit
	if openLogit > m {
		m = openLogit
	}
	ec := math.Exp(closedLogit - m)
	eo := math.Exp(openLogit - m)
	return ec / (ec + eo)
}

// Close releases the session and its tensors.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Destroy()
	c.input.Destroy()
	c.output.Destroy()
	return nil
}

// writeCHWTensor resizes frame to (width, height) if needed, converts it
// to float32 in [0, 1], and writes it into dst in planar CHW order.
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
		for ch := 0; ch < channels; ch++ {
			dst[ch*plane+idx] = data[idx*channels+ch] / 255.0
		}
	}
	return nil
}
