// Package detector provides an ONNX Runtime-backed busvision.Detector,
// running a person-detection model over each frame and returning its raw
// bounding boxes (geometric post-filtering happens in the pipeline stage,
// not here).
package detector

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/busvision/busvision/pkg/busvision"
)

// maxDetections bounds the fixed-size output tensor; this mirrors the
// common YOLO-style export shape of (1, maxDetections, 6) where each row
// is (x1, y1, x2, y2, confidence, class).
const maxDetections = 100

// ONNXDetector runs a person-detection model via ONNX Runtime. Width and
// Height must match the model's expected input shape.
type ONNXDetector struct {
	mu sync.Mutex

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	width, height int
}

// NewONNXDetector loads the model at weightsPath and prepares fixed
// input/output tensors sized to (width, height). onnxLibPath is the path
// to the shared ONNX Runtime library; pass "" to use the system default
// search path.
func NewONNXDetector(weightsPath, onnxLibPath string, width, height int) (*ONNXDetector, error) {
	if onnxLibPath != "" {
		ort.SetSharedLibraryPath(onnxLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", err)
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(height), int64(width)))
	if err != nil {
		return nil, fmt.Errorf("allocating detector input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, maxDetections, 6))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocating detector output tensor: %w", err)
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(weightsPath)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("reading detector model info: %w", err)
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
		return nil, fmt.Errorf("creating detector session: %w", err)
	}

	return &ONNXDetector{
		session: session,
		input:   input,
		output:  output,
		width:   width,
		height:  height,
	}, nil
}

// Detect runs the detector on frame and returns raw candidate boxes
// (unfiltered; the detector stage applies area/aspect-ratio filters).
func (d *ONNXDetector) Detect(frame gocv.Mat) ([]busvision.BoundingBox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := writeCHWTensor(frame, d.input.GetData(), d.width, d.height); err != nil {
		return nil, err
	}

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("running detector session: %w", err)
	}

	return decodeBoxes(d.output.GetData()), nil
}

// decodeBoxes reads (x1, y1, x2, y2, confidence, class) rows out of a
// flat float32 output buffer until a zero-confidence row signals the end
// of valid detections.
func decodeBoxes(data []float32) []busvision.BoundingBox {
	boxes := make([]busvision.BoundingBox, 0, maxDetections)
	for i := 0; i+5 < len(data); i += 6 {
		conf := float64(data[i+4])
		if conf <= 0 {
			break
		}
		boxes = append(boxes, busvision.BoundingBox{
			X1:         float64(data[i]),
			Y1:         float64(data[i+1]),
			X2:         float64(data[i+2]),
			Y2:         float64(data[i+3]),
			Confidence: conf,
		})
	}
	return boxes
}

// Close releases the session and its tensors.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	return nil
}
