package busvision

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestBuildClassifierFrame_ResizesToClassifierShape(t *testing.T) {
	raw := gocv.NewMatWithSize(480, 900, gocv.MatTypeCV8UC3)
	defer raw.Close()

	out := buildClassifierFrame(raw, 64, 64)
	defer out.Close()

	if out.Cols() != 64 || out.Rows() != 64 {
		t.Fatalf("classifier frame = %dx%d, want 64x64", out.Cols(), out.Rows())
	}
}

func TestBuildClassifierFrame_ResizesDoorCropToRequestedShape(t *testing.T) {
	raw := gocv.NewMatWithSize(100, 90, gocv.MatTypeCV8UC3)
	defer raw.Close()

	// 90 columns wide means each third is 30 columns; concatenated, the
	// pre-resize door crop is 60 columns wide, half the original width.
	out := buildClassifierFrame(raw, 120, 100)
	defer out.Close()

	if out.Cols() != 120 || out.Rows() != 100 {
		t.Fatalf("classifier frame = %dx%d, want 120x100", out.Cols(), out.Rows())
	}
}
