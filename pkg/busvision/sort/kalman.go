// Package sort implements a from-scratch SORT-style multi-object tracker:
// per-track scalar Kalman filters smoothing box coordinates, assigned to
// new detections by greedy IOU matching, with age-based eviction of
// unmatched tracks.
package sort

import "sync"

// scalarKalman is a 1D Kalman filter with no velocity term (the predicted
// state is the last estimate), identical in form to a landmark smoother's
// per-axis filter, reused here to smooth one box coordinate (x1, y1, x2,
// or y2) across frames instead of a 3D point.
type scalarKalman struct {
	mu sync.Mutex

	x           float64
	p           float64
	q           float64
	r           float64
	initialized bool
}

func newScalarKalman(smoothingFactor float64) *scalarKalman {
	q := 0.1
	r := 1.0 - smoothingFactor*0.9 + 0.1
	return &scalarKalman{p: 1.0, q: q, r: r}
}

func (kf *scalarKalman) update(measurement float64) float64 {
	kf.mu.Lock()
	defer kf.mu.Unlock()

	if !kf.initialized {
		kf.x = measurement
		kf.initialized = true
		return measurement
	}

	pPred := kf.p + kf.q
	k := pPred / (pPred + kf.r)
	kf.x = kf.x + k*(measurement-kf.x)
	kf.p = (1 - k) * pPred
	return kf.x
}

// predict returns the current state without a new measurement, used to
// carry a track forward across frames where it went unmatched.
func (kf *scalarKalman) predict() float64 {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	return kf.x
}

// boxKalman smooths all four box coordinates of one track independently.
type boxKalman struct {
	x1, y1, x2, y2 *scalarKalman
}

func newBoxKalman(smoothingFactor float64) *boxKalman {
	return &boxKalman{
		x1: newScalarKalman(smoothingFactor),
		y1: newScalarKalman(smoothingFactor),
		x2: newScalarKalman(smoothingFactor),
		y2: newScalarKalman(smoothingFactor),
	}
}

func (bk *boxKalman) update(b Box) Box {
	return Box{
		X1: bk.x1.update(b.X1),
		Y1: bk.y1.update(b.Y1),
		X2: bk.x2.update(b.X2),
		Y2: bk.y2.update(b.Y2),
	}
}

func (bk *boxKalman) predict() Box {
	return Box{X1: bk.x1.predict(), Y1: bk.y1.predict(), X2: bk.x2.predict(), Y2: bk.y2.predict()}
}
