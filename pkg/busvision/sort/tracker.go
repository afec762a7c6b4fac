package sort

// Box is an axis-aligned box in frame coordinates, decoupled from any
// particular detector's output type.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// TrackedBox carries a Box forward under a persistent track identity.
type TrackedBox struct {
	Box
	ID int
}

func (b Box) area() float64 {
	w, h := b.X2-b.X1, b.Y2-b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// iou returns the intersection-over-union of two boxes in [0, 1].
func iou(a, b Box) float64 {
	ix1, iy1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	ix2, iy2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// track is one tracker-internal identity: its Kalman-smoothed box, age
// since last match, and hit count.
type track struct {
	id       int
	kalman   *boxKalman
	box      Box
	age      int // frames since last matched to a detection
	hits     int // total number of matches
	tentative bool
}

// Tracker assigns persistent identities to per-frame detection boxes
// using greedy IOU matching plus a per-track Kalman motion filter, in the
// spirit of SORT. IDs come from a counter that only increases, so an id
// is never reused, even after its track ages out past MaxAge.
type Tracker struct {
	MaxAge          int     // frames of absence before a track is dropped
	MinHits         int     // matches required before a track is reported
	IOUThreshold    float64 // minimum IOU for a valid assignment
	SmoothingFactor float64 // Kalman smoothing factor passed to each track's filter

	nextID int
	tracks []*track
}

// NewTracker constructs a Tracker with the given parameters.
func NewTracker(maxAge, minHits int, iouThreshold, smoothingFactor float64) *Tracker {
	return &Tracker{
		MaxAge:          maxAge,
		MinHits:         minHits,
		IOUThreshold:    iouThreshold,
		SmoothingFactor: smoothingFactor,
		nextID:          1,
	}
}

// Update ingests one frame's detection boxes and returns the current set
// of confirmed tracked boxes (those with at least MinHits matches).
func (t *Tracker) Update(detections []Box) []TrackedBox {
	matchedTracks := make(map[int]bool, len(t.tracks))
	matchedDets := make(map[int]bool, len(detections))

	// Greedy IOU assignment: repeatedly pick the best remaining
	// (track, detection) pair above threshold until none remain.
	type candidate struct {
		trackIdx, detIdx int
		score            float64
	}
	var candidates []candidate
	for ti, tr := range t.tracks {
		predicted := tr.kalman.predict()
		for di, d := range detections {
			score := iou(predicted, d)
			if score >= t.IOUThreshold {
				candidates = append(candidates, candidate{ti, di, score})
			}
		}
	}
	for {
		best := -1
		bestScore := 0.0
		for i, c := range candidates {
			if matchedTracks[c.trackIdx] || matchedDets[c.detIdx] {
				continue
			}
			if c.score > bestScore {
				best = i
				bestScore = c.score
			}
		}
		if best < 0 {
			break
		}
		c := candidates[best]
		matchedTracks[c.trackIdx] = true
		matchedDets[c.detIdx] = true
		tr := t.tracks[c.trackIdx]
		tr.box = tr.kalman.update(detections[c.detIdx])
		tr.age = 0
		tr.hits++
	}

	// Unmatched tracks age by one frame and keep their last Kalman estimate.
	for i, tr := range t.tracks {
		if matchedTracks[i] {
			continue
		}
		tr.age++
		tr.box = tr.kalman.predict()
	}

	// Unmatched detections start new tentative tracks.
	for di, d := range detections {
		if matchedDets[di] {
			continue
		}
		tr := &track{
			id:     t.nextID,
			kalman: newBoxKalman(t.SmoothingFactor),
			hits:   1,
		}
		t.nextID++
		tr.box = tr.kalman.update(d)
		t.tracks = append(t.tracks, tr)
	}

	// Evict tracks that have aged out; their ids are not handed out again.
	alive := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.age <= t.MaxAge {
			alive = append(alive, tr)
		}
	}
	t.tracks = alive

	result := make([]TrackedBox, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if tr.hits < t.MinHits {
			continue
		}
		result = append(result, TrackedBox{Box: tr.box, ID: tr.id})
	}
	return result
}
