package busvision

import (
	"testing"

	"github.com/busvision/busvision/internal/config"
)

func newTestStream() *Stream {
	cfg := config.Default()
	cfg.Session.BusID = "081433"
	cfg.Session.RouteID = "304A"
	cfg.Frame.Width = 640
	cfg.Frame.Height = 640
	cfg.Frame.LineHeight = 130
	cfg.Tracker.NumFramesToAverage = 5
	cfg.Tracker.MinFramesToCount = 500
	cfg.Tracker.MaxTrackedObjects = 100
	cfg.Tracker.MaxAge = 60
	cfg.Tracker.MinHits = 1
	cfg.Tracker.IOU = 0.02
	cfg.Cameras = []config.CameraConfig{{Stream: "test"}}
	return newStream(1, cfg.Cameras[0], cfg)
}

func newTestSession() *Session {
	return &Session{BusID: "081433", RouteID: "304A", SessionID: "2026-07-30_081433_304A"}
}

// S1: a single id whose cy rises from 100 (below line_height=130) to 200
// (above) with the door open throughout produces exactly one enter event.
// The boxes are tall enough that the two positions overlap (IOU 1/3), so
// the identity tracker keeps the same id across the jump.
func TestTick_S1_SingleStrongEnter(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)

	below := BoundingBox{X1: 300, Y1: 0, X2: 340, Y2: 200}
	above := BoundingBox{X1: 300, Y1: 100, X2: 340, Y2: 300}

	for i := 0; i < 5; i++ {
		ts.tick(s, []BoundingBox{below}, DoorOpen)
	}
	for i := 0; i < 5; i++ {
		ts.tick(s, []BoundingBox{above}, DoorOpen)
	}

	if got := stream.CountIn(); got != 1 {
		t.Errorf("count_in = %d, want 1", got)
	}
	if got := stream.CountOut(); got != 0 {
		t.Errorf("count_out = %d, want 0", got)
	}

	rec, ok := stream.logs.Pop()
	if !ok {
		t.Fatal("expected one log record")
	}
	if rec.Event != "enter" {
		t.Errorf("event = %q, want enter", rec.Event)
	}
	if _, ok := stream.logs.Pop(); ok {
		t.Error("expected exactly one log record")
	}
}

// A brand-new id whose very first detection already lies below
// line_height must not raise an event: the sliding windows are empty on
// that tick, so there is no prior average to cross against yet.
func TestTick_FirstSightingBelowLineDoesNotCommit(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)

	below := BoundingBox{X1: 300, Y1: 190, X2: 340, Y2: 210} // cy=200 > line_height=130

	ts.tick(s, []BoundingBox{below}, DoorOpen)

	if got := stream.CountIn(); got != 0 {
		t.Errorf("count_in = %d, want 0 on first sighting", got)
	}
	if got := stream.CountOut(); got != 0 {
		t.Errorf("count_out = %d, want 0 on first sighting", got)
	}
	if _, ok := stream.logs.Pop(); ok {
		t.Error("expected no log record on an id's first tick")
	}

	// Holding steady below the line on subsequent ticks still must not
	// raise an enter: there is no crossing, only a constant position.
	for i := 0; i < 5; i++ {
		ts.tick(s, []BoundingBox{below}, DoorOpen)
	}
	if got := stream.CountIn(); got != 0 {
		t.Errorf("count_in = %d, want 0 with no crossing", got)
	}
}

// S4: door closed for the entire run produces no counts and no events,
// regardless of box trajectory.
func TestTick_S4_DoorClosedSuppressesAllEvents(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)

	below := BoundingBox{X1: 300, Y1: 90, X2: 340, Y2: 110}
	above := BoundingBox{X1: 300, Y1: 190, X2: 340, Y2: 210}

	for i := 0; i < 5; i++ {
		ts.tick(s, []BoundingBox{below}, DoorClosed)
	}
	for i := 0; i < 5; i++ {
		ts.tick(s, []BoundingBox{above}, DoorClosed)
	}

	if got := stream.CountIn(); got != 0 {
		t.Errorf("count_in = %d, want 0", got)
	}
	if got := stream.CountOut(); got != 0 {
		t.Errorf("count_out = %d, want 0", got)
	}
	if _, ok := stream.logs.Pop(); ok {
		t.Error("expected no log records")
	}
}

// Boxes outside the valid x-window never raise an event even when their
// y-trajectory would otherwise qualify.
func TestTick_OutsideXWindowIsIgnored(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)

	below := BoundingBox{X1: 0, Y1: 0, X2: 20, Y2: 200}
	above := BoundingBox{X1: 0, Y1: 100, X2: 20, Y2: 300}

	for i := 0; i < 5; i++ {
		ts.tick(s, []BoundingBox{below}, DoorOpen)
	}
	for i := 0; i < 5; i++ {
		ts.tick(s, []BoundingBox{above}, DoorOpen)
	}

	if got := stream.CountIn(); got != 0 {
		t.Errorf("count_in = %d, want 0", got)
	}
}

// Rule 1: the first event ever raised for an id is committed outright.
func TestHysteresis_Rule1_FirstEventCommits(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)
	st := ts.stateFor(1, stream.Tracker.NumFramesToAverage)

	ts.frameCounter = 10
	ts.applyHysteresis(s, stream, st, eventEnter, typeWeak)

	if stream.CountIn() != 1 {
		t.Fatalf("count_in = %d, want 1", stream.CountIn())
	}
	if st.last.tag != DirEnterWeak {
		t.Errorf("last tag = %v, want DirEnterWeak", st.last.tag)
	}
	if st.last.frame != 10 {
		t.Errorf("last frame = %d, want 10", st.last.frame)
	}
}

// Rule 3: a same-direction strong event arriving while the last committed
// tag is weak upgrades the tag without touching the counter or logging a
// new commit (S2's "weak-then-strong upgrade").
func TestHysteresis_Rule3_UpgradeWeakToStrong(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)
	st := ts.stateFor(1, stream.Tracker.NumFramesToAverage)

	ts.frameCounter = 10
	ts.applyHysteresis(s, stream, st, eventEnter, typeWeak)
	if _, ok := stream.logs.Pop(); !ok {
		t.Fatal("expected the weak commit's log record")
	}

	ts.frameCounter = 12
	ts.applyHysteresis(s, stream, st, eventEnter, typeStrong)

	if stream.CountIn() != 1 {
		t.Errorf("count_in = %d, want 1 (no duplicate commit)", stream.CountIn())
	}
	if st.last.tag != DirEnterStrong {
		t.Errorf("last tag = %v, want DirEnterStrong", st.last.tag)
	}
	if _, ok := stream.logs.Pop(); ok {
		t.Error("expected no additional log record from the upgrade")
	}
}

// Rule 2: an opposite weak event within min_frames_to_count cancels the
// prior commit before committing the new one (S3's cancellation scenario).
func TestHysteresis_Rule2_CancelWithinDebounceHorizon(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)
	st := ts.stateFor(1, stream.Tracker.NumFramesToAverage)

	ts.frameCounter = 20
	ts.applyHysteresis(s, stream, st, eventExit, typeWeak) // commits exit_w, count_out=1
	if _, ok := stream.logs.Pop(); !ok {
		t.Fatal("expected the exit commit's log record")
	}
	if stream.CountOut() != 1 {
		t.Fatalf("count_out = %d, want 1", stream.CountOut())
	}

	ts.frameCounter = 30 // delta=10, well within min_frames_to_count=500
	ts.applyHysteresis(s, stream, st, eventEnter, typeStrong)

	if stream.CountOut() != 0 {
		t.Errorf("count_out = %d, want 0 after cancellation", stream.CountOut())
	}
	if stream.CountIn() != 1 {
		t.Errorf("count_in = %d, want 1", stream.CountIn())
	}

	cancelRec, ok := stream.logs.Pop()
	if !ok || cancelRec.Event != "cancel_exit" {
		t.Fatalf("expected cancel_exit record, got %+v (ok=%v)", cancelRec, ok)
	}
	enterRec, ok := stream.logs.Pop()
	if !ok || enterRec.Event != "enter" {
		t.Fatalf("expected enter record, got %+v (ok=%v)", enterRec, ok)
	}
}

// Rule 4 / boundary behaviour: an opposite strong event arriving before
// min_frames_to_count has elapsed produces no cancellation (falls through
// to rule 5, a no-op) since rule 4 requires waiting out the full horizon.
func TestHysteresis_Rule4_StrongOppositeWithinHorizonIsNoop(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)
	st := ts.stateFor(1, stream.Tracker.NumFramesToAverage)

	ts.frameCounter = 1
	ts.applyHysteresis(s, stream, st, eventEnter, typeStrong)
	stream.logs.Pop()

	ts.frameCounter = 2 // delta=1, far short of min_frames_to_count=500
	ts.applyHysteresis(s, stream, st, eventExit, typeStrong)

	if stream.CountIn() != 1 {
		t.Errorf("count_in = %d, want 1 (unchanged)", stream.CountIn())
	}
	if stream.CountOut() != 0 {
		t.Errorf("count_out = %d, want 0 (no commit, no cancel)", stream.CountOut())
	}
	if _, ok := stream.logs.Pop(); ok {
		t.Error("expected no log record from the suppressed opposite-strong event")
	}
}

// Rule 4 positive case: once min_frames_to_count has elapsed, the opposite
// strong event commits as a fresh crossing.
func TestHysteresis_Rule4_StrongOppositeAfterHorizonCommits(t *testing.T) {
	stream := newTestStream()
	s := newTestSession()
	ts := NewTrackerState(stream)
	st := ts.stateFor(1, stream.Tracker.NumFramesToAverage)
	stream.Tracker.MinFramesToCount = 5

	ts.frameCounter = 1
	ts.applyHysteresis(s, stream, st, eventEnter, typeStrong)
	stream.logs.Pop()

	ts.frameCounter = 10 // delta=9 >= 5
	ts.applyHysteresis(s, stream, st, eventExit, typeStrong)

	if stream.CountOut() != 1 {
		t.Errorf("count_out = %d, want 1", stream.CountOut())
	}
	rec, ok := stream.logs.Pop()
	if !ok || rec.Event != "exit" {
		t.Fatalf("expected exit record, got %+v (ok=%v)", rec, ok)
	}
}

func TestEvictExcess_BoundsStateByInsertionOrder(t *testing.T) {
	stream := newTestStream()
	ts := NewTrackerState(stream)

	for i := 1; i <= 5; i++ {
		ts.stateFor(i, stream.Tracker.NumFramesToAverage)
	}
	ts.evictExcess(3)

	if len(ts.states) != 3 {
		t.Fatalf("len(states) = %d, want 3", len(ts.states))
	}
	for _, id := range []int{1, 2} {
		if _, ok := ts.states[id]; ok {
			t.Errorf("expected id %d to be evicted", id)
		}
	}
	for _, id := range []int{3, 4, 5} {
		if _, ok := ts.states[id]; !ok {
			t.Errorf("expected id %d to survive eviction", id)
		}
	}
}

func TestSlidingWindow_MeanAndCapacity(t *testing.T) {
	w := newSlidingWindow(3)
	if got := w.mean(); got != 0 {
		t.Fatalf("mean of empty window = %f, want 0", got)
	}

	w.append(1)
	w.append(2)
	w.append(3)
	w.append(4) // evicts the 1

	if got := w.mean(); got != 3 {
		t.Errorf("mean = %f, want 3", got)
	}
}
