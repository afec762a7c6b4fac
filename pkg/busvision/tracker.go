package busvision

import (
	"context"
	"time"

	"github.com/busvision/busvision/pkg/busvision/sort"
)

// sortSmoothingFactor is the Kalman smoothing factor handed to every
// track's motion filter. Not exposed in configuration: spec.md's tracker
// parameters are all assignment/debounce knobs, and a fixed mid-range
// smoothing factor is a reasonable default regardless of scene.
const sortSmoothingFactor = 0.5

// slidingWindow is a fixed-capacity FIFO of the last W samples of one
// per-id signal (cy, y1, or y2).
type slidingWindow struct {
	samples []float64
	cap     int
}

func newSlidingWindow(capacity int) *slidingWindow {
	return &slidingWindow{cap: capacity}
}

// empty reports whether the window has never received a sample, the
// signal that this is an id's first tick and it has nothing yet to
// compare a fresh measurement against.
func (w *slidingWindow) empty() bool {
	return len(w.samples) == 0
}

func (w *slidingWindow) mean() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.samples {
		sum += v
	}
	return sum / float64(len(w.samples))
}

func (w *slidingWindow) append(v float64) {
	w.samples = append(w.samples, v)
	if len(w.samples) > w.cap {
		w.samples = w.samples[len(w.samples)-w.cap:]
	}
}

// lastEvent records the most recently committed or upgraded crossing tag
// for one tracked id, and the frame at which it was set.
type lastEvent struct {
	tag   DirTag
	frame int64
}

// idState is the per-id bookkeeping the Tracker carries between ticks.
type idState struct {
	id       int
	cy, y1, y2 *slidingWindow
	last     lastEvent
}

// TrackerState is the event-classification state machine described by
// the per-camera crossing-detection contract: it consumes paired
// detection boxes and door states, assigns identities via a SORT-style
// tracker, and emits enter/exit/cancel events as count_in/count_out
// increments and log records.
type TrackerState struct {
	stream *Stream
	sort   *sort.Tracker

	frameCounter int64
	states       map[int]*idState
	insertOrder  []int // FIFO of ids, for bounded-state eviction
}

// NewTrackerState constructs the per-Stream tracker state machine.
func NewTrackerState(stream *Stream) *TrackerState {
	cfg := stream.Tracker
	return &TrackerState{
		stream: stream,
		sort:   sort.NewTracker(cfg.MaxAge, cfg.MinHits, cfg.IOU, sortSmoothingFactor),
		states: make(map[int]*idState),
	}
}

// RunTracker advances one tick per matched (detectOut, clsOut) pair,
// sleeping briefly when either is not yet available so the tick always
// sees aligned detection/door state. Exits when ctx is cancelled.
func RunTracker(ctx context.Context, s *Session, stream *Stream) {
	ts := NewTrackerState(stream)

	var pendingBoxes []BoundingBox
	var havePending bool

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !havePending {
			boxes, ok := stream.detectOut.Pop()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			pendingBoxes = boxes
			havePending = true
		}

		door, ok := stream.clsOut.Pop()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		ts.tick(s, pendingBoxes, door)
		havePending = false
	}
}

// tick runs exactly one evaluation of the state machine: identity
// assignment, per-id signal update, event detection, hysteresis, and
// bounded-state eviction.
func (ts *TrackerState) tick(s *Session, boxes []BoundingBox, door DoorState) {
	ts.frameCounter++
	stream := ts.stream
	frame := ts.stream.Frame

	tracked := ts.sort.Update(toSortBoxes(boxes))

	if door == DoorClosed {
		return
	}

	lineHeight := float64(frame.LineHeight)
	deltaY := float64(frame.Height) / 20
	xMin := float64(frame.Width) / 6
	xMax := float64(frame.Width) - xMin

	for _, tb := range tracked {
		cx := (tb.X1 + tb.X2) / 2
		if cx < xMin || cx > xMax {
			continue
		}

		st := ts.stateFor(tb.ID, stream.Tracker.NumFramesToAverage)

		cy := (tb.Y1 + tb.Y2) / 2

		// First sighting of this id: there is no prior sample to compare
		// against yet, so record this tick's signals and wait for the next
		// one rather than evaluating detectEvent against an empty average.
		if st.cy.empty() {
			st.cy.append(cy)
			st.y1.append(tb.Y1)
			st.y2.append(tb.Y2)
			continue
		}

		avgY := st.cy.mean()
		avgY1 := st.y1.mean()
		avgY2 := st.y2.mean()

		name, typ, raised := detectEvent(avgY, cy, avgY1, tb.Y1, avgY2, tb.Y2, lineHeight, deltaY)

		st.cy.append(cy)
		st.y1.append(tb.Y1)
		st.y2.append(tb.Y2)

		if raised {
			ts.applyHysteresis(s, stream, st, name, typ)
		}
	}

	ts.evictExcess(stream.Tracker.MaxTrackedObjects)
}

// toSortBoxes converts the domain BoundingBox slice into the sort
// package's coordinate-only Box slice.
func toSortBoxes(boxes []BoundingBox) []sort.Box {
	out := make([]sort.Box, len(boxes))
	for i, b := range boxes {
		out[i] = sort.Box{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}
	}
	return out
}

// eventName and eventType name the raw crossing event before hysteresis
// is applied.
type eventName int

const (
	eventNone eventName = iota
	eventEnter
	eventExit
)

type eventType int

const (
	typeNone eventType = iota
	typeStrong
	typeWeak
)

// detectEvent evaluates the four crossing predicates in order, returning
// the first that fires. At most one event is raised per id per tick.
func detectEvent(avgY, cy, avgY1, y1, avgY2, y2, lineHeight, deltaY float64) (eventName, eventType, bool) {
	switch {
	case avgY < lineHeight && cy > lineHeight:
		return eventEnter, typeStrong, true
	case avgY > lineHeight && cy < lineHeight:
		return eventExit, typeStrong, true
	case avgY2 > lineHeight-deltaY && y2 < lineHeight-deltaY:
		return eventExit, typeWeak, true
	case avgY1 < lineHeight+deltaY && y1 > lineHeight+deltaY:
		return eventEnter, typeWeak, true
	default:
		return eventNone, typeNone, false
	}
}

// stateFor returns the idState for id, creating and registering it (in
// both the map and the FIFO insertion order) on first use.
func (ts *TrackerState) stateFor(id int, windowSize int) *idState {
	st, ok := ts.states[id]
	if ok {
		return st
	}
	st = &idState{
		id: id,
		cy: newSlidingWindow(windowSize),
		y1: newSlidingWindow(windowSize),
		y2: newSlidingWindow(windowSize),
	}
	ts.states[id] = st
	ts.insertOrder = append(ts.insertOrder, id)
	return st
}

// tagFor returns the committed DirTag for (name, typ).
func tagFor(name eventName, typ eventType) DirTag {
	switch {
	case name == eventEnter && typ == typeStrong:
		return DirEnterStrong
	case name == eventEnter && typ == typeWeak:
		return DirEnterWeak
	case name == eventExit && typ == typeStrong:
		return DirExitStrong
	case name == eventExit && typ == typeWeak:
		return DirExitWeak
	default:
		return DirNone
	}
}

// oppositeName reports whether tag names the opposite raw event from
// name (enter vs exit).
func oppositeName(tag DirTag, name eventName) bool {
	if tag == DirNone {
		return false
	}
	if name == eventEnter {
		return tag.isExit()
	}
	return tag.isEnter()
}

// sameName reports whether tag names the same raw event as name.
func sameName(tag DirTag, name eventName) bool {
	if tag == DirNone {
		return false
	}
	if name == eventEnter {
		return tag.isEnter()
	}
	return tag.isExit()
}

// applyHysteresis implements the five debounce transition rules over a
// freshly raised (name, typ) event for one id's last-committed state.
func (ts *TrackerState) applyHysteresis(s *Session, stream *Stream, st *idState, name eventName, typ eventType) {
	newTag := tagFor(name, typ)
	deltaF := ts.frameCounter - st.last.frame

	switch {
	case st.last.tag == DirNone:
		// Rule 1: no prior event, commit outright.
		ts.commit(s, stream, st, name, newTag)

	case oppositeName(st.last.tag, name) && !st.last.tag.isStrong() && deltaF < int64(stream.Tracker.MinFramesToCount):
		// Rule 2: opposite weak event within the debounce horizon.
		// Cancel the prior commit, then commit the new one.
		ts.cancel(s, stream, st.last.tag)
		ts.commit(s, stream, st, name, newTag)

	case sameName(st.last.tag, name) && !st.last.tag.isStrong() && typ == typeStrong:
		// Rule 3: upgrade weak to strong, same direction. No counter
		// change, no new commit.
		st.last.tag = newTag

	case oppositeName(st.last.tag, name) && st.last.tag.isStrong() && deltaF >= int64(stream.Tracker.MinFramesToCount):
		// Rule 4: opposite strong event past the debounce horizon.
		// Commit as a fresh crossing.
		ts.commit(s, stream, st, name, newTag)

	default:
		// Rule 5: otherwise do nothing.
	}
}

// commit atomically increments the appropriate counter, updates the id's
// last-committed tag, and enqueues a log record. A log-queue failure is
// never possible with the drop-oldest queue policy, so no retry loop is
// needed here; the drop itself is the documented best-effort behavior.
func (ts *TrackerState) commit(s *Session, stream *Stream, st *idState, name eventName, tag DirTag) {
	event := "enter"
	if name == eventExit {
		event = "exit"
		stream.registerOut()
	} else {
		stream.registerIn()
	}
	st.last = lastEvent{tag: tag, frame: ts.frameCounter}
	stream.pushLog(newLogRecord(s, stream.Camera, event, "", time.Now()))
}

// cancel reverses a prior weak commit: clamps the opposite counter down
// by one (never below zero) and logs a cancel_* event.
func (ts *TrackerState) cancel(s *Session, stream *Stream, priorTag DirTag) {
	event := "cancel_enter"
	if priorTag.isEnter() {
		stream.decrementIn()
	} else {
		event = "cancel_exit"
		stream.decrementOut()
	}
	stream.pushLog(newLogRecord(s, stream.Camera, event, "", time.Now()))
}

// evictExcess drops the oldest-inserted id states (FIFO) until the
// tracked-state map is at or below cap, bounding memory regardless of id
// churn.
func (ts *TrackerState) evictExcess(cap int) {
	for len(ts.states) > cap && len(ts.insertOrder) > 0 {
		oldest := ts.insertOrder[0]
		ts.insertOrder = ts.insertOrder[1:]
		delete(ts.states, oldest)
	}
}
