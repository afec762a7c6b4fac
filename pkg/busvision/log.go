package busvision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LogRecord is one append-only event log entry. error is omitted from the
// JSON when empty; geolocation fields are null when the session's GPS fix
// is stale or absent, matching the original source's (None, None).
type LogRecord struct {
	Timestamp float64  `json:"timestamp"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Camera    int      `json:"camera"`
	RouteID   string   `json:"route_id"`
	BusID     string   `json:"bus_id"`
	SessionID string   `json:"session_id"`
	Event     string   `json:"event"`
	Error     string   `json:"error,omitempty"`
	Geo       geoField `json:"geolocation"`
}

// geoField renders as {"latitude": null, "longitude": null} when absent,
// or the two floats when present.
type geoField struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// newLogRecord builds a LogRecord for an event on one camera of a session,
// stamping the session's current geolocation (or nulls if stale).
func newLogRecord(s *Session, camera int, event string, errMsg string, now time.Time) LogRecord {
	rec := LogRecord{
		Timestamp: float64(now.UnixNano()) / 1e9,
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05.000000"),
		Camera:    camera,
		RouteID:   s.RouteID,
		BusID:     s.BusID,
		SessionID: s.SessionID,
		Event:     event,
		Error:     errMsg,
	}
	if loc, ok := s.Geolocation(now); ok {
		lat, lon := loc.Latitude, loc.Longitude
		rec.Geo = geoField{Latitude: &lat, Longitude: &lon}
	}
	return rec
}

// newErrorLog is the stage-error convenience constructor: any stage that
// hits a recoverable error records it here instead of aborting the
// pipeline.
func newErrorLog(s *Session, camera int, event string, err error, now time.Time) LogRecord {
	return newLogRecord(s, camera, event, err.Error(), now)
}

// appendLogRecord writes one record to path as a JSON object, preceded by
// ",\n" unless the file is currently empty. The file as a whole becomes a
// valid JSON array only once wrapped in "[" and "]"; it is never rewritten
// or truncated here.
func appendLogRecord(path string, rec LogRecord) error {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling log record: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("statting log file: %w", err)
	}

	if info.Size() > 0 {
		if _, err := f.Write([]byte(",\n")); err != nil {
			return err
		}
	}
	_, err = f.Write(data)
	return err
}

// RunLogger drains every Stream's logs queue in round-robin order,
// appending each record to the session's event log. It runs once per
// Session and exits when ctx is cancelled.
func RunLogger(ctx context.Context, s *Session) {
	path := s.EventLogPath()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		drained := false
		failed := false
		for _, stream := range s.Streams {
			rec, ok := stream.logs.Pop()
			if !ok {
				continue
			}
			drained = true
			if err := appendLogRecord(path, rec); err != nil {
				// A transient file error must not lose the record: put it
				// back on its stream's queue and retry next cycle.
				failed = true
				stream.pushLog(rec)
				continue
			}
		}
		if !drained || failed {
			time.Sleep(10 * time.Millisecond)
		}
	}
}
