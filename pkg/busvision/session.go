package busvision

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/busvision/busvision/internal/config"
)

// Session owns the identifiers, shared geolocation scalars, and the
// ordered list of Streams for one bus/route deployment. Configuration is
// immutable after construction; the only mutable state is the atomic GPS
// scalars, refreshed by the GPS worker and read by anyone via Geolocation.
type Session struct {
	BusID     string
	RouteID   string
	SessionID string

	StopHour    int
	LogsDir     string
	OutVideoDir string
	Patience    time.Duration

	Streams []*Stream

	latBits  atomic.Uint64 // math.Float64bits(latitude)
	lonBits  atomic.Uint64 // math.Float64bits(longitude)
	gpsNanos atomic.Int64  // UnixNano of last successful GPS fix
}

// NewSession constructs a Session and one Stream per configured camera,
// indexed 1..N in configuration order. now fixes the session_id's date
// component and the GPS staleness clock's origin.
func NewSession(cfg *config.Config, now time.Time) *Session {
	s := &Session{
		BusID:       cfg.Session.BusID,
		RouteID:     cfg.Session.RouteID,
		StopHour:    cfg.Session.StopHour,
		LogsDir:     cfg.Session.LogsDir,
		OutVideoDir: cfg.Session.OutVideoDir,
		Patience:    time.Duration(cfg.GPS.Patience) * time.Second,
	}
	s.SessionID = fmt.Sprintf("%s_%s_%s", now.Format("2006-01-02"), s.BusID, s.RouteID)

	for i, cam := range cfg.Cameras {
		s.Streams = append(s.Streams, newStream(i+1, cam, cfg))
	}
	return s
}

// EventLogPath is the append-only log file path for this session.
func (s *Session) EventLogPath() string {
	return fmt.Sprintf("%s/log_%s.json", s.LogsDir, s.SessionID)
}

// UpdateGeolocation records a fresh GPS fix as of now. Called only by the
// GPS worker.
func (s *Session) UpdateGeolocation(loc Geolocation, now time.Time) {
	s.latBits.Store(math.Float64bits(loc.Latitude))
	s.lonBits.Store(math.Float64bits(loc.Longitude))
	s.gpsNanos.Store(now.UnixNano())
}

// Geolocation returns the last known fix and whether it is still fresh
// relative to now and the session's GPS patience. A stale or never-set fix
// reports ok=false without clearing the stored values.
func (s *Session) Geolocation(now time.Time) (Geolocation, bool) {
	nanos := s.gpsNanos.Load()
	if nanos == 0 {
		return Geolocation{}, false
	}
	if now.Sub(time.Unix(0, nanos)) > s.Patience {
		return Geolocation{}, false
	}
	return Geolocation{
		Latitude:  math.Float64frombits(s.latBits.Load()),
		Longitude: math.Float64frombits(s.lonBits.Load()),
	}, true
}

// CountIn sums count_in across every Stream.
func (s *Session) CountIn() uint64 {
	var total uint64
	for _, st := range s.Streams {
		total += st.CountIn()
	}
	return total
}

// CountOut sums count_out across every Stream.
func (s *Session) CountOut() uint64 {
	var total uint64
	for _, st := range s.Streams {
		total += st.CountOut()
	}
	return total
}

// CountTotal is the net passenger count currently aboard.
func (s *Session) CountTotal() int64 {
	return int64(s.CountIn()) - int64(s.CountOut())
}

// IsOver reports whether the wall-clock hour of now matches the configured
// stop hour, the Supervisor's signal to terminate the session.
func (s *Session) IsOver(now time.Time) bool {
	return now.Hour() == s.StopHour
}
