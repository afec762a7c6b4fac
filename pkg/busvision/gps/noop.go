// Package gps provides GPSSource adapters. NoopSource is the default:
// spec.md treats the real geolocation provider as an external
// collaborator, so busvision ships only a stub that always reports no
// fix, leaving Session.Geolocation permanently stale until a real source
// is wired in.
package gps

import "github.com/busvision/busvision/pkg/busvision"

// NoopSource never reports a position. It satisfies busvision.GPSSource
// for deployments with no geolocation provider configured.
type NoopSource struct{}

// CurrentPosition always reports no fix.
func (NoopSource) CurrentPosition() (busvision.Geolocation, bool) {
	return busvision.Geolocation{}, false
}
