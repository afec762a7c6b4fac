package busvision

import (
	"context"
	"time"
)

// gpsCooldown is the minimum interval between successive polls of the
// GPSSource, matching the original source's local-receiver cooldown.
const gpsCooldown = 1 * time.Second

// RunGPS polls src on a fixed cooldown and writes successful fixes into
// the Session's atomic geolocation scalars. A failed or invalid sample
// (ok=false) leaves the previous fix untouched; Session.Geolocation is
// what ages it out once patience elapses. Runs once per Session and exits
// when ctx is cancelled.
func RunGPS(ctx context.Context, s *Session, src GPSSource) {
	ticker := time.NewTicker(gpsCooldown)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			loc, ok := src.CurrentPosition()
			if !ok {
				continue
			}
			s.UpdateGeolocation(loc, now)
		}
	}
}
