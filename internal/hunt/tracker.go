package hunt

import (
	"fmt"

	"github.com/playperu/odysseus/internal/geo"
)

// Location is the latest position fix reported by the device.
type Location struct {
	geo.Point
	// Heading in degrees clockwise from north, when the device reports one.
	Heading *float64 `json:"heading,omitempty"`
}

// Target is the nearest unresolved waypoint relative to the live location.
type Target struct {
	Waypoint     Waypoint
	Ordinal      int
	DistanceFeet float64
	Bearing      float64
	Direction    string
}

// Tracker derives the current target from live location and progress.
// Nothing it computes is cached: every query reads the latest state.
type Tracker struct {
	quest    *Quest
	progress *Progress

	location *Location
	err      error
	debug    bool
	inRange  bool
}

func NewTracker(q *Quest, p *Progress) *Tracker {
	return &Tracker{quest: q, progress: p}
}

// Update overwrites the live location and clears any error state.
func (t *Tracker) Update(loc Location) {
	t.location = &loc
	t.err = nil
}

// Fail puts the tracker in the error state. Location and target become
// undefined until the next successful update.
func (t *Tracker) Fail(reason string) {
	t.location = nil
	t.err = fmt.Errorf("%w: %s", ErrLocationUnavailable, reason)
}

func (t *Tracker) Err() error { return t.err }

func (t *Tracker) Location() (Location, bool) {
	if t.location == nil {
		return Location{}, false
	}
	return *t.location, true
}

func (t *Tracker) SetDebug(on bool) { t.debug = on }
func (t *Tracker) Debug() bool      { return t.debug }

// Target returns the nearest unresolved waypoint. Ties go to the lowest id.
func (t *Tracker) Target() (Target, bool) {
	if t.location == nil {
		return Target{}, false
	}
	var (
		best  Target
		found bool
	)
	for i, w := range t.quest.Waypoints {
		if t.progress.Resolved(w.ID) {
			continue
		}
		d := geo.DistanceFeet(t.location.Point, w.Location)
		if !found || d < best.DistanceFeet || (d == best.DistanceFeet && w.ID < best.Waypoint.ID) {
			best = Target{Waypoint: w, Ordinal: i + 1, DistanceFeet: d}
			found = true
		}
	}
	if !found {
		return Target{}, false
	}
	best.Bearing = geo.BearingDegrees(t.location.Point, best.Waypoint.Location)
	best.Direction = geo.DirectionName(best.Bearing)
	return best, true
}

// WithinRange reports whether a capture may be taken. The debug override
// always wins.
func (t *Tracker) WithinRange() bool {
	if t.debug {
		return true
	}
	target, ok := t.Target()
	return ok && target.DistanceFeet <= CaptureRadiusFeet
}

// Refresh re-evaluates range and returns true only on a transition from out
// of range to in range.
func (t *Tracker) Refresh() bool {
	now := t.WithinRange()
	entered := now && !t.inRange
	t.inRange = now
	return entered
}
