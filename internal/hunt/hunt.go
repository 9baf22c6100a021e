// Package hunt implements the quest-progression engine: the progress record
// of an attempt, proximity tracking against live location, photo verification,
// skipping, early finish, completion, the event log and feedback signals.
// The similarity oracle and everything outside the attempt are injected.
package hunt

import (
	"errors"
	"fmt"

	"github.com/playperu/odysseus/internal/geo"
)

const (
	// CaptureRadiusFeet is how close the participant must be to the target.
	CaptureRadiusFeet = 50.0
	// SimilarityThreshold is exclusive: a score must be strictly greater.
	SimilarityThreshold = 0.75
	MaxSkips            = 3
	// EarlyFinishRatio is the resolved share required to finish early.
	EarlyFinishRatio = 0.8
)

var (
	ErrInvalidQuest          = errors.New("invalid quest")
	ErrUnknownWaypoint       = errors.New("unknown waypoint")
	ErrAttemptEnded          = errors.New("attempt has ended")
	ErrAttemptNotEnded       = errors.New("attempt has not ended")
	ErrAlreadyResolved       = errors.New("waypoint already resolved")
	ErrNotTarget             = errors.New("waypoint is not the current target")
	ErrOutOfRange            = errors.New("not within capture range")
	ErrCapturePending        = errors.New("a capture is already being checked")
	ErrEmptyPhoto            = errors.New("photo is empty")
	ErrNoSkipsLeft           = errors.New("no skips left")
	ErrNotSkipped            = errors.New("waypoint is not skipped")
	ErrNoPendingConfirmation = errors.New("nothing to confirm")
	ErrBelowFinishThreshold  = errors.New("not enough waypoints resolved to finish early")
	ErrLocationUnavailable   = errors.New("location unavailable")
	ErrCorruptSnapshot       = errors.New("corrupt attempt snapshot")
)

type Quest struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Waypoints []Waypoint `json:"waypoints"`
}

type Waypoint struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Clue           string    `json:"clue"`
	FunFact        string    `json:"funFact,omitempty"`
	Location       geo.Point `json:"location"`
	ReferenceImage string    `json:"referenceImage"`
}

// Validate checks that a quest can be played: at least one waypoint, unique
// ids, and a reference image on every waypoint.
func (q *Quest) Validate() error {
	if len(q.Waypoints) == 0 {
		return fmt.Errorf("%w: no waypoints", ErrInvalidQuest)
	}
	seen := make(map[int]bool, len(q.Waypoints))
	for i, w := range q.Waypoints {
		if seen[w.ID] {
			return fmt.Errorf("%w: duplicate waypoint id %d", ErrInvalidQuest, w.ID)
		}
		seen[w.ID] = true
		if w.ReferenceImage == "" {
			return fmt.Errorf("%w: waypoint %d has no reference image", ErrInvalidQuest, i+1)
		}
	}
	return nil
}

// Lookup returns the waypoint with the given id and its 1-based position.
func (q *Quest) Lookup(id int) (Waypoint, int, bool) {
	for i, w := range q.Waypoints {
		if w.ID == id {
			return w, i + 1, true
		}
	}
	return Waypoint{}, 0, false
}

func (q *Quest) clone() Quest {
	c := *q
	c.Waypoints = append([]Waypoint(nil), q.Waypoints...)
	return c
}
