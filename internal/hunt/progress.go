package hunt

import (
	"fmt"
	"slices"
	"time"
)

// Outcome is the verification result recorded for a capture.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeCorrect
	OutcomeIncorrect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "correct":
		*o = OutcomeCorrect
	case "incorrect":
		*o = OutcomeIncorrect
	case "unknown", "":
		*o = OutcomeUnknown
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Capture is the latest photo submitted for a waypoint.
type Capture struct {
	Photo      []byte
	Outcome    Outcome
	Similarity *float64
	Pending    bool
	// Seq increases with every submission for the waypoint so a late oracle
	// answer for an older photo can be recognised and dropped.
	Seq int
}

// Progress is the authoritative record of a single quest attempt.
// Only the Attempt that owns it mutates it.
type Progress struct {
	StartedAt time.Time
	EndedAt   *time.Time
	Team      string

	completed map[int]struct{}
	skipped   map[int]struct{}
	skipsUsed int
	captures  map[int]*Capture
}

func NewProgress(team string, startedAt time.Time) *Progress {
	return &Progress{
		StartedAt: startedAt,
		Team:      team,
		completed: make(map[int]struct{}),
		skipped:   make(map[int]struct{}),
		captures:  make(map[int]*Capture),
	}
}

func (p *Progress) IsCompleted(id int) bool {
	_, ok := p.completed[id]
	return ok
}

func (p *Progress) IsSkipped(id int) bool {
	_, ok := p.skipped[id]
	return ok
}

// Resolved reports whether the waypoint is completed or skipped.
func (p *Progress) Resolved(id int) bool {
	return p.IsCompleted(id) || p.IsSkipped(id)
}

func (p *Progress) Completed() []int { return sortedKeys(p.completed) }
func (p *Progress) Skipped() []int   { return sortedKeys(p.skipped) }
func (p *Progress) SkipsUsed() int   { return p.skipsUsed }
func (p *Progress) Ended() bool      { return p.EndedAt != nil }

// ResolvedCount is |completed| + |skipped|.
func (p *Progress) ResolvedCount() int {
	return len(p.completed) + len(p.skipped)
}

// Capture returns a copy of the capture stored for a waypoint.
func (p *Progress) Capture(id int) (Capture, bool) {
	c, ok := p.captures[id]
	if !ok {
		return Capture{}, false
	}
	return *c, true
}

func (p *Progress) complete(id int) {
	p.completed[id] = struct{}{}
}

func (p *Progress) skip(id int) {
	p.skipped[id] = struct{}{}
	p.skipsUsed++
}

func (p *Progress) unskip(id int) {
	if _, ok := p.skipped[id]; !ok {
		return
	}
	delete(p.skipped, id)
	if p.skipsUsed > 0 {
		p.skipsUsed--
	}
}

// forfeit marks a waypoint skipped without spending a skip. Early finish
// uses it for everything still unresolved.
func (p *Progress) forfeit(id int) {
	p.skipped[id] = struct{}{}
}

// storePhoto overwrites the photo for a waypoint and marks it pending.
func (p *Progress) storePhoto(id int, photo []byte) int {
	c, ok := p.captures[id]
	if !ok {
		c = &Capture{}
		p.captures[id] = c
	}
	c.Photo = photo
	c.Outcome = OutcomeUnknown
	c.Similarity = nil
	c.Pending = true
	c.Seq++
	return c.Seq
}

func sortedKeys(m map[int]struct{}) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ProgressSnapshot is the serialisable form of Progress. In-flight checks
// are not carried over: a restored pending capture comes back unknown.
type ProgressSnapshot struct {
	StartedAt time.Time               `json:"startedAt"`
	EndedAt   *time.Time              `json:"endedAt,omitempty"`
	Team      string                  `json:"team"`
	Completed []int                   `json:"completed"`
	Skipped   []int                   `json:"skipped"`
	SkipsUsed int                     `json:"skipsUsed"`
	Captures  map[int]CaptureSnapshot `json:"captures,omitempty"`
}

type CaptureSnapshot struct {
	Photo      []byte   `json:"photo"`
	Outcome    Outcome  `json:"outcome"`
	Similarity *float64 `json:"similarity,omitempty"`
	Seq        int      `json:"seq"`
}

func (p *Progress) snapshot() ProgressSnapshot {
	s := ProgressSnapshot{
		StartedAt: p.StartedAt,
		EndedAt:   p.EndedAt,
		Team:      p.Team,
		Completed: p.Completed(),
		Skipped:   p.Skipped(),
		SkipsUsed: p.skipsUsed,
	}
	if len(p.captures) > 0 {
		s.Captures = make(map[int]CaptureSnapshot, len(p.captures))
		for id, c := range p.captures {
			s.Captures[id] = CaptureSnapshot{
				Photo:      c.Photo,
				Outcome:    c.Outcome,
				Similarity: c.Similarity,
				Seq:        c.Seq,
			}
		}
	}
	return s
}

func restoreProgress(q *Quest, s ProgressSnapshot) (*Progress, error) {
	p := NewProgress(s.Team, s.StartedAt)
	p.EndedAt = s.EndedAt

	known := func(id int) bool {
		_, _, ok := q.Lookup(id)
		return ok
	}
	for _, id := range s.Completed {
		if !known(id) {
			return nil, fmt.Errorf("%w: completed waypoint %d not in quest", ErrCorruptSnapshot, id)
		}
		p.completed[id] = struct{}{}
	}
	for _, id := range s.Skipped {
		if !known(id) {
			return nil, fmt.Errorf("%w: skipped waypoint %d not in quest", ErrCorruptSnapshot, id)
		}
		if p.IsCompleted(id) {
			return nil, fmt.Errorf("%w: waypoint %d both completed and skipped", ErrCorruptSnapshot, id)
		}
		p.skipped[id] = struct{}{}
	}
	if s.SkipsUsed < 0 || s.SkipsUsed > MaxSkips || s.SkipsUsed > len(p.skipped) {
		return nil, fmt.Errorf("%w: skips used %d", ErrCorruptSnapshot, s.SkipsUsed)
	}
	// Only an early finish marks waypoints skipped without spending a skip.
	if s.EndedAt == nil && s.SkipsUsed != len(p.skipped) {
		return nil, fmt.Errorf("%w: %d skipped waypoints but %d skips used", ErrCorruptSnapshot, len(p.skipped), s.SkipsUsed)
	}
	p.skipsUsed = s.SkipsUsed
	for id, c := range s.Captures {
		if !known(id) {
			return nil, fmt.Errorf("%w: capture for waypoint %d not in quest", ErrCorruptSnapshot, id)
		}
		p.captures[id] = &Capture{
			Photo:      c.Photo,
			Outcome:    c.Outcome,
			Similarity: c.Similarity,
			Seq:        c.Seq,
		}
	}
	return p, nil
}
