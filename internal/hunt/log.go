package hunt

import (
	"fmt"
	"strings"
	"time"
)

const logTimeLayout = "2006-01-02 15:04:05"

// Log is the append-only, human-readable record of an attempt.
type Log struct {
	entries []string
	header  bool
}

// Header writes the opening block. Later calls are no-ops.
func (l *Log) Header(q *Quest, team string, start time.Time) {
	if l.header {
		return
	}
	l.header = true
	if team == "" {
		team = "Unknown"
	}
	l.entries = append(l.entries,
		"=== QUEST LOG ===",
		"Quest Name: "+q.Name,
		"Start Time: "+start.Format(logTimeLayout),
		"Team Name: "+team,
		fmt.Sprintf("Total Waypoints: %d", len(q.Waypoints)),
		"",
		"=== WAYPOINT ATTEMPTS ===",
	)
}

// Attempt records one verified capture.
func (l *Log) Attempt(at time.Time, ordinal int, name string, correct bool, similarity float64) {
	verdict := "INCORRECT"
	if correct {
		verdict = "CORRECT"
	}
	l.entries = append(l.entries, fmt.Sprintf("%s - Waypoint %d: %s - %s (Similarity: %.3f)",
		at.Format(logTimeLayout), ordinal, name, verdict, similarity))
}

// Summary is what the completion block reports.
type Summary struct {
	EndedAt   time.Time
	Elapsed   time.Duration
	Completed int
	Skipped   int
	SkipsUsed int
	Total     int
}

func (l *Log) Completion(s Summary) {
	l.entries = append(l.entries,
		"",
		"=== QUEST COMPLETION ===",
		"End Time: "+s.EndedAt.Format(logTimeLayout),
		"Total Time: "+FormatElapsed(s.Elapsed),
		fmt.Sprintf("Completed Waypoints: %d/%d", s.Completed, s.Total),
		fmt.Sprintf("Skipped Waypoints: %d", s.Skipped),
		fmt.Sprintf("Skips Used: %d/%d", s.SkipsUsed, MaxSkips),
	)
}

func (l *Log) Entries() []string {
	return append([]string(nil), l.entries...)
}

func (l *Log) String() string {
	var b strings.Builder
	for _, e := range l.entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	return b.String()
}

func restoreLog(entries []string) *Log {
	return &Log{entries: append([]string(nil), entries...), header: len(entries) > 0}
}

// FormatElapsed renders a duration as minutes and zero-padded seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
