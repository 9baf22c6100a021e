package hunt

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/playperu/odysseus/internal/geo"
)

var (
	fountain = geo.Point{Lat: 21.3000, Lng: -157.8000}
	statue   = geo.Point{Lat: 21.3010, Lng: -157.8000}
	bridge   = geo.Point{Lat: 21.3020, Lng: -157.8000}
	gate     = geo.Point{Lat: 21.3030, Lng: -157.8000}
	tower    = geo.Point{Lat: 21.3040, Lng: -157.8000}
)

func testQuest() Quest {
	return Quest{
		ID:   "2",
		Name: "Harbor Walk",
		Waypoints: []Waypoint{
			{ID: 1, Name: "Fountain", Clue: "Water rises here", Location: fountain, ReferenceImage: "fountain.jpg"},
			{ID: 2, Name: "Statue", Clue: "Bronze and still", Location: statue, ReferenceImage: "statue.jpg", FunFact: "Cast in 1901."},
			{ID: 3, Name: "Bridge", Clue: "Cross the water", Location: bridge, ReferenceImage: "bridge.jpg"},
		},
	}
}

type fakeClock struct{ t time.Time }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func at(p geo.Point) Location { return Location{Point: p} }

func recorder(events *[]Event) NotifierFunc {
	return func(e Event) { *events = append(*events, e) }
}

func countType(events []Event, t EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestAttempt(t *testing.T, q Quest) (*Attempt, *fakeClock, *[]Event) {
	t.Helper()
	clock := newClock()
	var events []Event
	a, err := NewAttempt(q, Options{Team: "Otters", Now: clock.Now, Notifier: recorder(&events)})
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	return a, clock, &events
}

// verify runs a full capture of the current target with the given score.
func verify(t *testing.T, a *Attempt, id int, score float64) {
	t.Helper()
	if err := a.CheckCapture(id); err != nil {
		t.Fatalf("check capture %d: %v", id, err)
	}
	sub, err := a.BeginCapture(id, []byte("jpeg"))
	if err != nil {
		t.Fatalf("begin capture %d: %v", id, err)
	}
	if !a.ResolveCapture(sub, score, nil) {
		t.Fatalf("resolve capture %d was discarded", id)
	}
}

func targetID(t *testing.T, a *Attempt) int {
	t.Helper()
	target, ok := a.Tracker().Target()
	if !ok {
		t.Fatal("expected a target")
	}
	return target.Waypoint.ID
}

func TestNewAttemptStartsFresh(t *testing.T) {
	a, _, _ := newTestAttempt(t, testQuest())
	p := a.Progress()
	if len(p.Completed()) != 0 || len(p.Skipped()) != 0 || p.SkipsUsed() != 0 {
		t.Errorf("progress = %v %v %d, want empty", p.Completed(), p.Skipped(), p.SkipsUsed())
	}
	want := []string{
		"=== QUEST LOG ===",
		"Quest Name: Harbor Walk",
		"Start Time: 2025-06-01 10:00:00",
		"Team Name: Otters",
		"Total Waypoints: 3",
		"",
		"=== WAYPOINT ATTEMPTS ===",
	}
	if got := a.log.Entries(); !slices.Equal(got, want) {
		t.Errorf("log header = %q, want %q", got, want)
	}
}

func TestNewAttemptRejectsInvalidQuest(t *testing.T) {
	tests := []struct {
		name  string
		quest Quest
	}{
		{"no waypoints", Quest{ID: "1", Name: "Empty"}},
		{"duplicate ids", Quest{ID: "1", Waypoints: []Waypoint{
			{ID: 1, ReferenceImage: "a"}, {ID: 1, ReferenceImage: "b"},
		}}},
		{"missing reference", Quest{ID: "1", Waypoints: []Waypoint{{ID: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAttempt(tt.quest, Options{})
			if !errors.Is(err, ErrInvalidQuest) {
				t.Errorf("err = %v, want ErrInvalidQuest", err)
			}
		})
	}
}

func TestCorrectCaptureAdvancesTarget(t *testing.T) {
	a, _, events := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))

	if id := targetID(t, a); id != 1 {
		t.Fatalf("target = %d, want 1", id)
	}
	verify(t, a, 1, 0.9)

	if got := a.Progress().Completed(); !slices.Equal(got, []int{1}) {
		t.Errorf("completed = %v, want [1]", got)
	}
	if id := targetID(t, a); id != 2 {
		t.Errorf("target = %d, want 2", id)
	}
	c, _ := a.Progress().Capture(1)
	if c.Outcome != OutcomeCorrect || c.Pending {
		t.Errorf("capture = %+v, want correct and settled", c)
	}

	var notice *Notice
	for _, e := range *events {
		if e.Type == EventNotice {
			notice = e.Notice
		}
	}
	if notice == nil || notice.Message != MsgCorrectNext || !notice.AutoDismiss {
		t.Errorf("notice = %+v, want transient %q", notice, MsgCorrectNext)
	}
}

func TestIncorrectCaptureKeepsTarget(t *testing.T) {
	for _, score := range []float64{0.4, SimilarityThreshold} {
		a, _, events := newTestAttempt(t, testQuest())
		a.UpdateLocation(at(fountain))
		verify(t, a, 1, score)

		if got := a.Progress().Completed(); len(got) != 0 {
			t.Errorf("score %v: completed = %v, want empty", score, got)
		}
		if id := targetID(t, a); id != 1 {
			t.Errorf("score %v: target = %d, want 1", score, id)
		}
		c, _ := a.Progress().Capture(1)
		if c.Outcome != OutcomeIncorrect {
			t.Errorf("score %v: outcome = %v, want incorrect", score, c.Outcome)
		}
		last := (*events)[len(*events)-1]
		if last.Notice == nil || last.Notice.Message != MsgIncorrect {
			t.Errorf("score %v: last event = %+v, want incorrect notice", score, last)
		}
	}
}

func TestRetakeAfterIncorrect(t *testing.T) {
	a, _, _ := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))
	verify(t, a, 1, 0.2)
	verify(t, a, 1, 0.95)

	c, _ := a.Progress().Capture(1)
	if c.Outcome != OutcomeCorrect || c.Seq != 2 {
		t.Errorf("capture = %+v, want correct at seq 2", c)
	}
	want := []string{
		"2025-06-01 10:00:00 - Waypoint 1: Fountain - INCORRECT (Similarity: 0.200)",
		"2025-06-01 10:00:00 - Waypoint 1: Fountain - CORRECT (Similarity: 0.950)",
	}
	entries := a.log.Entries()
	if got := entries[len(entries)-2:]; !slices.Equal(got, want) {
		t.Errorf("log tail = %q, want %q", got, want)
	}
}

func TestFunFactNeedsAcknowledgement(t *testing.T) {
	a, _, events := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(statue))
	verify(t, a, 2, 0.8)

	last := (*events)[len(*events)-1]
	for i := len(*events) - 1; i >= 0; i-- {
		if (*events)[i].Type == EventNotice {
			last = (*events)[i]
			break
		}
	}
	want := MsgCorrectNext + "\n\nFun Fact:\nCast in 1901."
	if last.Notice == nil || last.Notice.Message != want || last.Notice.AutoDismiss {
		t.Errorf("notice = %+v, want sticky fun fact", last.Notice)
	}
}

func TestStaleAnswerDiscarded(t *testing.T) {
	a, _, _ := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))

	first, err := a.BeginCapture(1, []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.BeginCapture(1, []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if a.ResolveCapture(first, 0.99, nil) {
		t.Error("stale answer was applied")
	}
	if a.Progress().IsCompleted(1) {
		t.Error("stale answer completed the waypoint")
	}
	if !a.ResolveCapture(second, 0.1, nil) {
		t.Error("current answer was discarded")
	}
	c, _ := a.Progress().Capture(1)
	if string(c.Photo) != "two" || c.Outcome != OutcomeIncorrect {
		t.Errorf("capture = %q %v, want latest photo incorrect", c.Photo, c.Outcome)
	}
}

func TestOracleFailureLeavesOutcomeUnknown(t *testing.T) {
	a, _, events := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))
	sub, err := a.BeginCapture(1, []byte("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if !a.ResolveCapture(sub, 0, errors.New("connection refused")) {
		t.Fatal("failure was discarded")
	}
	c, ok := a.Progress().Capture(1)
	if !ok || c.Outcome != OutcomeUnknown || c.Pending || string(c.Photo) != "jpeg" {
		t.Errorf("capture = %+v, want unknown with photo kept", c)
	}
	if a.Progress().IsCompleted(1) {
		t.Error("failure completed the waypoint")
	}
	last := (*events)[len(*events)-1]
	if last.Notice == nil || last.Notice.Message != MsgVerifyFailed {
		t.Errorf("last event = %+v, want retry notice", last)
	}
	if err := a.CheckCapture(1); err != nil {
		t.Errorf("retry blocked: %v", err)
	}
}

func TestNonFiniteScoreIsAFailedCheck(t *testing.T) {
	for _, score := range []float64{math.NaN(), math.Inf(1)} {
		a, _, events := newTestAttempt(t, testQuest())
		a.UpdateLocation(at(fountain))
		sub, err := a.BeginCapture(1, []byte("jpeg"))
		if err != nil {
			t.Fatal(err)
		}
		a.ResolveCapture(sub, score, nil)

		c, _ := a.Progress().Capture(1)
		if c.Outcome != OutcomeUnknown || c.Similarity != nil || a.Progress().IsCompleted(1) {
			t.Errorf("score %v: capture = %+v", score, c)
		}
		for _, e := range *events {
			if _, err := json.Marshal(e); err != nil {
				t.Errorf("score %v: event %+v does not encode: %v", score, e, err)
			}
		}
	}
}

func TestCheckCapture(t *testing.T) {
	sixtyFeetSouth := geo.Point{Lat: fountain.Lat - 0.000165, Lng: fountain.Lng}

	a, _, _ := newTestAttempt(t, testQuest())
	if err := a.CheckCapture(1); !errors.Is(err, ErrNotTarget) {
		t.Errorf("no location: err = %v, want ErrNotTarget", err)
	}

	a.UpdateLocation(at(sixtyFeetSouth))
	if d := geo.DistanceFeet(sixtyFeetSouth, fountain); d < 55 || d > 65 {
		t.Fatalf("distance = %.1f, want about 60 ft", d)
	}
	if a.Tracker().WithinRange() {
		t.Error("within range at 60 ft")
	}
	if err := a.CheckCapture(1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("60 ft: err = %v, want ErrOutOfRange", err)
	}
	if err := a.CheckCapture(2); !errors.Is(err, ErrNotTarget) {
		t.Errorf("other waypoint: err = %v, want ErrNotTarget", err)
	}
	if err := a.CheckCapture(9); !errors.Is(err, ErrUnknownWaypoint) {
		t.Errorf("unknown: err = %v, want ErrUnknownWaypoint", err)
	}

	a.SetDebug(true)
	if !a.Tracker().WithinRange() {
		t.Error("debug override did not force range")
	}
	if err := a.CheckCapture(1); err != nil {
		t.Errorf("debug: err = %v", err)
	}

	if _, err := a.BeginCapture(1, []byte("jpeg")); err != nil {
		t.Fatal(err)
	}
	if err := a.CheckCapture(1); !errors.Is(err, ErrCapturePending) {
		t.Errorf("pending: err = %v, want ErrCapturePending", err)
	}
	if _, err := a.BeginCapture(1, nil); !errors.Is(err, ErrEmptyPhoto) {
		t.Errorf("empty photo: err = %v, want ErrEmptyPhoto", err)
	}
}

func TestSkipThenVerifyAllowsFinishEarly(t *testing.T) {
	a, clock, events := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))

	for _, id := range []int{1, 2} {
		if err := a.RequestSkip(id); err != nil {
			t.Fatalf("request skip %d: %v", id, err)
		}
		if err := a.ConfirmSkip(); err != nil {
			t.Fatalf("confirm skip %d: %v", id, err)
		}
	}
	if id := targetID(t, a); id != 3 {
		t.Fatalf("target = %d, want 3", id)
	}
	if a.CanFinishEarly() {
		t.Error("finish early allowed at 2/3")
	}

	a.UpdateLocation(at(bridge))
	verify(t, a, 3, 0.9)

	p := a.Progress()
	if !slices.Equal(p.Completed(), []int{3}) || !slices.Equal(p.Skipped(), []int{1, 2}) || p.SkipsUsed() != 2 {
		t.Fatalf("progress = %v %v %d", p.Completed(), p.Skipped(), p.SkipsUsed())
	}
	if a.IsComplete() || a.Ended() {
		t.Fatal("skips must not complete the quest")
	}
	if !a.CanFinishEarly() {
		t.Fatal("finish early not permitted at 3/3 resolved")
	}

	clock.Advance(12*time.Minute + 5*time.Second)
	if err := a.ConfirmFinishEarly(); !errors.Is(err, ErrNoPendingConfirmation) {
		t.Errorf("unarmed confirm: err = %v", err)
	}
	if err := a.RequestFinishEarly(); err != nil {
		t.Fatal(err)
	}
	if err := a.ConfirmFinishEarly(); err != nil {
		t.Fatal(err)
	}

	if !a.Ended() {
		t.Fatal("attempt did not end")
	}
	c, ok := a.Completion()
	if !ok || !c.Early || c.Completed != 1 || c.Skipped != 2 || c.SkipsUsed != 2 || c.ElapsedMS != 725000 {
		t.Errorf("completion = %+v", c)
	}
	if n := countType(*events, EventCompleted); n != 1 {
		t.Errorf("completed events = %d, want 1", n)
	}
	entries := a.log.Entries()
	wantTail := []string{
		"",
		"=== QUEST COMPLETION ===",
		"End Time: 2025-06-01 10:12:05",
		"Total Time: 12:05",
		"Completed Waypoints: 1/3",
		"Skipped Waypoints: 2",
		"Skips Used: 2/3",
	}
	if got := entries[len(entries)-len(wantTail):]; !slices.Equal(got, wantTail) {
		t.Errorf("completion block = %q, want %q", got, wantTail)
	}
}

func TestFinishEarlyBelowThreshold(t *testing.T) {
	a, _, events := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))
	verify(t, a, 1, 0.9)

	if err := a.RequestFinishEarly(); !errors.Is(err, ErrBelowFinishThreshold) {
		t.Fatalf("err = %v, want ErrBelowFinishThreshold", err)
	}
	last := (*events)[len(*events)-1]
	if last.Notice == nil || last.Notice.Message != MsgFinishBelowLimit {
		t.Errorf("notice = %+v", last.Notice)
	}
	if err := a.ConfirmFinishEarly(); !errors.Is(err, ErrNoPendingConfirmation) {
		t.Errorf("confirm err = %v", err)
	}
	if a.Ended() || len(a.Progress().Skipped()) != 0 {
		t.Error("rejected finish early changed progress")
	}
}

func TestFinishEarlyForfeitsRemaining(t *testing.T) {
	q := testQuest()
	q.Waypoints = append(q.Waypoints,
		Waypoint{ID: 4, Name: "Gate", Location: gate, ReferenceImage: "gate.jpg"},
		Waypoint{ID: 5, Name: "Tower", Location: tower, ReferenceImage: "tower.jpg"},
	)
	a, _, _ := newTestAttempt(t, q)
	for _, w := range q.Waypoints[:4] {
		a.UpdateLocation(at(w.Location))
		verify(t, a, w.ID, 0.9)
	}
	if err := a.RequestFinishEarly(); err != nil {
		t.Fatal(err)
	}
	if err := a.ConfirmFinishEarly(); err != nil {
		t.Fatal(err)
	}
	p := a.Progress()
	if p.ResolvedCount() != 5 || !slices.Equal(p.Skipped(), []int{5}) || p.SkipsUsed() != 0 {
		t.Errorf("progress = %v %v %d", p.Completed(), p.Skipped(), p.SkipsUsed())
	}
}

func TestSkipLimit(t *testing.T) {
	q := testQuest()
	q.Waypoints = append(q.Waypoints,
		Waypoint{ID: 4, Name: "Gate", Location: gate, ReferenceImage: "gate.jpg"},
		Waypoint{ID: 5, Name: "Tower", Location: tower, ReferenceImage: "tower.jpg"},
	)
	a, _, _ := newTestAttempt(t, q)
	a.UpdateLocation(at(fountain))

	for i := 0; i < MaxSkips; i++ {
		id := targetID(t, a)
		if err := a.RequestSkip(id); err != nil {
			t.Fatalf("skip %d: %v", i+1, err)
		}
		if err := a.ConfirmSkip(); err != nil {
			t.Fatalf("confirm %d: %v", i+1, err)
		}
		if got := a.Progress().SkipsUsed(); got != len(a.Progress().Skipped()) {
			t.Fatalf("skipsUsed %d != |skipped| %d", got, len(a.Progress().Skipped()))
		}
	}
	if err := a.RequestSkip(targetID(t, a)); !errors.Is(err, ErrNoSkipsLeft) {
		t.Errorf("fourth skip: err = %v, want ErrNoSkipsLeft", err)
	}
	if got := a.Progress().SkipsUsed(); got != MaxSkips {
		t.Errorf("skipsUsed = %d", got)
	}
}

func TestSkipRules(t *testing.T) {
	a, _, _ := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))

	if err := a.ConfirmSkip(); !errors.Is(err, ErrNoPendingConfirmation) {
		t.Errorf("confirm without request: %v", err)
	}
	if err := a.RequestSkip(2); !errors.Is(err, ErrNotTarget) {
		t.Errorf("skip non-target: %v", err)
	}
	if err := a.RequestSkip(1); err != nil {
		t.Fatal(err)
	}
	a.CancelSkip()
	if err := a.ConfirmSkip(); !errors.Is(err, ErrNoPendingConfirmation) {
		t.Errorf("confirm after cancel: %v", err)
	}

	verify(t, a, 1, 0.9)
	if err := a.RequestSkip(1); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("skip completed: %v", err)
	}
}

func TestReturnToSkipped(t *testing.T) {
	a, _, _ := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))
	if err := a.RequestSkip(1); err != nil {
		t.Fatal(err)
	}
	if err := a.ConfirmSkip(); err != nil {
		t.Fatal(err)
	}
	if id := targetID(t, a); id != 2 {
		t.Fatalf("target = %d, want 2", id)
	}

	if err := a.ReturnToSkipped(2); !errors.Is(err, ErrNotSkipped) {
		t.Errorf("return unskipped: %v", err)
	}
	if err := a.ReturnToSkipped(1); err != nil {
		t.Fatal(err)
	}
	if a.Progress().SkipsUsed() != 0 || a.Progress().IsSkipped(1) {
		t.Error("return did not refund the skip")
	}
	if id := targetID(t, a); id != 1 {
		t.Errorf("target = %d, want 1", id)
	}
}

func TestCompletionFiresOnce(t *testing.T) {
	a, _, events := newTestAttempt(t, testQuest())
	for _, p := range []geo.Point{fountain, statue, bridge} {
		a.UpdateLocation(at(p))
		verify(t, a, targetID(t, a), 0.99)
	}
	if !a.IsComplete() || !a.Ended() {
		t.Fatal("quest not complete")
	}
	a.UpdateLocation(at(fountain))
	a.SetDebug(true)
	if err := a.RequestFinishEarly(); !errors.Is(err, ErrAttemptEnded) {
		t.Errorf("finish after end: %v", err)
	}

	if n := countType(*events, EventCompleted); n != 1 {
		t.Errorf("completed events = %d, want 1", n)
	}
	if n := strings.Count(a.Log(), "=== QUEST COMPLETION ==="); n != 1 {
		t.Errorf("completion blocks = %d, want 1", n)
	}
	var final *Notice
	for _, e := range *events {
		if e.Type == EventNotice {
			final = e.Notice
		}
	}
	if final == nil || final.Message != MsgCorrectFinal {
		t.Errorf("final notice = %+v", final)
	}
}

func TestAnswerAfterEndDiscarded(t *testing.T) {
	q := testQuest()
	q.Waypoints = q.Waypoints[:1]
	a, _, _ := newTestAttempt(t, q)
	a.SetDebug(true)
	a.UpdateLocation(at(bridge))

	sub, err := a.BeginCapture(1, []byte("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	a.progress.forfeit(1)
	a.finish(true)

	if a.ResolveCapture(sub, 0.99, nil) {
		t.Error("answer applied after end")
	}
	if a.Progress().IsCompleted(1) {
		t.Error("completed after end")
	}
}

func TestEnteredRangeSignalFiresOnEdge(t *testing.T) {
	a, _, events := newTestAttempt(t, testQuest())
	entered := func() int {
		n := 0
		for _, e := range *events {
			if e.Signal == SignalEnteredRange {
				n++
			}
		}
		return n
	}
	far := geo.Point{Lat: 21.2990, Lng: -157.8000}
	near := geo.Point{Lat: 21.30001, Lng: -157.8000}

	a.UpdateLocation(at(far))
	a.UpdateLocation(at(near))
	a.UpdateLocation(at(fountain))
	a.UpdateLocation(at(near))
	if got := entered(); got != 1 {
		t.Errorf("after approach: %d signals, want 1", got)
	}
	a.UpdateLocation(at(far))
	a.UpdateLocation(at(near))
	if got := entered(); got != 2 {
		t.Errorf("after second approach: %d signals, want 2", got)
	}
}

func TestLocationFailure(t *testing.T) {
	a, _, events := newTestAttempt(t, testQuest())
	a.UpdateLocation(at(fountain))
	a.LocationFailed("permission denied")

	if _, ok := a.Tracker().Target(); ok {
		t.Error("target defined without location")
	}
	if err := a.Tracker().Err(); !errors.Is(err, ErrLocationUnavailable) {
		t.Errorf("err = %v", err)
	}
	if n := countType(*events, EventLocationError); n != 1 {
		t.Errorf("location error events = %d", n)
	}
	st := a.Status()
	if st.Location != nil || st.Target != nil || st.LocationError == "" {
		t.Errorf("status = %+v", st)
	}

	a.UpdateLocation(at(fountain))
	if a.Tracker().Err() != nil {
		t.Error("update did not clear error")
	}
}

func TestStatus(t *testing.T) {
	a, clock, _ := newTestAttempt(t, testQuest())
	a.UpdateLocation(Location{Point: geo.Point{Lat: 21.2995, Lng: -157.8000}})
	clock.Advance(90 * time.Second)

	st := a.Status()
	if st.Target == nil || st.Target.WaypointID != 1 || st.Target.Direction != "N" || st.Target.Clue != "Water rises here" {
		t.Fatalf("target = %+v", st.Target)
	}
	if st.ElapsedMS != 90000 || st.SkipsLeft != MaxSkips || st.Total != 3 || st.WithinRange {
		t.Errorf("status = %+v", st)
	}
	if len(st.Waypoints) != 3 || st.Waypoints[0].State != "open" || st.Waypoints[0].Outcome != OutcomeUnknown {
		t.Errorf("waypoints = %+v", st.Waypoints)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	a, clock, _ := newTestAttempt(t, testQuest())
	a.Interact()
	a.UpdateLocation(at(fountain))
	if err := a.RequestSkip(1); err != nil {
		t.Fatal(err)
	}
	if err := a.ConfirmSkip(); err != nil {
		t.Fatal(err)
	}
	a.UpdateLocation(at(statue))
	verify(t, a, 2, 0.3)
	if _, err := a.BeginCapture(2, []byte("retake")); err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(a.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	b, err := RestoreAttempt(snap, Options{Now: clock.Now})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	p := b.Progress()
	if !slices.Equal(p.Skipped(), []int{1}) || p.SkipsUsed() != 1 || len(p.Completed()) != 0 {
		t.Errorf("progress = %v %v %d", p.Completed(), p.Skipped(), p.SkipsUsed())
	}
	c, ok := p.Capture(2)
	if !ok || c.Pending || c.Outcome != OutcomeUnknown || string(c.Photo) != "retake" || c.Seq != 2 {
		t.Errorf("capture = %+v", c)
	}
	if b.Log() != a.Log() {
		t.Errorf("log changed across restore:\n%s\nvs\n%s", b.Log(), a.Log())
	}
	if !b.feedback.Interacted() {
		t.Error("interaction not restored")
	}
	if _, ok := b.Tracker().Location(); ok {
		t.Error("location restored")
	}
}

func TestRestoreKeepsEarlyFinishForfeits(t *testing.T) {
	a, _, _ := newTestAttempt(t, testQuest())
	a.progress.complete(1)
	a.progress.complete(2)
	a.progress.forfeit(3)
	a.finish(true)

	b, err := RestoreAttempt(a.Snapshot(), Options{})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if p := b.Progress(); !slices.Equal(p.Skipped(), []int{3}) || p.SkipsUsed() != 0 || !p.Ended() {
		t.Errorf("progress = %v %d ended=%v", p.Skipped(), p.SkipsUsed(), p.Ended())
	}
}

func TestReturnNeverRefundsUnspentSkips(t *testing.T) {
	p := NewProgress("Otters", time.Now())
	p.skipped[1] = struct{}{}
	p.unskip(1)
	p.unskip(2)
	if p.SkipsUsed() != 0 || p.IsSkipped(1) {
		t.Errorf("skips used = %d, skipped = %v", p.SkipsUsed(), p.Skipped())
	}
}

func TestRestoreRejectsCorruptSnapshot(t *testing.T) {
	a, _, _ := newTestAttempt(t, testQuest())
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"overlap", func(s *Snapshot) {
			s.Progress.Completed = []int{1}
			s.Progress.Skipped = []int{1}
			s.Progress.SkipsUsed = 1
		}},
		{"unknown waypoint", func(s *Snapshot) { s.Progress.Completed = []int{42} }},
		{"too many skips", func(s *Snapshot) { s.Progress.SkipsUsed = 4 }},
		{"skips without skipped", func(s *Snapshot) { s.Progress.SkipsUsed = 1 }},
		{"skipped without skips", func(s *Snapshot) { s.Progress.Skipped = []int{1, 2} }},
		{"invalid quest", func(s *Snapshot) { s.Quest.Waypoints = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := a.Snapshot()
			tt.mutate(&snap)
			if _, err := RestoreAttempt(snap, Options{}); !errors.Is(err, ErrCorruptSnapshot) {
				t.Errorf("err = %v, want ErrCorruptSnapshot", err)
			}
		})
	}
}
