package hunt

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/odysseus/internal/geo"
)

// User-facing messages.
const (
	MsgCorrectNext      = "Correct!\nMoving to next waypoint!"
	MsgCorrectFinal     = "Correct!\nCongratulations! You've completed the quest!"
	MsgIncorrect        = "Incorrect!\nTry zooming in."
	MsgVerifyFailed     = "Could not check your photo. Please try again."
	MsgSkipped          = "Waypoint skipped!"
	MsgReturned         = "Returned to skipped waypoint."
	MsgFinishBelowLimit = "You need at least 80% completion to finish early."
)

type Options struct {
	Team     string
	Platform Platform
	Notifier Notifier
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Notifier == nil {
		o.Notifier = discard{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Platform == "" {
		o.Platform = PlatformOther
	}
	return o
}

// Attempt is one participant's play-through of a quest. It is a synchronous
// state machine and is not safe for concurrent use; Session serialises
// access to it.
type Attempt struct {
	quest    Quest
	progress *Progress
	tracker  *Tracker
	log      *Log
	feedback *Feedback
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger

	pendingSkip *int
	finishArmed bool
	early       bool
}

// Submission is a photo on its way to the similarity oracle.
type Submission struct {
	ID         string
	WaypointID int
	Seq        int
	Photo      []byte
	Reference  string
}

func NewAttempt(q Quest, opts Options) (*Attempt, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	a := newAttempt(q.clone(), opts)
	a.progress = NewProgress(opts.Team, opts.Now())
	a.tracker = NewTracker(&a.quest, a.progress)
	a.log = &Log{}
	a.log.Header(&a.quest, opts.Team, a.progress.StartedAt)
	return a, nil
}

func newAttempt(q Quest, opts Options) *Attempt {
	return &Attempt{
		quest:    q,
		feedback: NewFeedback(opts.Platform),
		notifier: opts.Notifier,
		now:      opts.Now,
		logger:   opts.Logger.With("quest", q.ID),
	}
}

// Snapshot is everything needed to resume an attempt later.
type Snapshot struct {
	Quest      Quest            `json:"quest"`
	Progress   ProgressSnapshot `json:"progress"`
	Log        []string         `json:"log"`
	Debug      bool             `json:"debug"`
	Early      bool             `json:"early,omitempty"`
	Platform   Platform         `json:"platform"`
	Interacted bool             `json:"interacted,omitempty"`
}

func (a *Attempt) Snapshot() Snapshot {
	return Snapshot{
		Quest:      a.quest.clone(),
		Progress:   a.progress.snapshot(),
		Log:        a.log.Entries(),
		Debug:      a.tracker.Debug(),
		Early:      a.early,
		Platform:   a.feedback.platform,
		Interacted: a.feedback.Interacted(),
	}
}

// RestoreAttempt rebuilds an attempt from a snapshot. Live location is not
// part of a snapshot; the device reports it again.
func RestoreAttempt(s Snapshot, opts Options) (*Attempt, error) {
	if err := s.Quest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if opts.Platform == "" {
		opts.Platform = s.Platform
	}
	opts = opts.withDefaults()
	a := newAttempt(s.Quest.clone(), opts)
	p, err := restoreProgress(&a.quest, s.Progress)
	if err != nil {
		return nil, err
	}
	a.progress = p
	a.tracker = NewTracker(&a.quest, a.progress)
	a.tracker.SetDebug(s.Debug)
	a.log = restoreLog(s.Log)
	a.log.Header(&a.quest, p.Team, p.StartedAt)
	a.early = s.Early
	if s.Interacted {
		a.feedback.Interact()
	}
	return a, nil
}

func (a *Attempt) Quest() Quest        { return a.quest.clone() }
func (a *Attempt) Progress() *Progress { return a.progress }
func (a *Attempt) Tracker() *Tracker   { return a.tracker }
func (a *Attempt) Log() string         { return a.log.String() }
func (a *Attempt) Ended() bool         { return a.progress.Ended() }

// IsComplete is true once every waypoint has been verified. Skips never count.
func (a *Attempt) IsComplete() bool {
	return len(a.progress.completed) == len(a.quest.Waypoints)
}

func (a *Attempt) UpdateLocation(loc Location) {
	a.tracker.Update(loc)
	a.refresh()
}

func (a *Attempt) LocationFailed(reason string) {
	a.tracker.Fail(reason)
	a.tracker.Refresh()
	a.emit(Event{Type: EventLocationError, Error: a.tracker.Err().Error()})
}

func (a *Attempt) SetDebug(on bool) {
	a.tracker.SetDebug(on)
	a.logger.Info("debug override", "enabled", on)
	a.refresh()
}

func (a *Attempt) Interact() { a.feedback.Interact() }

// CheckCapture enforces the preconditions the capture screen relies on:
// the waypoint is the current target, the participant is in range and no
// earlier photo for it is still being checked.
func (a *Attempt) CheckCapture(id int) error {
	if err := a.checkOpen(id); err != nil {
		return err
	}
	target, ok := a.tracker.Target()
	if !ok || target.Waypoint.ID != id {
		return ErrNotTarget
	}
	if !a.tracker.WithinRange() {
		return ErrOutOfRange
	}
	if c, ok := a.progress.captures[id]; ok && c.Pending {
		return ErrCapturePending
	}
	return nil
}

// BeginCapture stores the photo and returns what must be sent to the oracle.
func (a *Attempt) BeginCapture(id int, photo []byte) (Submission, error) {
	if err := a.checkOpen(id); err != nil {
		return Submission{}, err
	}
	if len(photo) == 0 {
		return Submission{}, ErrEmptyPhoto
	}
	w, _, _ := a.quest.Lookup(id)
	seq := a.progress.storePhoto(id, photo)
	sub := Submission{
		ID:         uuid.NewString(),
		WaypointID: id,
		Seq:        seq,
		Photo:      photo,
		Reference:  w.ReferenceImage,
	}
	a.logger.Info("capture submitted", "waypoint", id, "seq", seq, "submission", sub.ID)
	return sub, nil
}

// ResolveCapture applies an oracle answer. It returns false when the answer
// was discarded as stale.
func (a *Attempt) ResolveCapture(sub Submission, similarity float64, err error) bool {
	if a.progress.Ended() || a.progress.IsCompleted(sub.WaypointID) {
		return false
	}
	c, ok := a.progress.captures[sub.WaypointID]
	if !ok || c.Seq != sub.Seq || !c.Pending {
		return false
	}
	c.Pending = false

	if err == nil && (math.IsNaN(similarity) || math.IsInf(similarity, 0)) {
		err = fmt.Errorf("similarity %v is not a number", similarity)
	}
	if err != nil {
		a.logger.Warn("similarity check failed", "waypoint", sub.WaypointID, "submission", sub.ID, "error", err)
		a.notice(NoticeError, MsgVerifyFailed, true)
		return true
	}

	w, ordinal, _ := a.quest.Lookup(sub.WaypointID)
	correct := similarity > SimilarityThreshold
	score := similarity
	c.Similarity = &score
	a.log.Attempt(a.now(), ordinal, w.Name, correct, similarity)
	a.logger.Info("capture verified", "waypoint", w.ID, "similarity", similarity, "correct", correct)

	if !correct {
		c.Outcome = OutcomeIncorrect
		a.emit(Event{Type: EventVerified, WaypointID: w.ID, Outcome: OutcomeIncorrect, Similarity: &score})
		a.signal(SignalIncorrect, w.ID)
		a.notice(NoticeError, MsgIncorrect, true)
		return true
	}

	c.Outcome = OutcomeCorrect
	a.progress.complete(w.ID)
	if a.pendingSkip != nil && *a.pendingSkip == w.ID {
		a.pendingSkip = nil
	}
	a.emit(Event{Type: EventVerified, WaypointID: w.ID, Outcome: OutcomeCorrect, Similarity: &score})
	a.signal(SignalCorrect, w.ID)

	msg := MsgCorrectNext
	if a.IsComplete() {
		msg = MsgCorrectFinal
	}
	if w.FunFact != "" {
		a.notice(NoticeSuccess, msg+"\n\nFun Fact:\n"+w.FunFact, false)
	} else {
		a.notice(NoticeSuccess, msg, true)
	}
	a.refresh()
	return true
}

// RequestSkip arms a skip of the current target; ConfirmSkip applies it.
func (a *Attempt) RequestSkip(id int) error {
	if err := a.checkSkip(id); err != nil {
		return err
	}
	a.pendingSkip = &id
	return nil
}

func (a *Attempt) ConfirmSkip() error {
	if a.pendingSkip == nil {
		return ErrNoPendingConfirmation
	}
	id := *a.pendingSkip
	a.pendingSkip = nil
	if err := a.checkSkip(id); err != nil {
		return err
	}
	a.progress.skip(id)
	a.logger.Info("waypoint skipped", "waypoint", id, "skips_used", a.progress.skipsUsed)
	a.notice(NoticeInfo, MsgSkipped, true)
	a.refresh()
	return nil
}

func (a *Attempt) CancelSkip() { a.pendingSkip = nil }

// ReturnToSkipped makes a skipped waypoint eligible again and refunds the skip.
func (a *Attempt) ReturnToSkipped(id int) error {
	if a.progress.Ended() {
		return ErrAttemptEnded
	}
	if _, _, ok := a.quest.Lookup(id); !ok {
		return ErrUnknownWaypoint
	}
	if !a.progress.IsSkipped(id) {
		return ErrNotSkipped
	}
	a.progress.unskip(id)
	a.logger.Info("returned to waypoint", "waypoint", id, "skips_used", a.progress.skipsUsed)
	a.notice(NoticeInfo, MsgReturned, true)
	a.refresh()
	return nil
}

// CanFinishEarly reports whether at least 80% of waypoints are resolved.
func (a *Attempt) CanFinishEarly() bool {
	if a.progress.Ended() {
		return false
	}
	ratio := float64(a.progress.ResolvedCount()) / float64(len(a.quest.Waypoints))
	return ratio >= EarlyFinishRatio
}

func (a *Attempt) RequestFinishEarly() error {
	if a.progress.Ended() {
		return ErrAttemptEnded
	}
	if !a.CanFinishEarly() {
		a.notice(NoticeError, MsgFinishBelowLimit, true)
		return ErrBelowFinishThreshold
	}
	a.finishArmed = true
	return nil
}

// ConfirmFinishEarly forfeits every unresolved waypoint and ends the attempt.
func (a *Attempt) ConfirmFinishEarly() error {
	if !a.finishArmed {
		return ErrNoPendingConfirmation
	}
	a.finishArmed = false
	if a.progress.Ended() {
		return ErrAttemptEnded
	}
	if !a.CanFinishEarly() {
		return ErrBelowFinishThreshold
	}
	for _, w := range a.quest.Waypoints {
		if !a.progress.Resolved(w.ID) {
			a.progress.forfeit(w.ID)
		}
	}
	a.finish(true)
	return nil
}

func (a *Attempt) CancelFinishEarly() { a.finishArmed = false }

// Completion describes how the attempt ended.
func (a *Attempt) Completion() (Completion, bool) {
	if !a.progress.Ended() {
		return Completion{}, false
	}
	end := *a.progress.EndedAt
	return Completion{
		QuestID:   a.quest.ID,
		Team:      a.progress.Team,
		EndedAt:   end,
		ElapsedMS: end.Sub(a.progress.StartedAt).Milliseconds(),
		Completed: len(a.progress.completed),
		Skipped:   len(a.progress.skipped),
		SkipsUsed: a.progress.skipsUsed,
		Total:     len(a.quest.Waypoints),
		Early:     a.early,
	}, true
}

func (a *Attempt) checkOpen(id int) error {
	if a.progress.Ended() {
		return ErrAttemptEnded
	}
	if _, _, ok := a.quest.Lookup(id); !ok {
		return ErrUnknownWaypoint
	}
	if a.progress.Resolved(id) {
		return ErrAlreadyResolved
	}
	return nil
}

func (a *Attempt) checkSkip(id int) error {
	if err := a.checkOpen(id); err != nil {
		return err
	}
	if a.progress.skipsUsed >= MaxSkips {
		return ErrNoSkipsLeft
	}
	target, ok := a.tracker.Target()
	if !ok || target.Waypoint.ID != id {
		return ErrNotTarget
	}
	if c, ok := a.progress.captures[id]; ok && c.Pending {
		return ErrCapturePending
	}
	return nil
}

// refresh runs after every event: range edge detection, then completion.
func (a *Attempt) refresh() {
	if a.progress.Ended() {
		return
	}
	if a.tracker.Refresh() {
		id := 0
		if t, ok := a.tracker.Target(); ok {
			id = t.Waypoint.ID
		}
		a.signal(SignalEnteredRange, id)
	}
	if a.IsComplete() {
		a.finish(false)
	}
}

// finish ends the attempt. It is a no-op once EndedAt is set.
func (a *Attempt) finish(early bool) {
	if a.progress.Ended() {
		return
	}
	end := a.now()
	a.progress.EndedAt = &end
	a.early = early
	a.pendingSkip = nil
	a.finishArmed = false

	c, _ := a.Completion()
	a.log.Completion(Summary{
		EndedAt:   end,
		Elapsed:   end.Sub(a.progress.StartedAt),
		Completed: c.Completed,
		Skipped:   c.Skipped,
		SkipsUsed: c.SkipsUsed,
		Total:     c.Total,
	})
	a.logger.Info("attempt completed", "completed", c.Completed, "skipped", c.Skipped, "early", early, "elapsed_ms", c.ElapsedMS)
	a.emit(Event{Type: EventCompleted, Completion: &c})
	a.signal(SignalCompleted, 0)
}

func (a *Attempt) signal(s Signal, waypointID int) {
	a.emit(Event{Type: EventSignal, Signal: s, WaypointID: waypointID, Vibrate: a.feedback.Pattern(s)})
}

func (a *Attempt) notice(kind NoticeKind, msg string, autoDismiss bool) {
	a.emit(Event{Type: EventNotice, Notice: &Notice{Kind: kind, Message: msg, AutoDismiss: autoDismiss}})
}

func (a *Attempt) emit(e Event) { a.notifier.Notify(e) }

// WaypointStatus is one row of the status report.
type WaypointStatus struct {
	ID         int       `json:"id"`
	Ordinal    int       `json:"ordinal"`
	Name       string    `json:"name"`
	Location   geo.Point `json:"location"`
	State      string    `json:"state"`
	Outcome    Outcome   `json:"outcome"`
	Similarity *float64  `json:"similarity,omitempty"`
	Pending    bool      `json:"pending,omitempty"`
	HasPhoto   bool      `json:"hasPhoto"`
	FunFact    string    `json:"funFact,omitempty"`
}

type TargetStatus struct {
	WaypointID   int       `json:"waypointId"`
	Ordinal      int       `json:"ordinal"`
	Name         string    `json:"name"`
	Clue         string    `json:"clue"`
	Location     geo.Point `json:"location"`
	DistanceFeet float64   `json:"distanceFeet"`
	Bearing      float64   `json:"bearing"`
	Direction    string    `json:"direction"`
}

// Status is the read model the device renders.
type Status struct {
	QuestID        string           `json:"questId"`
	QuestName      string           `json:"questName"`
	Team           string           `json:"team"`
	StartedAt      time.Time        `json:"startedAt"`
	EndedAt        *time.Time       `json:"endedAt,omitempty"`
	ElapsedMS      int64            `json:"elapsedMs"`
	Location       *Location        `json:"location,omitempty"`
	LocationError  string           `json:"locationError,omitempty"`
	Target         *TargetStatus    `json:"target,omitempty"`
	WithinRange    bool             `json:"withinRange"`
	Debug          bool             `json:"debug"`
	Waypoints      []WaypointStatus `json:"waypoints"`
	Total          int              `json:"total"`
	Completed      int              `json:"completed"`
	Skipped        int              `json:"skipped"`
	SkipsUsed      int              `json:"skipsUsed"`
	SkipsLeft      int              `json:"skipsLeft"`
	CanFinishEarly bool             `json:"canFinishEarly"`
	Complete       bool             `json:"complete"`
	PendingSkip    *int             `json:"pendingSkip,omitempty"`
	FinishArmed    bool             `json:"finishArmed,omitempty"`
}

func (a *Attempt) Status() Status {
	p := a.progress
	s := Status{
		QuestID:        a.quest.ID,
		QuestName:      a.quest.Name,
		Team:           p.Team,
		StartedAt:      p.StartedAt,
		EndedAt:        p.EndedAt,
		WithinRange:    a.tracker.WithinRange(),
		Debug:          a.tracker.Debug(),
		Total:          len(a.quest.Waypoints),
		Completed:      len(p.completed),
		Skipped:        len(p.skipped),
		SkipsUsed:      p.skipsUsed,
		SkipsLeft:      MaxSkips - p.skipsUsed,
		CanFinishEarly: a.CanFinishEarly(),
		Complete:       a.IsComplete(),
		PendingSkip:    a.pendingSkip,
		FinishArmed:    a.finishArmed,
	}
	if p.EndedAt != nil {
		s.ElapsedMS = p.EndedAt.Sub(p.StartedAt).Milliseconds()
	} else {
		s.ElapsedMS = a.now().Sub(p.StartedAt).Milliseconds()
	}
	if loc, ok := a.tracker.Location(); ok {
		s.Location = &loc
	}
	if err := a.tracker.Err(); err != nil {
		s.LocationError = err.Error()
	}
	if t, ok := a.tracker.Target(); ok {
		s.Target = &TargetStatus{
			WaypointID:   t.Waypoint.ID,
			Ordinal:      t.Ordinal,
			Name:         t.Waypoint.Name,
			Clue:         t.Waypoint.Clue,
			Location:     t.Waypoint.Location,
			DistanceFeet: t.DistanceFeet,
			Bearing:      t.Bearing,
			Direction:    t.Direction,
		}
	}
	s.Waypoints = make([]WaypointStatus, 0, len(a.quest.Waypoints))
	for i, w := range a.quest.Waypoints {
		ws := WaypointStatus{ID: w.ID, Ordinal: i + 1, Name: w.Name, Location: w.Location, State: "open"}
		switch {
		case p.IsCompleted(w.ID):
			ws.State = "completed"
			ws.FunFact = w.FunFact
		case p.IsSkipped(w.ID):
			ws.State = "skipped"
		}
		if c, ok := p.captures[w.ID]; ok {
			ws.Outcome = c.Outcome
			ws.Similarity = c.Similarity
			ws.Pending = c.Pending
			ws.HasPhoto = len(c.Photo) > 0
		}
		s.Waypoints = append(s.Waypoints, ws)
	}
	return s
}
