package hunt

import "time"

type EventType string

const (
	EventSignal        EventType = "signal"
	EventNotice        EventType = "notice"
	EventVerified      EventType = "verified"
	EventCompleted     EventType = "completed"
	EventLocationError EventType = "location_error"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// NoticeDuration is how long a transient notice stays on screen.
const NoticeDuration = 3 * time.Second

type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	// AutoDismiss is false for notices that wait for acknowledgement.
	AutoDismiss bool `json:"autoDismiss"`
}

// Completion is reported once when an attempt ends.
type Completion struct {
	QuestID   string    `json:"questId"`
	Team      string    `json:"team"`
	EndedAt   time.Time `json:"endedAt"`
	ElapsedMS int64     `json:"elapsedMs"`
	Completed int       `json:"completed"`
	Skipped   int       `json:"skipped"`
	SkipsUsed int       `json:"skipsUsed"`
	Total     int       `json:"total"`
	Early     bool      `json:"early"`
}

type Event struct {
	Type       EventType   `json:"type"`
	WaypointID int         `json:"waypointId,omitempty"`
	Signal     Signal      `json:"signal,omitempty"`
	Vibrate    []int       `json:"vibrate,omitempty"`
	Notice     *Notice     `json:"notice,omitempty"`
	Outcome    Outcome     `json:"outcome,omitempty"`
	Similarity *float64    `json:"similarity,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Notifier receives everything the engine wants the participant to see.
type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type discard struct{}

func (discard) Notify(Event) {}
