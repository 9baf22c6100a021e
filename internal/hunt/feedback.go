package hunt

import "strings"

type Signal string

const (
	SignalEnteredRange Signal = "entered_range"
	SignalCorrect      Signal = "correct"
	SignalIncorrect    Signal = "incorrect"
	SignalCompleted    Signal = "completed"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformOther   Platform = "other"
)

// ParsePlatform maps a client-supplied platform name, defaulting to other.
func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios", "iphone", "ipad":
		return PlatformIOS
	case "android":
		return PlatformAndroid
	default:
		return PlatformOther
	}
}

var (
	// on, pause, on
	iosPattern     = []int{50, 100, 50}
	defaultPattern = []int{100}
)

// Feedback decides the vibration pattern for a signal.
type Feedback struct {
	platform   Platform
	interacted bool
}

func NewFeedback(p Platform) *Feedback {
	return &Feedback{platform: p}
}

// Interact records a user gesture. iOS refuses haptics before one.
func (f *Feedback) Interact() { f.interacted = true }

func (f *Feedback) Interacted() bool { return f.interacted }

// Pattern returns vibration durations in milliseconds, alternating on and
// off, or nil when the device must stay silent.
func (f *Feedback) Pattern(Signal) []int {
	if f.platform == PlatformIOS {
		if !f.interacted {
			return nil
		}
		return append([]int(nil), iosPattern...)
	}
	return append([]int(nil), defaultPattern...)
}
