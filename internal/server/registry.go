package server

import (
	"errors"
	"sync"

	"github.com/playperu/odysseus/internal/hunt"
)

var (
	ErrNoAttempt     = errors.New("no attempt in progress")
	ErrAttemptExists = errors.New("an attempt is already in progress")
)

// Registry holds the live session of every participant.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*hunt.Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*hunt.Session),
	}
}

func (r *Registry) Get(participant string) (*hunt.Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[participant]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNoAttempt
	}
	return s, nil
}

// Claim installs s as the participant's session. An existing session is
// returned when replace is set so the caller can end it; otherwise Claim
// fails with ErrAttemptExists.
func (r *Registry) Claim(participant string, s *hunt.Session, replace bool) (*hunt.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.sessions[participant]
	if ok && !replace {
		return nil, ErrAttemptExists
	}
	r.sessions[participant] = s
	return old, nil
}

// Release removes s if it is still the participant's session.
func (r *Registry) Release(participant string, s *hunt.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[participant] == s {
		delete(r.sessions, participant)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops every session without running exit handlers.
func (r *Registry) Close() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*hunt.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return nil
}

// participantLocks serialises start, resume, stash and exit per
// participant. Entries are dropped once nobody holds or waits on them.
type participantLocks struct {
	mu    sync.Mutex
	locks map[string]*participantLock
}

type participantLock struct {
	sync.Mutex
	refs int
}

func newParticipantLocks() *participantLocks {
	return &participantLocks{locks: make(map[string]*participantLock)}
}

// lock blocks until the participant's lock is held and returns the unlock.
func (l *participantLocks) lock(participant string) func() {
	l.mu.Lock()
	pl, ok := l.locks[participant]
	if !ok {
		pl = &participantLock{}
		l.locks[participant] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		if pl.refs--; pl.refs == 0 {
			delete(l.locks, participant)
		}
		l.mu.Unlock()
	}
}
