package hunt

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionClosed = errors.New("session closed")

// Oracle scores how similar a captured photo is to a reference image.
type Oracle interface {
	Compare(ctx context.Context, photo []byte, reference string) (float64, error)
}

type ExitReason string

const (
	// ExitStashed keeps the attempt for a later resume.
	ExitStashed      ExitReason = "stashed"
	ExitAbandoned    ExitReason = "abandoned"
	ExitAcknowledged ExitReason = "acknowledged"
	// ExitReplaced is used when a new attempt takes the participant's slot.
	ExitReplaced ExitReason = "replaced"
)

// ExitFunc is called once when the participant leaves the attempt screen.
type ExitFunc func(reason ExitReason, snap Snapshot)

type SessionConfig struct {
	Oracle        Oracle
	OracleTimeout time.Duration
	OnExit        ExitFunc
	Logger        *slog.Logger
}

// Session runs an Attempt on a single event loop. Location fixes, oracle
// answers and participant actions are applied one at a time in the order
// they arrive.
type Session struct {
	ID string

	attempt *Attempt
	oracle  Oracle
	timeout time.Duration
	onExit  ExitFunc
	logger  *slog.Logger

	cmds     chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
	once     sync.Once
}

func NewSession(a *Attempt, cfg SessionConfig) *Session {
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      uuid.NewString(),
		attempt: a,
		oracle:  cfg.Oracle,
		timeout: cfg.OracleTimeout,
		onExit:  cfg.OnExit,
		cmds:    make(chan func()),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.logger = cfg.Logger.With("session", s.ID)
	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.cmds:
			// Exit cancels from inside a command; nothing may follow it.
			if s.ctx.Err() != nil {
				return
			}
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

// Do runs fn on the event loop and returns its error.
// fn must not call back into the session.
func (s *Session) Do(ctx context.Context, fn func(*Attempt) error) error {
	errc := make(chan error, 1)
	cmd := func() { errc <- fn(s.attempt) }
	select {
	case s.cmds <- cmd:
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.Do(ctx, func(a *Attempt) error {
		st = a.Status()
		return nil
	})
	return st, err
}

// Capture validates and stores a photo, then checks it against the
// reference in the background. The result is applied on the loop.
func (s *Session) Capture(ctx context.Context, waypointID int, photo []byte) error {
	return s.Do(ctx, func(a *Attempt) error {
		if err := a.CheckCapture(waypointID); err != nil {
			return err
		}
		sub, err := a.BeginCapture(waypointID, photo)
		if err != nil {
			return err
		}
		s.verify(sub)
		return nil
	})
}

// verify is only called from the loop, so Add never races with Close.
func (s *Session) verify(sub Submission) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		var (
			score float64
			err   error
		)
		if s.oracle == nil {
			err = errors.New("no similarity oracle configured")
		} else {
			score, err = s.oracle.Compare(ctx, sub.Photo, sub.Reference)
		}
		if s.ctx.Err() != nil {
			return
		}
		s.post(func() {
			if !s.attempt.ResolveCapture(sub, score, err) {
				s.logger.Debug("discarded stale oracle answer", "waypoint", sub.WaypointID, "seq", sub.Seq)
			}
		})
	}()
}

func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.ctx.Done():
	}
}

// Exit ends the session and hands the final snapshot to the exit handler.
// The loop stops in the same step that takes the snapshot, so no later
// action can be applied and then lost. Acknowledging is only allowed once
// the attempt has ended.
func (s *Session) Exit(ctx context.Context, reason ExitReason) (Snapshot, error) {
	var snap Snapshot
	err := s.Do(ctx, func(a *Attempt) error {
		if reason == ExitAcknowledged && !a.Ended() {
			return ErrAttemptNotEnded
		}
		snap = a.Snapshot()
		s.cancel()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	s.Close()
	s.logger.Info("session exit", "reason", reason)
	if s.onExit != nil {
		s.onExit(reason, snap)
	}
	return snap, nil
}

// Close stops the loop and cancels in-flight oracle calls. Answers that
// arrive afterwards are dropped.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.inflight.Wait()
	})
}

func (s *Session) Done() <-chan struct{} { return s.done }
