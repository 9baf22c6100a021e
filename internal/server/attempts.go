package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playperu/odysseus/internal/catalog"
	"github.com/playperu/odysseus/internal/hunt"
	"github.com/playperu/odysseus/internal/leaderboard"
	"github.com/playperu/odysseus/internal/store"
)

var ErrStashExists = errors.New("a stashed attempt exists; resume it or start with replace")

type QuestCatalog interface {
	List(ctx context.Context) ([]catalog.Summary, error)
	Get(ctx context.Context, id string) (hunt.Quest, error)
}

type Leaderboard interface {
	Add(ctx context.Context, questID string, e leaderboard.Entry) error
	Get(ctx context.Context, questID string) ([]leaderboard.Entry, error)
	Rate(ctx context.Context, questID string, rating int) (leaderboard.RatingResult, error)
}

type SnapshotStore interface {
	Put(ctx context.Context, participant string, snap hunt.Snapshot) error
	Get(ctx context.Context, participant string) (hunt.Snapshot, error)
	Delete(ctx context.Context, participant string) error
	ForQuest(ctx context.Context, questID string) ([]store.Stashed, error)
}

// Deps are the collaborators behind the participant API.
type Deps struct {
	Catalog     QuestCatalog
	Leaderboard Leaderboard
	Oracle      hunt.Oracle
	Snapshots   SnapshotStore
	Teams       store.TeamLabels

	OracleTimeout time.Duration
	// DebugPINHash is a bcrypt hash; empty disables the range override.
	DebugPINHash string
	CORSOrigins  []string

	// Now defaults to time.Now.
	Now func() time.Time
}

// attempts owns the lifecycle of participant sessions: start, resume,
// stash and the exit bookkeeping that follows each of them.
type attempts struct {
	deps     Deps
	registry *Registry
	broker   *Broker
	locks    *participantLocks
	logger   *slog.Logger
	bg       sync.WaitGroup
}

func newAttempts(deps Deps, logger *slog.Logger) *attempts {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &attempts{
		deps:     deps,
		registry: NewRegistry(),
		broker:   NewBroker(),
		locks:    newParticipantLocks(),
		logger:   logger,
	}
}

type StartRequest struct {
	QuestID  string `json:"questId"`
	Replace  bool   `json:"replace,omitempty"`
	Platform string `json:"platform,omitempty"`
}

func (s *attempts) start(ctx context.Context, participant string, req StartRequest) (*hunt.Session, error) {
	defer s.locks.lock(participant)()

	if !req.Replace {
		if _, err := s.registry.Get(participant); err == nil {
			return nil, ErrAttemptExists
		}
		if _, err := s.deps.Snapshots.Get(ctx, participant); err == nil {
			return nil, ErrStashExists
		} else if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, hunt.ErrCorruptSnapshot) {
			return nil, fmt.Errorf("checking stash: %w", err)
		}
	}

	quest, err := s.deps.Catalog.Get(ctx, req.QuestID)
	if err != nil {
		return nil, fmt.Errorf("loading quest %s: %w", req.QuestID, upstream(err))
	}

	team, err := s.deps.Teams.Team(ctx, participant)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading team label: %w", err)
	}

	a, err := hunt.NewAttempt(quest, s.options(participant, team, hunt.ParsePlatform(req.Platform)))
	if err != nil {
		return nil, err
	}
	sess := s.newSession(participant, a)

	old, err := s.registry.Claim(participant, sess, req.Replace)
	if err != nil {
		sess.Close()
		return nil, err
	}
	if old != nil {
		if _, err := old.Exit(ctx, hunt.ExitReplaced); err != nil && !errors.Is(err, hunt.ErrSessionClosed) {
			s.logger.Warn("ending replaced session", "participant", participant, "error", err)
		}
	}
	if req.Replace {
		s.dropStash(ctx, participant)
	}

	s.logger.Info("attempt started", "participant", participant, "quest", quest.ID, "session", sess.ID, "team", team)
	return sess, nil
}

// resume restores the stashed attempt. The stash is removed once the
// session is live again.
func (s *attempts) resume(ctx context.Context, participant string) (*hunt.Session, error) {
	defer s.locks.lock(participant)()

	if _, err := s.registry.Get(participant); err == nil {
		return nil, ErrAttemptExists
	}
	snap, err := s.deps.Snapshots.Get(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("loading stash: %w", err)
	}
	sess, err := s.restore(participant, snap)
	if err != nil {
		return nil, err
	}
	s.dropStash(ctx, participant)
	s.logger.Info("attempt resumed", "participant", participant, "quest", snap.Quest.ID, "session", sess.ID)
	return sess, nil
}

func (s *attempts) restore(participant string, snap hunt.Snapshot) (*hunt.Session, error) {
	a, err := hunt.RestoreAttempt(snap, s.options(participant, snap.Progress.Team, snap.Platform))
	if err != nil {
		return nil, err
	}
	sess := s.newSession(participant, a)
	if _, err := s.registry.Claim(participant, sess, false); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// stash leaves the attempt screen while keeping the attempt. If the write
// fails the attempt is put back so nothing is lost. The participant lock
// stays held until the stash is written, so a start or resume never sees
// the gap between the session ending and the stash existing.
func (s *attempts) stash(ctx context.Context, participant string) (hunt.Snapshot, error) {
	defer s.locks.lock(participant)()

	sess, err := s.registry.Get(participant)
	if err != nil {
		return hunt.Snapshot{}, err
	}
	snap, err := sess.Exit(ctx, hunt.ExitStashed)
	if err != nil {
		return hunt.Snapshot{}, err
	}
	if err := s.deps.Snapshots.Put(ctx, participant, snap); err != nil {
		if _, rerr := s.restore(participant, snap); rerr != nil {
			s.logger.Error("restoring attempt after failed stash", "participant", participant, "error", rerr)
		}
		return hunt.Snapshot{}, fmt.Errorf("stashing attempt: %w", err)
	}
	return snap, nil
}

func (s *attempts) exit(ctx context.Context, participant string, reason hunt.ExitReason) (hunt.Snapshot, error) {
	defer s.locks.lock(participant)()

	sess, err := s.registry.Get(participant)
	if err != nil {
		return hunt.Snapshot{}, err
	}
	return sess.Exit(ctx, reason)
}

func (s *attempts) session(participant string) (*hunt.Session, error) {
	return s.registry.Get(participant)
}

func (s *attempts) options(participant, team string, platform hunt.Platform) hunt.Options {
	return hunt.Options{
		Team:     team,
		Platform: platform,
		Notifier: s.notifier(participant),
		Now:      s.deps.Now,
		Logger:   s.logger.With("participant", participant),
	}
}

func (s *attempts) newSession(participant string, a *hunt.Attempt) *hunt.Session {
	var sess *hunt.Session
	sess = hunt.NewSession(a, hunt.SessionConfig{
		Oracle:        s.deps.Oracle,
		OracleTimeout: s.deps.OracleTimeout,
		Logger:        s.logger.With("participant", participant),
		OnExit: func(reason hunt.ExitReason, _ hunt.Snapshot) {
			s.registry.Release(participant, sess)
			if reason == hunt.ExitAbandoned || reason == hunt.ExitAcknowledged {
				s.dropStash(context.Background(), participant)
			}
		},
	})
	return sess
}

// notifier publishes engine events to the participant's subscribers and
// reports completions to the leaderboard.
func (s *attempts) notifier(participant string) hunt.Notifier {
	publish := s.broker.Notifier(participant)
	return hunt.NotifierFunc(func(e hunt.Event) {
		publish.Notify(e)
		if e.Type == hunt.EventCompleted && e.Completion != nil {
			s.submit(participant, *e.Completion)
		}
	})
}

func (s *attempts) submit(participant string, c hunt.Completion) {
	if s.deps.Leaderboard == nil {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.deps.Leaderboard.Add(ctx, c.QuestID, leaderboard.EntryFor(c)); err != nil {
			s.logger.Error("submitting leaderboard entry", "participant", participant, "quest", c.QuestID, "error", err)
			return
		}
		s.logger.Info("leaderboard entry submitted", "participant", participant, "quest", c.QuestID, "completed", c.Completed)
	}()
}

func (s *attempts) dropStash(ctx context.Context, participant string) {
	if err := s.deps.Snapshots.Delete(ctx, participant); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("removing stashed attempt", "participant", participant, "error", err)
	}
}

// close ends every live session and waits for pending leaderboard posts.
func (s *attempts) close() {
	s.registry.Close()
	s.bg.Wait()
}
