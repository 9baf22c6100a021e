package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/playperu/odysseus/internal/database"
	"github.com/playperu/odysseus/internal/geo"
	"github.com/playperu/odysseus/internal/hunt"
	"github.com/playperu/odysseus/internal/migrations"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testSnapshot(t *testing.T, questID string) hunt.Snapshot {
	t.Helper()
	a, err := hunt.NewAttempt(hunt.Quest{
		ID:   questID,
		Name: "Harbor Walk",
		Waypoints: []hunt.Waypoint{
			{ID: 1, Name: "Fountain", Location: geo.Point{Lat: 21.3, Lng: -157.8}, ReferenceImage: "fountain.jpg"},
			{ID: 2, Name: "Statue", Location: geo.Point{Lat: 21.301, Lng: -157.8}, ReferenceImage: "statue.jpg"},
		},
	}, hunt.Options{Team: "Otters"})
	if err != nil {
		t.Fatal(err)
	}
	a.UpdateLocation(hunt.Location{Point: geo.Point{Lat: 21.3, Lng: -157.8}})
	if err := a.RequestSkip(1); err != nil {
		t.Fatal(err)
	}
	if err := a.ConfirmSkip(); err != nil {
		t.Fatal(err)
	}
	return a.Snapshot()
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshots(openDB(t))

	if _, err := s.Get(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: err = %v", err)
	}

	snap := testSnapshot(t, "2")
	if err := s.Put(ctx, "p1", snap); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Quest.ID != "2" || got.Progress.SkipsUsed != 1 || len(got.Log) != len(snap.Log) {
		t.Errorf("snapshot = %+v", got)
	}
	if _, err := hunt.RestoreAttempt(got, hunt.Options{}); err != nil {
		t.Errorf("restore stored snapshot: %v", err)
	}

	other := testSnapshot(t, "3")
	if err := s.Put(ctx, "p1", other); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "p1")
	if got.Quest.ID != "3" {
		t.Errorf("replaced snapshot quest = %s", got.Quest.ID)
	}

	if err := s.Delete(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestSnapshotsForQuest(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshots(openDB(t))
	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	for _, p := range []string{"a", "b"} {
		if err := s.Put(ctx, p, testSnapshot(t, "2")); err != nil {
			t.Fatal(err)
		}
		clock = clock.Add(time.Minute)
	}
	if err := s.Put(ctx, "c", testSnapshot(t, "9")); err != nil {
		t.Fatal(err)
	}

	got, err := s.ForQuest(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Participant != "b" || got[1].Participant != "a" {
		t.Errorf("stashed = %+v", got)
	}
	if !got[0].UpdatedAt.Equal(time.Date(2025, 6, 1, 10, 1, 0, 0, time.UTC)) {
		t.Errorf("updated at = %v", got[0].UpdatedAt)
	}
}

func TestTeamLabels(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	stores := map[string]TeamLabels{
		"sqlite": NewSQLiteTeams(openDB(t)),
		"redis":  NewRedisTeams(rdb, 0),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := s.Team(ctx, "p1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing label: err = %v", err)
			}
			if err := s.SetTeam(ctx, "p1", "Otters"); err != nil {
				t.Fatal(err)
			}
			if err := s.SetTeam(ctx, "p1", "Sea Otters"); err != nil {
				t.Fatal(err)
			}
			got, err := s.Team(ctx, "p1")
			if err != nil {
				t.Fatal(err)
			}
			if got != "Sea Otters" {
				t.Errorf("label = %q", got)
			}
		})
	}

	if v, _ := mr.Get("team:p1"); v != "Sea Otters" {
		t.Errorf("redis key = %q", v)
	}
}

func TestRedisTeamsExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	s := NewRedisTeams(rdb, time.Hour)
	if err := s.SetTeam(ctx, "p1", "Otters"); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := s.Team(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired label: err = %v", err)
	}
	if err := (RedisChecker{Client: rdb}).Check(ctx); err != nil {
		t.Errorf("redis check: %v", err)
	}

	down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer down.Close()
	if err := (RedisChecker{Client: down}).Check(ctx); err == nil {
		t.Error("redis check passed with server down")
	}
}
