package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/playperu/odysseus/internal/hunt"
)

func TestAddAndGet(t *testing.T) {
	var stored []Entry
	mux := http.NewServeMux()
	mux.HandleFunc("POST /leaderboard/{quest}/add", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("quest") != "2" {
			t.Errorf("quest = %s", r.PathValue("quest"))
		}
		var e Entry
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			t.Error(err)
			return
		}
		stored = append(stored, e)
		w.Write([]byte(`{"message":"Leaderboard entry added successfully"}`))
	})
	mux.HandleFunc("POST /leaderboard/{quest}/get", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"quest_id": "2", "leaderboard": stored})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	ctx := context.Background()
	entries := []Entry{
		{TeamName: "Slow", WaypointsCompleted: 3, CompletionTime: 900000, QuestDate: "2025-06-01"},
		{TeamName: "Partial", WaypointsCompleted: 2, CompletionTime: 100000, QuestDate: "2025-06-01"},
		{TeamName: "Fast", WaypointsCompleted: 3, CompletionTime: 600000, QuestDate: "2025-06-01"},
	}
	for _, e := range entries {
		if err := c.Add(ctx, "2", e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := c.Get(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range got {
		names = append(names, e.TeamName)
	}
	if len(names) != 3 || names[0] != "Fast" || names[1] != "Slow" || names[2] != "Partial" {
		t.Errorf("order = %v", names)
	}
}

func TestAddError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Missing required field: quest_date"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Add(context.Background(), "2", Entry{TeamName: "x"})
	if err == nil || err.Error() != "adding leaderboard entry: status 400: Missing required field: quest_date" {
		t.Errorf("err = %v", err)
	}
}

func TestRate(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quest/2/rate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"message":"Rating submitted successfully","new_average_rating":4.5,"total_ratings":2}`))
	}))
	defer srv.Close()
	c := New(srv.URL, srv.Client())

	res, err := c.Rate(context.Background(), "2", 5)
	if err != nil {
		t.Fatal(err)
	}
	if got["rating"] != 5 || res.Average != 4.5 || res.Total != 2 {
		t.Errorf("sent %v, got %+v", got, res)
	}

	for _, bad := range []int{0, 6, -1} {
		got = nil
		if _, err := c.Rate(context.Background(), "2", bad); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: err = %v", bad, err)
		}
		if got != nil {
			t.Errorf("rating %d reached the server", bad)
		}
	}
}

func TestEntryFor(t *testing.T) {
	e := EntryFor(hunt.Completion{
		Completed: 4,
		ElapsedMS: 1800000,
		EndedAt:   time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC),
	})
	want := Entry{TeamName: "Unknown", WaypointsCompleted: 4, CompletionTime: 1800000, QuestDate: "2025-06-01"}
	if e != want {
		t.Errorf("entry = %+v, want %+v", e, want)
	}
}
