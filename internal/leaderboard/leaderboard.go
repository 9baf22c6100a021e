// Package leaderboard submits finished attempts and quest ratings to the
// leaderboard service.
package leaderboard

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/playperu/odysseus/internal/hunt"
)

var ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")

const dateLayout = "2006-01-02"

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type Entry struct {
	TeamName           string `json:"team_name"`
	WaypointsCompleted int    `json:"waypoints_completed"`
	// CompletionTime is in milliseconds.
	CompletionTime int64  `json:"completion_time"`
	QuestDate      string `json:"quest_date"`
	Timestamp      string `json:"timestamp,omitempty"`
}

// EntryFor builds the leaderboard row for a finished attempt.
func EntryFor(c hunt.Completion) Entry {
	team := c.Team
	if team == "" {
		team = "Unknown"
	}
	return Entry{
		TeamName:           team,
		WaypointsCompleted: c.Completed,
		CompletionTime:     c.ElapsedMS,
		QuestDate:          c.EndedAt.Format(dateLayout),
	}
}

func (c *Client) Add(ctx context.Context, questID string, e Entry) error {
	if err := c.post(ctx, "/leaderboard/"+url.PathEscape(questID)+"/add", e, nil); err != nil {
		return fmt.Errorf("adding leaderboard entry: %w", err)
	}
	return nil
}

// Get returns entries ordered by waypoints completed, most first, then by
// completion time, fastest first.
func (c *Client) Get(ctx context.Context, questID string) ([]Entry, error) {
	var out struct {
		Leaderboard []Entry `json:"leaderboard"`
	}
	if err := c.post(ctx, "/leaderboard/"+url.PathEscape(questID)+"/get", struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("fetching leaderboard: %w", err)
	}
	Sort(out.Leaderboard)
	return out.Leaderboard, nil
}

func Sort(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if n := cmp.Compare(b.WaypointsCompleted, a.WaypointsCompleted); n != 0 {
			return n
		}
		return cmp.Compare(a.CompletionTime, b.CompletionTime)
	})
}

type RatingResult struct {
	Average float64 `json:"new_average_rating"`
	Total   int     `json:"total_ratings"`
}

func (c *Client) Rate(ctx context.Context, questID string, rating int) (RatingResult, error) {
	if rating < 1 || rating > 5 {
		return RatingResult{}, ErrInvalidRating
	}
	var out RatingResult
	body := map[string]int{"rating": rating}
	if err := c.post(ctx, "/quest/"+url.PathEscape(questID)+"/rate", body, &out); err != nil {
		return RatingResult{}, fmt.Errorf("rating quest: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
