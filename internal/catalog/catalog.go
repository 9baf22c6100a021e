// Package catalog fetches quest definitions from the quest service and turns
// them into playable hunt.Quest values.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/playperu/odysseus/internal/geo"
	"github.com/playperu/odysseus/internal/hunt"
)

var (
	ErrNotFound     = errors.New("quest not found")
	ErrInvalidQuest = hunt.ErrInvalidQuest
)

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

// Summary is one row of the quest listing.
type Summary struct {
	ID          int     `json:"id"`
	Key         string  `json:"id_string"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Difficulty  string  `json:"difficulty"`
	AgeGroup    string  `json:"ageGroup"`
	Distance    string  `json:"distance"`
	Waypoints   int     `json:"waypoints"`
	Rating      float64 `json:"rating"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

// List returns enabled quests.
func (c *Client) List(ctx context.Context) ([]Summary, error) {
	var all []Summary
	if err := c.get(ctx, "/api/quests", &all); err != nil {
		return nil, fmt.Errorf("listing quests: %w", err)
	}
	out := all[:0]
	for _, s := range all {
		if s.Enabled == nil || *s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

// Get loads a quest and validates it for play.
func (c *Client) Get(ctx context.Context, id string) (hunt.Quest, error) {
	var env struct {
		Content string `json:"content"`
	}
	var raw json.RawMessage
	if err := c.get(ctx, "/api/quests/"+url.PathEscape(id), &raw); err != nil {
		return hunt.Quest{}, fmt.Errorf("fetching quest %q: %w", id, err)
	}
	doc := []byte(raw)
	if err := json.Unmarshal(raw, &env); err == nil && env.Content != "" {
		doc = []byte(env.Content)
	}
	q, err := Parse(doc)
	if err != nil {
		return hunt.Quest{}, fmt.Errorf("quest %q: %w", id, err)
	}
	return q, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type questDoc struct {
	ID          flexID          `json:"id"`
	Name        string          `json:"name"`
	Checkpoints []checkpointDoc `json:"checkpoints"`
}

type checkpointDoc struct {
	ID          *checkpointID `json:"id"`
	Name        string        `json:"name"`
	Lat         *float64      `json:"lat"`
	Lng         *float64      `json:"lng"`
	Clue        string        `json:"clue"`
	FunFact     string        `json:"funFact"`
	AnswerImage references    `json:"answerImage"`
}

// Parse converts a quest document into a playable quest.
func Parse(doc []byte) (hunt.Quest, error) {
	var d questDoc
	if err := json.Unmarshal(doc, &d); err != nil {
		return hunt.Quest{}, fmt.Errorf("%w: %w", ErrInvalidQuest, err)
	}
	q := hunt.Quest{ID: string(d.ID), Name: d.Name}
	for i, cp := range d.Checkpoints {
		if cp.Lat == nil || cp.Lng == nil {
			return hunt.Quest{}, fmt.Errorf("%w: checkpoint %d has no coordinates", ErrInvalidQuest, i+1)
		}
		id := i + 1
		if cp.ID != nil {
			id = int(*cp.ID)
		}
		w := hunt.Waypoint{
			ID:       id,
			Name:     cp.Name,
			Clue:     cp.Clue,
			FunFact:  cp.FunFact,
			Location: geo.Point{Lat: *cp.Lat, Lng: *cp.Lng},
		}
		if len(cp.AnswerImage) > 0 {
			w.ReferenceImage = cp.AnswerImage[0]
		}
		if w.Name == "" {
			w.Name = "Waypoint " + strconv.Itoa(i+1)
		}
		q.Waypoints = append(q.Waypoints, w)
	}
	if err := q.Validate(); err != nil {
		return hunt.Quest{}, err
	}
	return q, nil
}

// flexID accepts both numeric and string quest ids.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("quest id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// checkpointID accepts a waypoint id as a JSON number or a numeric string.
// Waypoints are keyed by integer, so other strings are rejected.
type checkpointID int

func (c *checkpointID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("checkpoint id %q is not a number", s)
		}
		*c = checkpointID(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("checkpoint id: %w", err)
	}
	*c = checkpointID(n)
	return nil
}

// references accepts a single reference image or a list of them.
type references []string

func (r *references) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*r = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s != "" {
		*r = references{s}
	}
	return nil
}
