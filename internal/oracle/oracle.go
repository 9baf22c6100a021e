// Package oracle talks to the image-similarity service that scores a
// captured photo against a waypoint's reference image.
package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var ErrUnavailable = errors.New("similarity service unavailable")

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

type compareRequest struct {
	PlayerImage string `json:"playerImage"`
	AnswerImage string `json:"answerImage"`
}

type compareResponse struct {
	Similarity *float64 `json:"similarity"`
	Error      string   `json:"error"`
}

// Compare returns a similarity score in [0, 1].
func (c *Client) Compare(ctx context.Context, photo []byte, reference string) (float64, error) {
	body, err := json.Marshal(compareRequest{
		PlayerImage: DataURL(photo),
		AnswerImage: reference,
	})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compare", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building compare request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var out compareResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil && resp.StatusCode < 300 {
		return 0, fmt.Errorf("decoding compare response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if out.Error != "" {
			return 0, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, out.Error)
		}
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if out.Similarity == nil {
		return 0, errors.New("compare response has no similarity")
	}
	return clamp(*out.Similarity), nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Health reports whether the service is up and has its model loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var out struct {
		Status      string `json:"status"`
		ModelLoaded *bool  `json:"model_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if out.Status != "healthy" || (out.ModelLoaded != nil && !*out.ModelLoaded) {
		return fmt.Errorf("%w: status %q", ErrUnavailable, out.Status)
	}
	return nil
}

// DataURL encodes raw image bytes the way browsers hand them out.
func DataURL(photo []byte) string {
	mime := http.DetectContentType(photo)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(photo)
}
