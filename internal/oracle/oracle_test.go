package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    float64
		wantErr bool
	}{
		{"score", http.StatusOK, `{"similarity": 0.812}`, 0.812, false},
		{"above one is clamped", http.StatusOK, `{"similarity": 1.3}`, 1, false},
		{"negative is clamped", http.StatusOK, `{"similarity": -0.2}`, 0, false},
		{"missing score", http.StatusOK, `{}`, 0, true},
		{"malformed", http.StatusOK, `not json`, 0, true},
		{"server error", http.StatusInternalServerError, `{"error": "model crashed"}`, 0, true},
		{"bad request", http.StatusBadRequest, `oops`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got compareRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/compare" {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			score, err := New(srv.URL+"/", srv.Client()).Compare(context.Background(), pngHeader, "statue.jpg")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("score = %v, want error", score)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if score != tt.want {
				t.Errorf("score = %v, want %v", score, tt.want)
			}
			if got.AnswerImage != "statue.jpg" || !strings.HasPrefix(got.PlayerImage, "data:image/png;base64,") {
				t.Errorf("request body = %+v", got)
			}
		})
	}
}

func TestCompareServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"busy"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Compare(context.Background(), []byte("x"), "a.jpg")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestCompareHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(srv.URL, nil).Compare(ctx, []byte("x"), "a.jpg"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"healthy", http.StatusOK, `{"status":"healthy","model_loaded":true}`, false},
		{"model missing", http.StatusOK, `{"status":"healthy","model_loaded":false}`, true},
		{"down", http.StatusBadGateway, ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(srv.URL, nil).Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDataURL(t *testing.T) {
	if got := DataURL(pngHeader); !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("png = %q", got)
	}
	if got := DataURL([]byte("plain text")); !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("fallback = %q", got)
	}
}
