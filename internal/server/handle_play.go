package server

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/odysseus/internal/geo"
	"github.com/playperu/odysseus/internal/hunt"
)

const maxPhotoBytes = 10 << 20

// act applies fn on the session loop and answers with the resulting status.
func act(w http.ResponseWriter, r *http.Request, fn func(a *hunt.Attempt) error) {
	var st hunt.Status
	err := sessionFrom(r).Do(r.Context(), func(a *hunt.Attempt) error {
		if err := fn(a); err != nil {
			return err
		}
		st = a.Status()
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type LocationRequest struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Heading *float64 `json:"heading,omitempty"`
}

func (req LocationRequest) location() (hunt.Location, error) {
	if req.Lat == nil || req.Lng == nil {
		return hunt.Location{}, errors.New("lat and lng are required")
	}
	lat, lng := *req.Lat, *req.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return hunt.Location{}, errors.New("coordinates out of range")
	}
	return hunt.Location{Point: geo.Point{Lat: lat, Lng: lng}, Heading: req.Heading}, nil
}

func handleLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		loc, err := req.location()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		act(w, r, func(a *hunt.Attempt) error {
			a.UpdateLocation(loc)
			return nil
		})
	}
}

type LocationErrorRequest struct {
	Reason string `json:"reason"`
}

func handleLocationError() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationErrorRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		act(w, r, func(a *hunt.Attempt) error {
			a.LocationFailed(req.Reason)
			return nil
		})
	}
}

type CaptureResponse struct {
	WaypointID int    `json:"waypointId"`
	State      string `json:"state"`
}

// handleCapture accepts the raw photo bytes. The verdict arrives later on
// the event stream.
func handleCapture() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := waypointParam(w, r)
		if !ok {
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			mt, _, err := mime.ParseMediaType(ct)
			if err != nil || (!strings.HasPrefix(mt, "image/") && mt != "application/octet-stream") {
				writeError(w, http.StatusUnsupportedMediaType, "photo must be an image")
				return
			}
		}

		defer r.Body.Close()
		photo, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPhotoBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
				return
			}
			writeError(w, http.StatusBadRequest, "reading photo")
			return
		}

		if err := sessionFrom(r).Capture(r.Context(), id, photo); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, CaptureResponse{WaypointID: id, State: "checking"})
	}
}

type SkipRequest struct {
	WaypointID int `json:"waypointId"`
}

func handleSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SkipRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		act(w, r, func(a *hunt.Attempt) error { return a.RequestSkip(req.WaypointID) })
	}
}

func handleConfirmSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act(w, r, (*hunt.Attempt).ConfirmSkip)
	}
}

func handleCancelSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act(w, r, func(a *hunt.Attempt) error {
			a.CancelSkip()
			return nil
		})
	}
}

func handleReturn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := waypointParam(w, r)
		if !ok {
			return
		}
		act(w, r, func(a *hunt.Attempt) error { return a.ReturnToSkipped(id) })
	}
}

func handleFinish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act(w, r, (*hunt.Attempt).RequestFinishEarly)
	}
}

func handleConfirmFinish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act(w, r, (*hunt.Attempt).ConfirmFinishEarly)
	}
}

func handleCancelFinish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act(w, r, func(a *hunt.Attempt) error {
			a.CancelFinishEarly()
			return nil
		})
	}
}

type DebugRequest struct {
	Enabled bool   `json:"enabled"`
	PIN     string `json:"pin,omitempty"`
}

// handleDebug toggles the range override. Turning it on needs the
// operator PIN; turning it off never does.
func handleDebug(pinHash string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DebugRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Enabled {
			if pinHash == "" {
				writeError(w, http.StatusForbidden, "debug override is disabled")
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(pinHash), []byte(req.PIN)); err != nil {
				logger.Warn("debug override refused", "participant", participantFrom(r))
				writeError(w, http.StatusForbidden, "invalid pin")
				return
			}
		}
		act(w, r, func(a *hunt.Attempt) error {
			a.SetDebug(req.Enabled)
			return nil
		})
	}
}

func handleInteract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act(w, r, func(a *hunt.Attempt) error {
			a.Interact()
			return nil
		})
	}
}

func waypointParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "waypointID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid waypoint id")
		return 0, false
	}
	return id, true
}
