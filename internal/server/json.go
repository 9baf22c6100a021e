package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/playperu/odysseus/internal/catalog"
	"github.com/playperu/odysseus/internal/hunt"
	"github.com/playperu/odysseus/internal/leaderboard"
	"github.com/playperu/odysseus/internal/store"
)

const maxJSONBody = 1 << 20

var ErrUpstream = errors.New("upstream service unavailable")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorStatus maps engine and collaborator errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoAttempt),
		errors.Is(err, hunt.ErrUnknownWaypoint),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAttemptExists),
		errors.Is(err, ErrStashExists),
		errors.Is(err, hunt.ErrAttemptEnded),
		errors.Is(err, hunt.ErrAttemptNotEnded),
		errors.Is(err, hunt.ErrAlreadyResolved),
		errors.Is(err, hunt.ErrNotTarget),
		errors.Is(err, hunt.ErrOutOfRange),
		errors.Is(err, hunt.ErrCapturePending),
		errors.Is(err, hunt.ErrNoSkipsLeft),
		errors.Is(err, hunt.ErrNotSkipped),
		errors.Is(err, hunt.ErrNoPendingConfirmation),
		errors.Is(err, hunt.ErrBelowFinishThreshold):
		return http.StatusConflict
	case errors.Is(err, hunt.ErrInvalidQuest),
		errors.Is(err, hunt.ErrCorruptSnapshot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, hunt.ErrEmptyPhoto),
		errors.Is(err, leaderboard.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, hunt.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err with its mapped status. Server-side failures hide
// their text.
func writeErr(w http.ResponseWriter, err error) {
	switch status := errorStatus(err); status {
	case http.StatusInternalServerError:
		writeError(w, status, "internal error")
	case http.StatusBadGateway:
		writeError(w, status, ErrUpstream.Error())
	default:
		writeError(w, status, err.Error())
	}
}

// upstream marks err as a failure of an external service unless it is one
// of the collaborator's own sentinels.
func upstream(err error) error {
	if err == nil || errorStatus(err) != http.StatusInternalServerError {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
