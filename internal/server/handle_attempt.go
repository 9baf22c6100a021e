package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/playperu/odysseus/internal/hunt"
)

func handleStart(att *attempts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.QuestID = strings.TrimSpace(req.QuestID)
		if req.QuestID == "" {
			writeError(w, http.StatusBadRequest, "questId is required")
			return
		}

		sess, err := att.start(r.Context(), participantFrom(r), req)
		if err != nil {
			writeErr(w, err)
			return
		}
		st, err := sess.Status(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	}
}

func handleResume(att *attempts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := att.resume(r.Context(), participantFrom(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		st, err := sess.Status(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := sessionFrom(r).Status(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// handleExit abandons or acknowledges the attempt. Both discard it.
func handleExit(att *attempts, reason hunt.ExitReason) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := att.exit(r.Context(), participantFrom(r), reason); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type StashResponse struct {
	QuestID   string `json:"questId"`
	Completed int    `json:"completed"`
	Skipped   int    `json:"skipped"`
	Total     int    `json:"total"`
}

func handleStash(att *attempts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := att.stash(r.Context(), participantFrom(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StashResponse{
			QuestID:   snap.Quest.ID,
			Completed: len(snap.Progress.Completed),
			Skipped:   len(snap.Progress.Skipped),
			Total:     len(snap.Quest.Waypoints),
		})
	}
}

func handleLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var text string
		err := sessionFrom(r).Do(r.Context(), func(a *hunt.Attempt) error {
			text = a.Log()
			return nil
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, text)
	}
}
