package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/playperu/odysseus/internal/store"
)

const maxTeamLabel = 64

type TeamResponse struct {
	Team string `json:"team"`
}

func handleGetTeam(teams store.TeamLabels) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		team, err := teams.Team(r.Context(), participantFrom(r))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no team label")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, TeamResponse{Team: team})
	}
}

// handlePutTeam sets the label used for attempts started afterwards.
func handlePutTeam(teams store.TeamLabels) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TeamResponse
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Team = strings.TrimSpace(req.Team)
		if req.Team == "" || len(req.Team) > maxTeamLabel {
			writeError(w, http.StatusBadRequest, "team must be 1 to 64 characters")
			return
		}

		if err := teams.SetTeam(r.Context(), participantFrom(r), req.Team); err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
