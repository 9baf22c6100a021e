package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/odysseus/internal/catalog"
	"github.com/playperu/odysseus/internal/leaderboard"
	"github.com/playperu/odysseus/internal/store"
)

func handleListQuests(c QuestCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quests, err := c.List(r.Context())
		if err != nil {
			writeErr(w, upstream(err))
			return
		}
		if quests == nil {
			quests = []catalog.Summary{}
		}
		writeJSON(w, http.StatusOK, quests)
	}
}

type LeaderboardResponse struct {
	QuestID     string              `json:"questId"`
	Leaderboard []leaderboard.Entry `json:"leaderboard"`
}

func handleLeaderboard(lb Leaderboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questID := chi.URLParam(r, "questID")
		entries, err := lb.Get(r.Context(), questID)
		if err != nil {
			writeErr(w, upstream(err))
			return
		}
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		writeJSON(w, http.StatusOK, LeaderboardResponse{QuestID: questID, Leaderboard: entries})
	}
}

type RateRequest struct {
	Rating int `json:"rating"`
}

func handleRate(lb Leaderboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "rating must be an integer between 1 and 5")
			return
		}
		res, err := lb.Rate(r.Context(), chi.URLParam(r, "questID"), req.Rating)
		if err != nil {
			writeErr(w, upstream(err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleStashed lists participants holding a stashed attempt of the quest.
func handleStashed(snaps SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stashed, err := snaps.ForQuest(r.Context(), chi.URLParam(r, "questID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if stashed == nil {
			stashed = []store.Stashed{}
		}
		writeJSON(w, http.StatusOK, stashed)
	}
}
