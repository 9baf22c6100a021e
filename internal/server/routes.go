package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/odysseus/internal/hunt"
)

func addRoutes(r chi.Router, logger *slog.Logger, att *attempts) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Odysseus API", "/openapi.json", "/docs"))

	r.Route("/api/quests", func(r chi.Router) {
		r.Get("/", handleListQuests(att.deps.Catalog))
		r.Get("/{questID}/leaderboard", handleLeaderboard(att.deps.Leaderboard))
		r.Post("/{questID}/rate", handleRate(att.deps.Leaderboard))
		r.Get("/{questID}/stashed", handleStashed(att.deps.Snapshots))
	})

	r.Route("/api/participants/{participant}", func(r chi.Router) {
		r.Get("/team", handleGetTeam(att.deps.Teams))
		r.Put("/team", handlePutTeam(att.deps.Teams))

		r.Route("/attempt", func(r chi.Router) {
			r.Post("/", handleStart(att))
			r.Post("/resume", handleResume(att))

			// Everything below needs a live session.
			r.Group(func(r chi.Router) {
				r.Use(sessionMiddleware(att))

				r.Get("/", handleStatus())
				r.Delete("/", handleExit(att, hunt.ExitAbandoned))
				r.Post("/stash", handleStash(att))
				r.Post("/acknowledge", handleExit(att, hunt.ExitAcknowledged))

				r.Post("/location", handleLocation())
				r.Post("/location/error", handleLocationError())
				r.Get("/feed", handleFeed(att.broker, logger))

				r.Post("/captures/{waypointID}", handleCapture())
				r.Post("/skip", handleSkip())
				r.Post("/skip/confirm", handleConfirmSkip())
				r.Post("/skip/cancel", handleCancelSkip())
				r.Post("/return/{waypointID}", handleReturn())
				r.Post("/finish", handleFinish())
				r.Post("/finish/confirm", handleConfirmFinish())
				r.Post("/finish/cancel", handleCancelFinish())

				r.Post("/debug", handleDebug(att.deps.DebugPINHash, logger))
				r.Post("/interact", handleInteract())
				r.Get("/log", handleLog())
				r.Get("/events", handleEvents(att.broker))
			})
		})
	})
}
