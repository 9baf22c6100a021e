package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/odysseus/internal/catalog"
	"github.com/playperu/odysseus/internal/hunt"
	"github.com/playperu/odysseus/internal/leaderboard"
	"github.com/playperu/odysseus/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type participantPath struct {
	Participant string `path:"participant"`
}

type waypointPath struct {
	Participant string `path:"participant"`
	WaypointID  int    `path:"waypointID"`
}

type questPath struct {
	QuestID string `path:"questID"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	contentType                        string
	errors                             []int
}

const attemptPath = "/api/participants/{participant}/attempt"

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Odysseus API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Quest engine for location-based photo scavenger hunts.")

	ops := []operation{
		{method: http.MethodGet, path: "/healthz", summary: "Health check",
			description: "Returns the health status of backend dependencies.",
			resp:        map[string]struct{ Status string }{}, status: http.StatusOK,
			errors: []int{http.StatusServiceUnavailable}},
		{method: http.MethodGet, path: "/api/quests", summary: "List quests",
			description: "Enabled quests from the catalog.",
			resp:        []catalog.Summary{}, status: http.StatusOK, errors: []int{http.StatusBadGateway}},
		{method: http.MethodGet, path: "/api/quests/{questID}/leaderboard", summary: "Leaderboard",
			description: "Entries sorted by waypoints completed, then time.",
			req:         questPath{}, resp: LeaderboardResponse{}, status: http.StatusOK,
			errors: []int{http.StatusBadGateway}},
		{method: http.MethodPost, path: "/api/quests/{questID}/rate", summary: "Rate quest",
			description: "Rating is an integer from 1 to 5.",
			req: struct {
				questPath
				RateRequest
			}{}, resp: leaderboard.RatingResult{}, status: http.StatusOK,
			errors: []int{http.StatusBadRequest, http.StatusBadGateway}},
		{method: http.MethodGet, path: "/api/quests/{questID}/stashed", summary: "Stashed attempts",
			description: "Participants with a stashed attempt of the quest, newest first.",
			req:         questPath{}, resp: []store.Stashed{}, status: http.StatusOK},
		{method: http.MethodGet, path: "/api/participants/{participant}/team", summary: "Get team label",
			req: participantPath{}, resp: TeamResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodPut, path: "/api/participants/{participant}/team", summary: "Set team label",
			description: "Used for attempts started afterwards.",
			req: struct {
				participantPath
				TeamResponse
			}{}, resp: TeamResponse{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},
		{method: http.MethodPost, path: attemptPath, summary: "Start attempt",
			description: "Loads the quest and starts a fresh attempt. Set replace to discard a live or stashed attempt.",
			req: struct {
				participantPath
				StartRequest
			}{}, resp: hunt.Status{}, status: http.StatusCreated,
			errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict,
				http.StatusUnprocessableEntity, http.StatusBadGateway}},
		{method: http.MethodGet, path: attemptPath, summary: "Attempt status",
			req: participantPath{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodDelete, path: attemptPath, summary: "Abandon attempt",
			description: "Ends the attempt and discards any stash.",
			req:         participantPath{}, status: http.StatusNoContent, errors: []int{http.StatusNotFound}},
		{method: http.MethodPost, path: attemptPath + "/stash", summary: "Stash attempt",
			description: "Leaves the attempt screen, keeping progress for a later resume.",
			req:         participantPath{}, resp: StashResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodPost, path: attemptPath + "/resume", summary: "Resume attempt",
			req: participantPath{}, resp: hunt.Status{}, status: http.StatusOK,
			errors: []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity}},
		{method: http.MethodPost, path: attemptPath + "/acknowledge", summary: "Acknowledge completion",
			description: "Closes a finished attempt.",
			req:         participantPath{}, status: http.StatusNoContent,
			errors: []int{http.StatusNotFound, http.StatusConflict}},
		{method: http.MethodPost, path: attemptPath + "/location", summary: "Report location",
			req: struct {
				participantPath
				LocationRequest
			}{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusBadRequest, http.StatusNotFound}},
		{method: http.MethodPost, path: attemptPath + "/location/error", summary: "Report location failure",
			req: struct {
				participantPath
				LocationErrorRequest
			}{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
		{method: http.MethodGet, path: attemptPath + "/feed", summary: "Location feed",
			description: "WebSocket. Send {lat, lng, heading} or {error} frames; receive status and event frames.",
			req:         participantPath{}, status: http.StatusSwitchingProtocols, contentType: "text/plain",
			errors: []int{http.StatusNotFound}},
		{method: http.MethodPost, path: attemptPath + "/captures/{waypointID}", summary: "Submit photo",
			description: "Raw image bytes. The verdict is delivered on the event stream.",
			req:         waypointPath{}, resp: CaptureResponse{}, status: http.StatusAccepted,
			errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict,
				http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType}},
		{method: http.MethodPost, path: attemptPath + "/skip", summary: "Request skip",
			description: "Arms a skip of the current target; confirm to apply.",
			req: struct {
				participantPath
				SkipRequest
			}{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusNotFound, http.StatusConflict}},
		{method: http.MethodPost, path: attemptPath + "/skip/confirm", summary: "Confirm skip",
			req: participantPath{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: attemptPath + "/skip/cancel", summary: "Cancel skip",
			req: participantPath{}, resp: hunt.Status{}, status: http.StatusOK},
		{method: http.MethodPost, path: attemptPath + "/return/{waypointID}", summary: "Return to skipped waypoint",
			req: waypointPath{}, resp: hunt.Status{}, status: http.StatusOK,
			errors: []int{http.StatusNotFound, http.StatusConflict}},
		{method: http.MethodPost, path: attemptPath + "/finish", summary: "Request early finish",
			description: "Needs at least 80% of waypoints resolved.",
			req:         participantPath{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: attemptPath + "/finish/confirm", summary: "Confirm early finish",
			req: participantPath{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusConflict}},
		{method: http.MethodPost, path: attemptPath + "/finish/cancel", summary: "Cancel early finish",
			req: participantPath{}, resp: hunt.Status{}, status: http.StatusOK},
		{method: http.MethodPost, path: attemptPath + "/debug", summary: "Range override",
			description: "Enabling requires the operator PIN.",
			req: struct {
				participantPath
				DebugRequest
			}{}, resp: hunt.Status{}, status: http.StatusOK, errors: []int{http.StatusForbidden}},
		{method: http.MethodPost, path: attemptPath + "/interact", summary: "Record interaction",
			description: "Allows haptic feedback on iOS.",
			req:         participantPath{}, resp: hunt.Status{}, status: http.StatusOK},
		{method: http.MethodGet, path: attemptPath + "/log", summary: "Event log",
			req: participantPath{}, resp: "", status: http.StatusOK, contentType: "text/plain"},
		{method: http.MethodGet, path: attemptPath + "/events", summary: "SSE event stream",
			description: "Server-Sent Events with engine events for the participant.",
			req:         participantPath{}, status: http.StatusOK, contentType: "text/event-stream"},
	}

	for _, op := range ops {
		oc, _ := r.NewOperationContext(op.method, op.path)
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		if op.contentType != "" {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status), openapi.WithContentType(op.contentType))
		} else {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		}
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
