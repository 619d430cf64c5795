package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/core/engine"
	apperrors "github.com/searchprobe/searchprobe/internal/errors"
	"github.com/searchprobe/searchprobe/internal/server/middleware"
)

// ControllerSource resolves the search controller for a session ID.
type ControllerSource interface {
	Acquire(id string) (string, *engine.SearchController)
}

// SessionAPI serves the browser-facing search session endpoints.
type SessionAPI struct {
	Sessions ControllerSource
	// CountryCode and LocationBased fill in query parameters the caller omits.
	CountryCode   string
	LocationBased bool
}

// StateView is the JSON rendering of a controller's published state.
type StateView struct {
	SessionID  string                   `json:"session_id"`
	Token      uint64                   `json:"token"`
	Phase      engine.Phase             `json:"phase"`
	Query      *core.SearchQuery        `json:"query,omitempty"`
	Result     *core.SearchResult       `json:"result,omitempty"`
	Error      *SearchErrorView         `json:"error,omitempty"`
	Enrichment []core.EnrichmentOutcome `json:"enrichment,omitempty"`
	Draft      *engine.Draft            `json:"draft,omitempty"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// SearchErrorView is the failure shown in place of results.
type SearchErrorView struct {
	Kind    core.SearchErrorKind `json:"kind"`
	Message string               `json:"message"`
	ID      string               `json:"id,omitempty"`
}

type draftRequest struct {
	Message string `json:"message"`
	Rating  string `json:"rating"`
}

// NewStateView renders state for the given session.
func NewStateView(sessionID string, state *engine.State) StateView {
	view := StateView{SessionID: sessionID}
	if state == nil {
		view.Phase = engine.PhaseIdle
		return view
	}

	view.Token = state.Token
	view.Phase = state.Phase
	view.Query = state.Query
	view.Result = state.Result
	view.UpdatedAt = state.UpdatedAt
	if state.Err != nil {
		view.Error = &SearchErrorView{Kind: state.Err.Kind, Message: state.Err.Message, ID: state.Err.ID}
	}
	if state.Board != nil {
		view.Enrichment = state.Board.Outcomes()
	}
	if state.Feedback != nil {
		draft := state.Feedback.Draft()
		view.Draft = &draft
	}
	return view
}

// Search runs a search from query parameters: goal, location, country_code, location_based.
func (api *SessionAPI) Search(w http.ResponseWriter, r *http.Request) {
	sessionID, controller := api.acquire(w, r)

	params := r.URL.Query()
	query := core.SearchQuery{
		Goal:          params.Get("goal"),
		Location:      params.Get("location"),
		CountryCode:   params.Get("country_code"),
		LocationBased: api.LocationBased,
	}
	if query.CountryCode == "" {
		query.CountryCode = api.CountryCode
	}
	if raw := params.Get("location_based"); raw != "" {
		locationBased, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("location_based must be true or false"))
			return
		}
		query.LocationBased = locationBased
	}

	if _, err := controller.Search(r.Context(), query); err != nil {
		var searchErr *core.SearchError
		if !errors.As(err, &searchErr) {
			respondWithError(w, r, err)
			return
		}
		// A failed search is published state; the caller renders it from the view.
		writeJSON(w, apperrors.HTTPStatusFromCode(apperrors.FromDomain(r.Context(), err).Code),
			NewStateView(sessionID, controller.State()))
		return
	}

	writeJSON(w, http.StatusOK, NewStateView(sessionID, controller.State()))
}

// State returns the session's published state.
func (api *SessionAPI) State(w http.ResponseWriter, r *http.Request) {
	sessionID, controller := api.acquire(w, r)
	writeJSON(w, http.StatusOK, NewStateView(sessionID, controller.State()))
}

// Enrich triggers the rating lookup for one vendor. By default it waits for the lookup;
// wait=false returns 202 with the pending outcome. retry=true resets a failed lookup first.
func (api *SessionAPI) Enrich(w http.ResponseWriter, r *http.Request) {
	_, controller := api.acquire(w, r)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("vendor index must be an integer"))
		return
	}

	wait, retry := true, false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		if wait, err = strconv.ParseBool(raw); err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("wait must be true or false"))
			return
		}
	}
	if raw := r.URL.Query().Get("retry"); raw != "" {
		if retry, err = strconv.ParseBool(raw); err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("retry must be true or false"))
			return
		}
	}

	var outcome core.EnrichmentOutcome
	switch {
	case retry:
		outcome, err = controller.RetryEnrichment(r.Context(), index)
	case wait:
		outcome, err = controller.EnrichVendor(r.Context(), index)
	default:
		outcome, err = controller.StartEnrichment(index)
	}

	var enrichErr *core.EnrichmentError
	if err != nil && !errors.As(err, &enrichErr) {
		respondWithError(w, r, err)
		return
	}

	status := http.StatusOK
	if !outcome.Status.Terminal() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

// SaveDraft stores the feedback draft without submitting it.
func (api *SessionAPI) SaveDraft(w http.ResponseWriter, r *http.Request) {
	_, controller := api.acquire(w, r)

	submitter := controller.State().Feedback
	if submitter == nil {
		respondWithError(w, r, engine.ErrNoResult)
		return
	}

	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("draft body must be JSON with message and rating"))
		return
	}
	submitter.SetDraft(req.Message, req.Rating)
	writeJSON(w, http.StatusOK, submitter.Draft())
}

// SubmitFeedback posts the current draft. An optional JSON body replaces the draft first.
func (api *SessionAPI) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	_, controller := api.acquire(w, r)

	submitter := controller.State().Feedback
	if submitter == nil {
		respondWithError(w, r, engine.ErrNoResult)
		return
	}

	if r.ContentLength != 0 {
		var req draftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, r, apperrors.NewInvalidInputError("feedback body must be JSON with message and rating"))
			return
		}
		submitter.SetDraft(req.Message, req.Rating)
	}

	ack, err := submitter.Submit(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (api *SessionAPI) acquire(w http.ResponseWriter, r *http.Request) (string, *engine.SearchController) {
	sessionID, controller := api.Sessions.Acquire(strings.TrimSpace(r.Header.Get(middleware.SessionIDHeader)))
	w.Header().Set(middleware.SessionIDHeader, sessionID)
	return sessionID, controller
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
