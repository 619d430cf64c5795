package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/metrics"
)

var (
	// ErrNoResult is returned when an operation needs a published result set and there is none.
	ErrNoResult = errors.New("no search result is available")
	// ErrVendorNotFound is returned for a vendor index outside the published result set.
	ErrVendorNotFound = errors.New("vendor not found in the current result set")
	// ErrVendorRated is returned when enrichment is requested for a vendor with a native rating.
	ErrVendorRated = errors.New("vendor already has a rating")
)

const networkSearchMessage = "unable to reach the search service"

// Phase is the lifecycle position of the published search state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// State is an immutable snapshot of the controller's published output.
// A new State replaces the previous one wholesale.
type State struct {
	Token     uint64
	Phase     Phase
	Query     *core.SearchQuery
	Result    *core.SearchResult
	Err       *core.SearchError
	Board     *EnrichmentBoard
	Feedback  *FeedbackSubmitter
	UpdatedAt time.Time
}

// ControllerOptions wires the controller's collaborators.
type ControllerOptions struct {
	Searcher   Searcher
	Enrichment BoardOptions
	Feedback   SubmitterOptions
	History    HistoryRecorder
	Logger     *logging.Logger
	Clock      func() time.Time
}

// SearchController owns the primary search lifecycle. Only the most recently issued
// search may publish state; older ones are cancelled and their outcome discarded.
type SearchController struct {
	opts ControllerOptions

	mu             sync.Mutex
	latest         uint64
	cancelInFlight context.CancelFunc

	state atomic.Pointer[State]
}

// NewSearchController creates a controller in the idle phase.
func NewSearchController(opts ControllerOptions) *SearchController {
	c := &SearchController{opts: opts}
	c.state.Store(&State{Phase: PhaseIdle, UpdatedAt: nowFrom(opts.Clock)})
	return c
}

// State returns the current published snapshot. Callers must not modify it.
func (c *SearchController) State() *State {
	return c.state.Load()
}

// Search validates query, issues one backend request, and publishes its outcome.
// Validation failures leave published state untouched. A caller whose search was
// overtaken by a newer one receives core.ErrSuperseded.
func (c *SearchController) Search(ctx context.Context, query core.SearchQuery) (*core.SearchResult, error) {
	if err := query.Validate(); err != nil {
		metrics.RecordSearch("invalid", 0)
		return nil, err
	}
	if c.opts.Searcher == nil {
		return nil, &core.SearchError{Kind: core.SearchErrorNetwork, Message: "search backend is not configured"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query = normalizeQuery(query)
	started := time.Now()

	c.mu.Lock()
	c.latest++
	token := c.latest
	if c.cancelInFlight != nil {
		c.cancelInFlight()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancelInFlight = cancel

	previous := c.state.Load()
	c.state.Store(&State{
		Token:     token,
		Phase:     PhaseLoading,
		Query:     &query,
		Result:    previous.Result,
		Board:     previous.Board,
		Feedback:  previous.Feedback,
		UpdatedAt: nowFrom(c.opts.Clock),
	})
	c.mu.Unlock()

	logDebug(c.opts.Logger, "Dispatching search",
		zap.Uint64("token", token),
		zap.String("goal", query.Goal),
		zap.String("country_code", query.CountryCode))

	result, err := c.opts.Searcher.Search(reqCtx, query)
	cancel()

	c.mu.Lock()
	if token != c.latest {
		c.mu.Unlock()
		logDebug(c.opts.Logger, "Discarding superseded search", zap.Uint64("token", token))
		metrics.RecordSearch("superseded", time.Since(started))
		return nil, core.ErrSuperseded
	}
	c.cancelInFlight = nil

	stale := c.state.Load()
	next := &State{
		Token:     token,
		Query:     &query,
		UpdatedAt: nowFrom(c.opts.Clock),
	}

	var searchErr *core.SearchError
	if err != nil {
		searchErr = classifySearchError(err)
		next.Phase = PhaseFailed
		next.Err = searchErr
	} else {
		next.Phase = PhaseReady
		next.Result = result
		next.Board = NewEnrichmentBoard(result, c.opts.Enrichment)
		next.Feedback = NewFeedbackSubmitter(result, query.Goal, c.opts.Feedback)
	}
	c.state.Store(next)
	c.mu.Unlock()

	stale.Board.Cancel()

	if searchErr != nil {
		logWarn(c.opts.Logger, "Search failed",
			zap.String("kind", string(searchErr.Kind)),
			zap.String("error_id", searchErr.ID),
			zap.Error(err))
		metrics.RecordSearch(string(searchErr.Kind), time.Since(started))
		return nil, searchErr
	}

	logInfo(c.opts.Logger, "Search completed",
		zap.String("search_id", result.ID),
		zap.Int("count", result.Count),
		zap.Int("unrated", next.Board.Len()),
		zap.Duration("duration", time.Since(started)))
	metrics.RecordSearch("success", time.Since(started))

	if c.opts.History != nil {
		if herr := c.opts.History.RecordSearch(ctx, query, result); herr != nil {
			logDebug(c.opts.Logger, "Search history write failed", zap.Error(herr))
		}
	}
	return result, nil
}

// EnrichVendor triggers the rating lookup for the vendor at index in the published
// result set and waits for it. Location and country come from the query that produced
// the result set.
func (c *SearchController) EnrichVendor(ctx context.Context, index int) (core.EnrichmentOutcome, error) {
	agent, query, err := c.agentFor(index)
	if err != nil {
		return core.EnrichmentOutcome{}, err
	}
	return agent.Enrich(ctx, query.Location, query.CountryCode)
}

// StartEnrichment triggers the rating lookup for the vendor at index without waiting.
func (c *SearchController) StartEnrichment(index int) (core.EnrichmentOutcome, error) {
	agent, query, err := c.agentFor(index)
	if err != nil {
		return core.EnrichmentOutcome{}, err
	}
	return agent.Start(query.Location, query.CountryCode)
}

// RetryEnrichment resets a failed enrichment and triggers it again.
func (c *SearchController) RetryEnrichment(ctx context.Context, index int) (core.EnrichmentOutcome, error) {
	agent, query, err := c.agentFor(index)
	if err != nil {
		return core.EnrichmentOutcome{}, err
	}
	agent.Retry()
	return agent.Enrich(ctx, query.Location, query.CountryCode)
}

// Close cancels any in-flight search and orphans the published enrichment board.
func (c *SearchController) Close() {
	c.mu.Lock()
	if c.cancelInFlight != nil {
		c.cancelInFlight()
		c.cancelInFlight = nil
	}
	c.latest++
	state := c.state.Load()
	c.mu.Unlock()

	state.Board.Cancel()
}

func (c *SearchController) agentFor(index int) (*EnrichmentAgent, core.SearchQuery, error) {
	state := c.state.Load()
	if state.Result == nil || state.Query == nil {
		return nil, core.SearchQuery{}, ErrNoResult
	}
	if index < 0 || index >= len(state.Result.Results) {
		return nil, core.SearchQuery{}, ErrVendorNotFound
	}
	agent, ok := state.Board.Agent(index)
	if !ok {
		return nil, core.SearchQuery{}, ErrVendorRated
	}
	return agent, *state.Query, nil
}

func classifySearchError(err error) *core.SearchError {
	var fault *core.FaultError
	if errors.As(err, &fault) {
		return &core.SearchError{
			Kind:       core.SearchErrorServerFault,
			Message:    fault.Message,
			ID:         fault.ID,
			StatusCode: fault.StatusCode,
			Err:        err,
		}
	}

	searchErr := &core.SearchError{Kind: core.SearchErrorNetwork, Message: networkSearchMessage, Err: err}
	var transport *core.TransportError
	if errors.As(err, &transport) {
		searchErr.StatusCode = transport.StatusCode
	}
	return searchErr
}

func normalizeQuery(query core.SearchQuery) core.SearchQuery {
	query.Goal = strings.TrimSpace(query.Goal)
	query.Location = strings.TrimSpace(query.Location)
	query.CountryCode = strings.ToUpper(strings.TrimSpace(query.CountryCode))
	if !query.LocationBased {
		query.Location = ""
	}
	return query
}
