package engine

import (
	"context"
	"sort"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"golang.org/x/sync/errgroup"

	"github.com/searchprobe/searchprobe/internal/core"
)

const defaultEnrichWorkers = 4

// BoardOptions configures the enrichment agents created for a result set.
type BoardOptions struct {
	Lookup       ReverseLookuper
	Cache        EnrichmentCache
	CacheTTL     time.Duration
	RejectionTTL time.Duration
	Workers      int
	Logger       *logging.Logger
	Clock        func() time.Time
}

// EnrichmentBoard holds one agent per unrated vendor of a single result set.
// Cancelling the board orphans every agent on it.
type EnrichmentBoard struct {
	ctx     context.Context
	cancel  context.CancelFunc
	agents  map[int]*EnrichmentAgent
	workers int
}

// NewEnrichmentBoard creates agents for every vendor in result that has no native rating.
func NewEnrichmentBoard(result *core.SearchResult, opts BoardOptions) *EnrichmentBoard {
	ctx, cancel := context.WithCancel(context.Background())
	board := &EnrichmentBoard{
		ctx:     ctx,
		cancel:  cancel,
		agents:  make(map[int]*EnrichmentAgent),
		workers: opts.Workers,
	}
	if board.workers <= 0 {
		board.workers = defaultEnrichWorkers
	}

	if result == nil {
		return board
	}

	for i, vendor := range result.Results {
		if vendor.HasRating() {
			continue
		}
		board.agents[i] = newEnrichmentAgent(ctx, i, vendor, opts)
	}
	return board
}

// Agent returns the agent for the vendor at index, if that vendor needs enrichment.
func (b *EnrichmentBoard) Agent(index int) (*EnrichmentAgent, bool) {
	if b == nil {
		return nil, false
	}
	agent, ok := b.agents[index]
	return agent, ok
}

// Len returns the number of agents on the board.
func (b *EnrichmentBoard) Len() int {
	if b == nil {
		return 0
	}
	return len(b.agents)
}

// Outcomes returns every agent's outcome ordered by vendor index.
func (b *EnrichmentBoard) Outcomes() []core.EnrichmentOutcome {
	if b == nil {
		return nil
	}
	outcomes := make([]core.EnrichmentOutcome, 0, len(b.agents))
	for _, index := range b.indexes() {
		outcomes = append(outcomes, b.agents[index].Outcome())
	}
	return outcomes
}

// EnrichAll triggers every agent and waits for them, bounded by the worker limit.
// Individual failures stay in each agent's outcome.
func (b *EnrichmentBoard) EnrichAll(ctx context.Context, location, countryCode string) ([]core.EnrichmentOutcome, error) {
	if b == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for _, index := range b.indexes() {
		agent := b.agents[index]
		g.Go(func() error {
			_, err := agent.Enrich(gctx, location, countryCode)
			if validationErr := asValidation(err); validationErr != nil {
				return validationErr
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return b.Outcomes(), err
	}
	return b.Outcomes(), nil
}

// Cancel orphans all agents. In-flight lookups are aborted and their answers discarded.
func (b *EnrichmentBoard) Cancel() {
	if b == nil || b.cancel == nil {
		return
	}
	b.cancel()
}

// Orphaned reports whether the board has been cancelled.
func (b *EnrichmentBoard) Orphaned() bool {
	if b == nil {
		return true
	}
	return b.ctx.Err() != nil
}

func (b *EnrichmentBoard) indexes() []int {
	indexes := make([]int, 0, len(b.agents))
	for index := range b.agents {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	return indexes
}
