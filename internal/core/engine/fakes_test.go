package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/searchprobe/searchprobe/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type searchReply struct {
	result *core.SearchResult
	err    error
}

// gatedSearcher blocks every call on a per-goal reply channel and ignores ctx,
// so a test controls the order in which searches resolve.
type gatedSearcher struct {
	mu      sync.Mutex
	calls   int
	ctxs    map[string]context.Context
	replies map[string]chan searchReply
	started chan string
}

func newGatedSearcher(goals ...string) *gatedSearcher {
	s := &gatedSearcher{
		ctxs:    make(map[string]context.Context),
		replies: make(map[string]chan searchReply),
		started: make(chan string, len(goals)),
	}
	for _, goal := range goals {
		s.replies[goal] = make(chan searchReply, 1)
	}
	return s
}

func (s *gatedSearcher) Search(ctx context.Context, query core.SearchQuery) (*core.SearchResult, error) {
	s.mu.Lock()
	s.calls++
	s.ctxs[query.Goal] = ctx
	reply := s.replies[query.Goal]
	s.mu.Unlock()

	s.started <- query.Goal
	r := <-reply
	return r.result, r.err
}

func (s *gatedSearcher) reply(goal string, result *core.SearchResult, err error) {
	s.replies[goal] <- searchReply{result: result, err: err}
}

func (s *gatedSearcher) ctxFor(goal string) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctxs[goal]
}

// scriptedSearcher answers searches in order from a fixed script.
type scriptedSearcher struct {
	mu     sync.Mutex
	calls  int
	script []searchReply
}

func (s *scriptedSearcher) Search(_ context.Context, _ core.SearchQuery) (*core.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.script[s.calls%len(s.script)]
	s.calls++
	return r.result, r.err
}

func (s *scriptedSearcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeLookup answers reverse lookups per vendor name. When gate is set every call
// blocks until the gate is closed or ctx is cancelled.
type fakeLookup struct {
	calls   atomic.Int32
	gate    chan struct{}
	answers map[string]*core.ReverseLookup
	errs    map[string]error

	mu        sync.Mutex
	countries []string
}

func (f *fakeLookup) ReverseLookup(ctx context.Context, vendor core.Vendor, _ string, countryCode string) (*core.ReverseLookup, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.countries = append(f.countries, countryCode)
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[vendor.Name]; err != nil {
		return nil, err
	}
	if answer, ok := f.answers[vendor.Name]; ok {
		return answer, nil
	}
	return &core.ReverseLookup{}, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[core.EnrichmentKey]*core.ReverseLookup
	ttls    map[core.EnrichmentKey]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries: make(map[core.EnrichmentKey]*core.ReverseLookup),
		ttls:    make(map[core.EnrichmentKey]time.Duration),
	}
}

func (c *memoryCache) GetEnrichment(_ context.Context, key core.EnrichmentKey) (*core.ReverseLookup, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memoryCache) SetEnrichment(_ context.Context, key core.EnrichmentKey, lookup *core.ReverseLookup, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = lookup
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type fakeSender struct {
	mu          sync.Mutex
	submissions []core.FeedbackSubmission
	status      int
	err         error
}

func (f *fakeSender) SubmitFeedback(_ context.Context, submission core.FeedbackSubmission) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submission)
	return f.status, f.err
}

func (f *fakeSender) Sent() []core.FeedbackSubmission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.FeedbackSubmission(nil), f.submissions...)
}

type recordedHistory struct {
	mu      sync.Mutex
	results []string
}

func (h *recordedHistory) RecordSearch(_ context.Context, _ core.SearchQuery, result *core.SearchResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, result.ID)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func sampleResult(id string, vendors ...core.Vendor) *core.SearchResult {
	return &core.SearchResult{
		ID:      id,
		Count:   len(vendors),
		Results: vendors,
		Meta: core.Meta{
			Time:        1.2,
			SearchQuery: "violin tutor",
			Solution:    "ok",
			SearchSpace: []string{"a", "b"},
		},
	}
}

func validQuery(goal string) core.SearchQuery {
	return core.SearchQuery{
		Goal:          goal,
		Location:      "Austin, TX",
		CountryCode:   "US",
		LocationBased: true,
	}
}
