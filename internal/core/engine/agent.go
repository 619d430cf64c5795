package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/searchprobe/searchprobe/internal/core"
	"github.com/searchprobe/searchprobe/internal/metrics"
)

// ErrOrphaned is returned when an agent's result set has been replaced.
var ErrOrphaned = errors.New("enrichment agent belongs to a replaced result set")

const networkFailureMessage = "unable to reach the rating service"

// EnrichmentAgent fetches a supplemental rating for one vendor that lacks a native one.
// Its outcome is private to the agent; the vendor is never modified.
type EnrichmentAgent struct {
	vendor core.Vendor
	ref    core.VendorRef
	opts   BoardOptions
	ctx    context.Context

	mu      sync.Mutex
	outcome core.EnrichmentOutcome
	err     error
	done    chan struct{}
}

func newEnrichmentAgent(ctx context.Context, index int, vendor core.Vendor, opts BoardOptions) *EnrichmentAgent {
	ref := core.VendorRef{Index: index, Name: vendor.Name}
	return &EnrichmentAgent{
		vendor:  vendor,
		ref:     ref,
		opts:    opts,
		ctx:     ctx,
		outcome: core.EnrichmentOutcome{Vendor: ref, Status: core.EnrichmentNotStarted},
	}
}

// Vendor returns the vendor this agent enriches.
func (a *EnrichmentAgent) Vendor() core.Vendor {
	return a.vendor
}

// Outcome returns a copy of the current outcome.
func (a *EnrichmentAgent) Outcome() core.EnrichmentOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// Start begins a lookup in the background and returns immediately. Calling Start while a
// lookup is pending, or after the outcome is terminal, is a no-op that returns the
// current outcome.
func (a *EnrichmentAgent) Start(location, countryCode string) (core.EnrichmentOutcome, error) {
	outcome, _, err := a.start(location, countryCode)
	return outcome, err
}

// Enrich starts a lookup and waits for it. If another trigger already owns the pending
// lookup, Enrich returns the pending outcome without waiting or issuing a request.
func (a *EnrichmentAgent) Enrich(ctx context.Context, location, countryCode string) (core.EnrichmentOutcome, error) {
	outcome, started, err := a.start(location, countryCode)
	if err != nil || !started {
		if err == nil && outcome.Status == core.EnrichmentFailed {
			err = a.lastErr()
		}
		return outcome, err
	}
	return a.Wait(ctx)
}

// Wait blocks until the current lookup finishes or ctx is done.
func (a *EnrichmentAgent) Wait(ctx context.Context) (core.EnrichmentOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	done := a.done
	a.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return a.Outcome(), ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome, a.err
}

// Retry resets a failed outcome so the user can trigger the lookup again.
// It reports whether the agent was reset.
func (a *EnrichmentAgent) Retry() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.outcome.Status != core.EnrichmentFailed {
		return false
	}
	a.outcome = core.EnrichmentOutcome{Vendor: a.ref, Status: core.EnrichmentNotStarted}
	a.err = nil
	a.done = nil
	return true
}

func (a *EnrichmentAgent) lastErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *EnrichmentAgent) start(location, countryCode string) (core.EnrichmentOutcome, bool, error) {
	location = strings.TrimSpace(location)
	countryCode = strings.TrimSpace(countryCode)

	var missing []string
	if location == "" {
		missing = append(missing, "location")
	}
	if countryCode == "" {
		missing = append(missing, "country_code")
	}
	if len(missing) > 0 {
		return a.Outcome(), false, &core.ValidationError{Fields: missing, Message: "location and country code are required to look up ratings"}
	}

	a.mu.Lock()
	if a.outcome.Status != core.EnrichmentNotStarted {
		outcome := a.outcome
		a.mu.Unlock()
		return outcome, false, nil
	}
	if a.ctx.Err() != nil {
		outcome := a.outcome
		a.mu.Unlock()
		return outcome, false, ErrOrphaned
	}

	a.outcome.Status = core.EnrichmentPending
	done := make(chan struct{})
	a.done = done
	outcome := a.outcome
	a.mu.Unlock()

	go a.run(location, countryCode, done)
	return outcome, true, nil
}

func (a *EnrichmentAgent) run(location, countryCode string, done chan struct{}) {
	defer close(done)

	started := time.Now()
	key := core.EnrichmentKey{
		Vendor:      strings.ToLower(strings.TrimSpace(a.vendor.Name)),
		Source:      strings.TrimSpace(a.vendor.Source),
		Location:    strings.ToLower(location),
		CountryCode: strings.ToUpper(countryCode),
	}

	if lookup := a.cached(key); lookup != nil {
		a.finish(lookup, nil, true)
		metrics.RecordEnrichment(a.outcomeLabel(), true, time.Since(started))
		return
	}

	if a.opts.Lookup == nil {
		a.finish(nil, errors.New("rating lookup is not configured"), false)
		metrics.RecordEnrichment(a.outcomeLabel(), false, time.Since(started))
		return
	}

	lookup, err := a.opts.Lookup.ReverseLookup(a.ctx, a.vendor, location, countryCode)
	if a.ctx.Err() != nil {
		logDebug(a.opts.Logger, "Discarding enrichment for replaced result set",
			zap.String("vendor", a.vendor.Name))
		a.finish(nil, ErrOrphaned, false)
		return
	}

	a.finish(lookup, err, false)
	a.store(key, lookup, err)
	metrics.RecordEnrichment(a.outcomeLabel(), false, time.Since(started))
}

func (a *EnrichmentAgent) finish(lookup *core.ReverseLookup, err error, fromCache bool) {
	resolvedAt := nowFrom(a.opts.Clock)

	a.mu.Lock()
	defer a.mu.Unlock()

	outcome := core.EnrichmentOutcome{
		Vendor:     a.ref,
		FromCache:  fromCache,
		ResolvedAt: &resolvedAt,
	}

	switch {
	case err != nil:
		outcome.Status = core.EnrichmentFailed
		outcome.ErrorMessage = networkFailureMessage
		if errors.Is(err, ErrOrphaned) {
			outcome.ErrorMessage = "enrichment cancelled"
		}
		a.err = &core.EnrichmentError{Vendor: a.vendor.Name, Message: outcome.ErrorMessage, Err: err}
		logWarn(a.opts.Logger, "Vendor enrichment failed",
			zap.String("vendor", a.vendor.Name),
			zap.Error(err))
	case lookup == nil:
		outcome.Status = core.EnrichmentFailed
		outcome.ErrorMessage = "empty response from rating service"
		a.err = &core.EnrichmentError{Vendor: a.vendor.Name, Message: outcome.ErrorMessage}
	case lookup.Rejected():
		outcome.Status = core.EnrichmentFailed
		outcome.ErrorMessage = lookup.Detail
		a.err = &core.EnrichmentError{Vendor: a.vendor.Name, Rejected: true, Message: lookup.Detail}
		logDebug(a.opts.Logger, "Vendor enrichment rejected",
			zap.String("vendor", a.vendor.Name),
			zap.String("detail", lookup.Detail))
	default:
		outcome.Status = core.EnrichmentSucceeded
		outcome.Rating = lookup.Rating
		outcome.RatingCount = lookup.RatingCount
		outcome.Latitude = lookup.Latitude
		outcome.Longitude = lookup.Longitude
		a.err = nil
	}

	a.outcome = outcome
}

func (a *EnrichmentAgent) cached(key core.EnrichmentKey) *core.ReverseLookup {
	if a.opts.Cache == nil {
		return nil
	}
	lookup, err := a.opts.Cache.GetEnrichment(a.ctx, key)
	if err != nil {
		logDebug(a.opts.Logger, "Enrichment cache read failed", zap.Error(err))
		return nil
	}
	return lookup
}

// store caches provider answers. Transport failures are never cached.
func (a *EnrichmentAgent) store(key core.EnrichmentKey, lookup *core.ReverseLookup, err error) {
	if a.opts.Cache == nil || err != nil || lookup == nil {
		return
	}

	ttl := a.opts.CacheTTL
	if lookup.Rejected() {
		ttl = a.opts.RejectionTTL
	}
	if ttl <= 0 {
		return
	}

	if err := a.opts.Cache.SetEnrichment(a.ctx, key, lookup, ttl); err != nil {
		logDebug(a.opts.Logger, "Enrichment cache write failed", zap.Error(err))
	}
}

func (a *EnrichmentAgent) outcomeLabel() string {
	return a.Outcome().Status.String()
}
