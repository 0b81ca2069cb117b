package geocode

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/forest-watch/internal/resilience"
)

// Resolver drives the cache-then-provider pipeline: cache (alias key
// preferred), then the free provider, then the metered provider while budget
// remains. Absence is never an error; unresolved queries come back as a nil
// Result plus per-attempt diagnostics.
type Resolver struct {
	cache    Cache
	free     Provider
	premium  Provider
	budget   *Budget
	retry    resilience.RetryConfig
	enricher *Enricher
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithPremiumProvider adds a metered provider consulted only when the free
// provider yields nothing usable and budget remains.
func WithPremiumProvider(p Provider, budget *Budget) ResolverOption {
	return func(r *Resolver) {
		r.premium = p
		r.budget = budget
	}
}

// WithRetryConfig overrides the transient-failure retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) ResolverOption {
	return func(r *Resolver) { r.retry = cfg }
}

// WithEnricher attaches the background premium-upgrade worker.
func WithEnricher(e *Enricher) ResolverOption {
	return func(r *Resolver) { r.enricher = e }
}

// NewResolver creates a resolver over the given cache and free provider.
func NewResolver(cache Cache, free Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache: cache,
		free:  free,
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolution is the outcome of resolving one ordered candidate list.
type Resolution struct {
	// Result is nil when every candidate failed to resolve.
	Result   *Result   `json:"result,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Resolved reports whether coordinates were obtained.
func (r *Resolution) Resolved() bool { return r.Result != nil }

// NoResult reports whether the resolution failed because the providers
// definitively found nothing, as opposed to transient or configuration
// failures. Budget exhaustion does not disqualify: the free provider already
// answered cleanly with no result by the time the budget is consulted.
func (r *Resolution) NoResult() bool {
	if r.Resolved() || len(r.Attempts) == 0 {
		return false
	}
	for _, a := range r.Attempts {
		if a.Outcome != OutcomeEmpty && a.Outcome != OutcomeLimitReached {
			return false
		}
	}
	return true
}

// FailureReason summarizes an unresolved resolution for diagnostics, by the
// most significant outcome observed: ERROR > CONFIG > LIMIT_REACHED > EMPTY.
func (r *Resolution) FailureReason() string {
	if r.Resolved() {
		return ""
	}
	if len(r.Attempts) == 0 {
		return "no query candidates"
	}

	pick := func(outcome Outcome) *Attempt {
		for i := len(r.Attempts) - 1; i >= 0; i-- {
			if r.Attempts[i].Outcome == outcome {
				return &r.Attempts[i]
			}
		}
		return nil
	}

	for _, outcome := range []Outcome{OutcomeError, OutcomeConfig, OutcomeLimitReached, OutcomeEmpty} {
		if a := pick(outcome); a != nil {
			reason := string(a.Outcome)
			if a.Detail != "" {
				reason += ": " + a.Detail
			}
			return reason
		}
	}
	return "unresolved"
}

// Resolve tries each query candidate, most to least specific, through the
// full cache-then-provider pipeline, stopping at the first success. aliasKey
// optionally names the same real place across differently phrased queries.
func (r *Resolver) Resolve(ctx context.Context, candidates []string, aliasKey string) *Resolution {
	res := &Resolution{}
	akey := AliasKey(aliasKey)

	for _, query := range candidates {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		qkey := QueryKey(query)

		if entry := r.lookupCache(ctx, akey, qkey); entry != nil {
			res.Attempts = append(res.Attempts, Attempt{
				Query:    query,
				Provider: entry.Provider,
				Outcome:  OutcomeCacheHit,
			})
			res.Result = &Result{
				Latitude:    entry.Latitude,
				Longitude:   entry.Longitude,
				DisplayName: entry.DisplayName,
				Confidence:  entry.Confidence,
				Provider:    entry.Provider,
				Matched:     true,
			}
			r.maybeEnqueueUpgrade(qkey, akey, query, entry.Provider)
			return res
		}

		if result := r.tryProvider(ctx, r.free, query, res); result != nil {
			r.storeResult(ctx, qkey, akey, result)
			res.Result = result
			r.maybeEnqueueUpgrade(qkey, akey, query, result.Provider)
			return res
		}

		if r.premium == nil {
			continue
		}
		if r.budget != nil && !r.budget.Take() {
			res.Attempts = append(res.Attempts, Attempt{
				Query:    query,
				Provider: r.premium.Name(),
				Outcome:  OutcomeLimitReached,
				Detail:   "per-run lookup budget exhausted",
			})
			continue
		}
		if result := r.tryProvider(ctx, r.premium, query, res); result != nil {
			r.storeResult(ctx, qkey, akey, result)
			res.Result = result
			return res
		}
	}

	return res
}

// lookupCache checks the alias key first, then the query key.
func (r *Resolver) lookupCache(ctx context.Context, akey, qkey string) *CacheEntry {
	for _, key := range []string{akey, qkey} {
		if key == "" {
			continue
		}
		entry, err := r.cache.Get(ctx, key)
		if err != nil {
			zap.L().Warn("geocode: cache read failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if entry != nil {
			return entry
		}
	}
	return nil
}

// tryProvider runs one provider with retry and records the attempt. Returns
// the result only on a usable match.
func (r *Resolver) tryProvider(ctx context.Context, p Provider, query string, res *Resolution) *Result {
	retry := r.retry
	retry.OnRetry = resilience.RetryLogger("geocode", p.Name())

	result, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*Result, error) {
		return p.Geocode(ctx, query)
	})

	attempt := Attempt{Query: query, Provider: p.Name()}
	switch {
	case err == nil && result != nil && result.Matched:
		attempt.Outcome = OutcomeMatched
		res.Attempts = append(res.Attempts, attempt)
		return result
	case err == nil:
		attempt.Outcome = OutcomeEmpty
	case resilience.IsEmptyResult(err):
		attempt.Outcome = OutcomeEmpty
		attempt.Detail = err.Error()
	case resilience.IsConfigError(err):
		attempt.Outcome = OutcomeConfig
		attempt.Detail = err.Error()
	default:
		attempt.Outcome = OutcomeError
		attempt.Detail = err.Error()
	}
	res.Attempts = append(res.Attempts, attempt)
	return nil
}

func (r *Resolver) storeResult(ctx context.Context, qkey, akey string, result *Result) {
	entry := CacheEntry{
		Latitude:    result.Latitude,
		Longitude:   result.Longitude,
		DisplayName: result.DisplayName,
		Confidence:  result.Confidence,
		Provider:    result.Provider,
	}
	for _, key := range []string{qkey, akey} {
		if key == "" {
			continue
		}
		if err := r.cache.Put(ctx, key, entry); err != nil {
			zap.L().Warn("geocode: cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// maybeEnqueueUpgrade schedules a background premium lookup for results
// served from cache or the free provider.
func (r *Resolver) maybeEnqueueUpgrade(qkey, akey, query, provider string) {
	if r.enricher == nil || r.premium == nil || provider == r.premium.Name() {
		return
	}
	r.enricher.Enqueue(UpgradeTask{QueryKey: qkey, AliasKey: akey, Query: query})
}
