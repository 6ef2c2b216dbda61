// Package healing implements the self-healing locator resolution
// engine: when a configured locator fails to resolve, the engine finds
// the intended element through fallback strategies, caches the
// discovered mapping and reports healing activity.
package healing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/selfheal/pkg/cache"
	"github.com/devicelab-dev/selfheal/pkg/config"
	"github.com/devicelab-dev/selfheal/pkg/locator"
	"github.com/devicelab-dev/selfheal/pkg/logger"
	"github.com/devicelab-dev/selfheal/pkg/snapshot"
	"github.com/devicelab-dev/selfheal/pkg/strategy"
)

// Resolution is the successful outcome of a Resolve call.
type Resolution struct {
	// Locator is the locator that resolved: the original when no
	// healing was needed, otherwise the healed replacement.
	Locator locator.Locator

	// Healed is true when the original locator failed and a
	// replacement was found.
	Healed bool

	// Strategy names the strategy that produced the replacement;
	// "cache" for cache hits, empty when no healing occurred.
	Strategy string

	// Confidence of the healed match, 1 for direct resolutions.
	Confidence float64

	// CacheHit is true when the replacement came from the healing
	// cache rather than a fresh strategy search.
	CacheHit bool
}

// Options configures an Engine.
type Options struct {
	// Config supplies thresholds and limits; nil selects defaults.
	Config *config.Config

	// Store persists the healing cache between runs; nil keeps the
	// cache in-memory only.
	Store cache.Store

	// Strategies overrides the strategy chain. Order is the healing
	// priority. Nil builds the standard chain from Config.
	Strategies []strategy.Strategy

	// Comparer overrides the visual similarity backend used by the
	// standard chain.
	Comparer strategy.Comparer
}

// Engine is the healing orchestrator: the single entry point callers
// use to resolve locators. One Engine instance owns the process-wide
// cache and statistics and is shared by all test workers.
type Engine struct {
	cfg        *config.Config
	cache      *cache.Cache
	strategies []strategy.Strategy
	stats      *collector

	// hints remembers element properties from prior successful
	// resolutions, keyed by locator fingerprint. Strategies match
	// against these.
	hintsMu sync.Mutex
	hints   map[string]strategy.Hints
}

// New creates an Engine. A corrupt persisted cache is logged and
// replaced with an empty one; healing is a best-effort layer and never
// blocks startup.
func New(opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	c, err := cache.New(opts.Store)
	if err != nil {
		if errors.Is(err, cache.ErrCorrupt) {
			logger.Warn("healing cache corrupt, starting empty", "error", err)
		} else {
			logger.Warn("healing cache unavailable, starting empty", "error", err)
		}
	}

	strategies := opts.Strategies
	if strategies == nil {
		strategies = chainFromConfig(cfg.Strategies, opts.Comparer)
	}

	return &Engine{
		cfg:        cfg,
		cache:      c,
		strategies: strategies,
		stats:      newCollector(cfg.RecentCapacity),
		hints:      make(map[string]strategy.Hints),
	}
}

// chainFromConfig builds the standard strategy chain with configured
// thresholds.
func chainFromConfig(s config.Strategies, cmp strategy.Comparer) []strategy.Strategy {
	text := strategy.NewText()
	text.ExactConfidence = s.TextExactConfidence
	text.PartialConfidence = s.TextPartialConfidence

	attr := strategy.NewAttribute()
	attr.Threshold = s.AttributeThreshold

	nearby := strategy.NewNearby()
	nearby.Radius = s.NearbyRadius
	nearby.Confidence = s.NearbyConfidence

	pos := strategy.NewPosition()
	pos.MaxDistance = s.PositionMaxDistance
	pos.MaxConfidence = s.PositionMaxConfidence
	pos.MinConfidence = s.PositionMinConfidence

	visual := strategy.NewVisual(cmp)
	visual.Threshold = s.VisualThreshold

	return []strategy.Strategy{text, attr, nearby, pos, visual}
}

// Resolve resolves a locator against the live page, healing it if the
// direct attempt fails. The call is bounded by the configured resolve
// timeout (or the context deadline, whichever is sooner); on timeout
// the remaining strategies are abandoned and no partial match is
// returned.
func (e *Engine) Resolve(ctx context.Context, loc locator.Locator, provider snapshot.Provider) (Resolution, error) {
	return e.ResolveWithHints(ctx, loc, strategy.Hints{}, provider)
}

// ResolveWithHints is Resolve with caller-supplied hints (last known
// text, attributes, bounds, screenshot region, anchor) merged over
// whatever the engine has learned about the locator from prior
// resolutions.
func (e *Engine) ResolveWithHints(ctx context.Context, loc locator.Locator, hints strategy.Hints, provider snapshot.Provider) (Resolution, error) {
	start := time.Now()
	defer func() {
		metricResolveDuration.Observe(time.Since(start).Seconds())
	}()

	if e.cfg.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ResolveTimeout)
		defer cancel()
	}

	snap, err := provider.Snapshot(ctx)
	if err != nil {
		return Resolution{}, e.snapshotError(ctx, loc, start, err)
	}
	page := snap.Fingerprint()

	// Step 1: direct resolution. Success means no healing occurred
	// and nothing is recorded.
	if node, ok := snap.Resolve(loc); ok {
		e.learn(loc, node)
		return Resolution{Locator: loc, Confidence: 1}, nil
	}

	// The primary locator failed: from here on this is a healing
	// attempt.
	e.stats.recordAttempt()
	metricAttempts.Inc()
	logger.Debug("primary locator failed, healing", "locator", loc.String(), "page", page)

	q := strategy.Query{Locator: loc, Hints: e.mergedHints(loc, hints)}

	// Step 2: consult the cache. A cached healed locator is validated
	// against a fresh snapshot; if it no longer resolves it takes a
	// strike and the search falls through to strategies.
	if healed, ok := e.cache.Lookup(loc, page); ok {
		fresh, err := provider.Snapshot(ctx)
		if err != nil {
			e.stats.recordFailure()
			return Resolution{}, e.snapshotError(ctx, loc, start, err)
		}
		snap = fresh

		if node, ok := snap.Resolve(healed); ok {
			e.cache.RecordSuccess(loc, page, healed, 1)
			rec := e.newRecord(loc, healed, "cache", 1, page, start, true)
			e.stats.recordSuccess(rec)
			metricCacheHits.Inc()
			metricSuccesses.WithLabelValues("cache").Inc()
			e.learn(loc, node)
			logger.Info("healed locator served from cache",
				"original", loc.String(), "healed", healed.String())
			return Resolution{
				Locator:    healed,
				Healed:     true,
				Strategy:   "cache",
				Confidence: 1,
				CacheHit:   true,
			}, nil
		}
		e.cache.RecordFailure(loc, page)
		logger.Debug("cached healed locator went stale", "original", loc.String())
	}

	// Step 3: strategy search in priority order. First match wins.
	var attempted []string
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			e.stats.recordFailure()
			metricFailures.WithLabelValues(ErrTimeout.Code).Inc()
			return Resolution{}, ErrTimeout.with(loc, attempted, time.Since(start), ctx.Err())
		}
		attempted = append(attempted, s.Name())

		m, ok := s.Attempt(q, snap)
		if !ok {
			continue
		}
		// A match produced after the deadline is discarded; the loop
		// head turns it into a timeout failure.
		if ctx.Err() != nil {
			continue
		}
		// The replacement must resolve against the snapshot it was
		// found in; a strategy whose derived locator does not replay
		// is treated as a miss.
		if _, ok := snap.Resolve(m.Locator); !ok {
			continue
		}

		// Step 4: success. Cache, record, report.
		e.cache.RecordSuccess(loc, page, m.Locator, m.Confidence)
		rec := e.newRecord(loc, m.Locator, s.Name(), m.Confidence, page, start, false)
		e.stats.recordSuccess(rec)
		metricSuccesses.WithLabelValues(s.Name()).Inc()
		e.learn(loc, m.Node)
		logger.Info("locator healed",
			"original", loc.String(),
			"healed", m.Locator.String(),
			"strategy", s.Name(),
			"confidence", m.Confidence)
		return Resolution{
			Locator:    m.Locator,
			Healed:     true,
			Strategy:   s.Name(),
			Confidence: m.Confidence,
		}, nil
	}

	e.stats.recordFailure()
	if ctx.Err() != nil {
		metricFailures.WithLabelValues(ErrTimeout.Code).Inc()
		return Resolution{}, ErrTimeout.with(loc, attempted, time.Since(start), ctx.Err())
	}
	metricFailures.WithLabelValues(ErrElementNotFound.Code).Inc()
	logger.Warn("healing failed", "locator", loc.String(), "tried", attempted)
	return Resolution{}, ErrElementNotFound.with(loc, attempted, time.Since(start), nil)
}

// snapshotError classifies a provider failure: a blown deadline is a
// timeout, anything else means the driver is gone.
func (e *Engine) snapshotError(ctx context.Context, loc locator.Locator, start time.Time, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.with(loc, nil, time.Since(start), err)
	}
	return ErrSnapshotUnavailable.with(loc, nil, time.Since(start), err)
}

func (e *Engine) newRecord(original, healed locator.Locator, strategyName string, confidence float64, page string, start time.Time, cacheHit bool) HealingRecord {
	now := time.Now()
	return HealingRecord{
		ID:              newRecordID(now),
		Original:        original,
		Healed:          healed,
		Strategy:        strategyName,
		Confidence:      confidence,
		PageFingerprint: page,
		Timestamp:       now,
		Duration:        now.Sub(start),
		CacheHit:        cacheHit,
	}
}

// learn remembers the resolved node's identity for future healing of
// the same locator.
func (e *Engine) learn(loc locator.Locator, node *snapshot.Node) {
	h := strategy.Hints{
		Text: node.Text,
		Attributes: map[string]string{
			"id":    node.ID,
			"name":  node.Attr("name"),
			"class": strings.Join(node.Classes, " "),
			"tag":   node.Tag,
		},
		Region: node.Region,
	}
	if !node.Bounds.IsZero() {
		b := node.Bounds
		h.Bounds = &b
	}

	e.hintsMu.Lock()
	defer e.hintsMu.Unlock()
	// Preserve a registered anchor across relearns.
	if prev, ok := e.hints[loc.Fingerprint()]; ok && prev.Anchor != nil {
		h.Anchor = prev.Anchor
	}
	e.hints[loc.Fingerprint()] = h
}

// RegisterAnchor declares that a locator is positionally associated
// with a stable anchor locator, enabling the nearby-element strategy
// for it.
func (e *Engine) RegisterAnchor(loc, anchor locator.Locator) {
	e.hintsMu.Lock()
	defer e.hintsMu.Unlock()

	h := e.hints[loc.Fingerprint()]
	h.Anchor = &anchor
	e.hints[loc.Fingerprint()] = h
}

// mergedHints overlays caller-supplied hints onto learned ones;
// caller values win field by field.
func (e *Engine) mergedHints(loc locator.Locator, caller strategy.Hints) strategy.Hints {
	e.hintsMu.Lock()
	h := e.hints[loc.Fingerprint()]
	e.hintsMu.Unlock()

	if caller.Text != "" {
		h.Text = caller.Text
	}
	if caller.Attributes != nil {
		h.Attributes = caller.Attributes
	}
	if caller.Bounds != nil {
		h.Bounds = caller.Bounds
	}
	if caller.Region != nil {
		h.Region = caller.Region
	}
	if caller.Anchor != nil {
		h.Anchor = caller.Anchor
	}
	return h
}

// Stats returns a consistent point-in-time copy of the healing
// statistics. Safe to call while resolutions are in flight.
func (e *Engine) Stats() Statistics {
	return e.stats.snapshot(e.cache.Size())
}

// ClearCache removes every cached healed locator. Administrative
// reset for isolation between suites.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	logger.Info("healing cache cleared")
}

// Cache exposes the engine's cache for inspection tooling.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Close flushes the cache to its store. Call once at process
// shutdown.
func (e *Engine) Close() error {
	return e.cache.Flush()
}
