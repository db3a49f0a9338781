// Package reconcile keeps materialized effects consistent with the
// documents: a debounced loop that projects desired effects per entity and
// diffs them against what is live.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/evhart/bivouac/internal/aggregate"
	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/internal/projection"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// DefaultQuietPeriod is the trailing-edge debounce window.
const DefaultQuietPeriod = 100 * time.Millisecond

// State names the engine's scheduling phase.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateRunning   State = "running"
)

// Engine runs reconciliation passes. Schedule is cheap and coalescing: a
// burst of calls within the quiet period yields exactly one pass. A pass
// already in flight is never interrupted; a Schedule during one queues a
// follow-up pass that re-diffs against whatever state resulted.
type Engine struct {
	builder *aggregate.Builder
	effects ports.EffectPort
	logger  *slog.Logger
	quiet   time.Duration
	metrics *Metrics

	mu      sync.Mutex
	state   State
	timer   *time.Timer
	pending bool
	runCtx  context.Context
	// known is the memory between passes: every entity that was tracked
	// or carried effects last time, so entities that fall out of every
	// document still get swept.
	known map[domain.EntityRef]struct{}
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithQuietPeriod overrides the debounce window.
func WithQuietPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.quiet = d
		}
	}
}

// WithMetrics sets the metric sink.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates a reconciliation engine.
func New(builder *aggregate.Builder, effects ports.EffectPort, opts ...Option) *Engine {
	e := &Engine{
		builder: builder,
		effects: effects,
		logger:  logging.NewNop(),
		quiet:   DefaultQuietPeriod,
		metrics: NewMetrics(nil),
		state:   StateIdle,
		known:   make(map[domain.EntityRef]struct{}),
		runCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start binds the context used by debounce-fired passes. Stop the engine by
// cancelling it; pending timers are discarded on the next fire.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()
}

// CurrentState reports the scheduling phase, for observability.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Schedule requests a pass after the quiet period. Trailing-edge debounce:
// only the last call in a burst fires, earlier pending timers are replaced.
func (e *Engine) Schedule() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
		e.pending = true
		return
	case StateScheduled:
		e.timer.Stop()
	}
	e.state = StateScheduled
	e.timer = time.AfterFunc(e.quiet, e.fire)
}

func (e *Engine) fire() {
	e.mu.Lock()
	if e.state != StateScheduled {
		e.mu.Unlock()
		return
	}
	ctx := e.runCtx
	if ctx.Err() != nil {
		e.state = StateIdle
		e.mu.Unlock()
		return
	}
	e.state = StateRunning
	e.mu.Unlock()

	if err := e.runPass(ctx); err != nil {
		e.logger.Error("reconciliation pass failed", "err", err)
	}

	e.mu.Lock()
	e.state = StateIdle
	rerun := e.pending
	e.pending = false
	e.mu.Unlock()

	if rerun {
		e.Schedule()
	}
}

// RunOnce executes one pass synchronously, outside the debounce machinery.
// The CLI and tests use it; the host uses it for a final flush on shutdown.
func (e *Engine) RunOnce(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateScheduled {
		e.timer.Stop()
	}
	e.state = StateRunning
	e.mu.Unlock()

	err := e.runPass(ctx)

	e.mu.Lock()
	e.state = StateIdle
	e.pending = false
	e.mu.Unlock()
	return err
}

// runPass does the actual work: build context, walk the entity universe,
// diff desired against live per category, sweep strays. Failures on one
// entity never abort the batch; the next pass re-diffs the mismatch anyway.
func (e *Engine) runPass(ctx context.Context) error {
	started := time.Now()

	g, err := e.builder.Build(ctx)
	if err != nil {
		return err
	}

	tracked := g.Tracked()
	candidates := g.ScopeCandidates()
	opts := projection.Options{Tracked: tracked, ScopeCandidates: candidates}

	universe := e.universe(ctx, tracked, candidates)
	nextKnown := make(map[domain.EntityRef]struct{})

	for _, entity := range universe {
		desired := projection.Project(g, entity, opts)
		if err := e.reconcileEntity(ctx, entity, desired); err != nil {
			e.metrics.EntityFailures.Inc()
			e.logger.Warn("entity reconciliation failed",
				"entity", entity, "err", err)
			// Keep it on the books so the next pass retries the sweep.
			nextKnown[entity] = struct{}{}
			continue
		}
		if !desired.Empty() {
			nextKnown[entity] = struct{}{}
		}
	}
	for _, entity := range tracked {
		nextKnown[entity] = struct{}{}
	}

	e.mu.Lock()
	e.known = nextKnown
	e.mu.Unlock()

	e.metrics.Passes.Inc()
	e.metrics.PassDuration.Observe(time.Since(started).Seconds())
	e.logger.Debug("reconciliation pass complete",
		"entities", len(universe), "tracked", len(tracked), "took", time.Since(started))
	return nil
}

// universe is every entity this pass must visit: currently tracked, scope
// candidates, everything remembered from the last pass, and everything the
// effect port still decorates. The last two are how stale entities get
// swept. Sorted for deterministic order.
func (e *Engine) universe(ctx context.Context, tracked, candidates []domain.EntityRef) []domain.EntityRef {
	set := make(map[domain.EntityRef]struct{})
	for _, t := range tracked {
		set[t] = struct{}{}
	}
	for _, c := range candidates {
		set[c] = struct{}{}
	}

	e.mu.Lock()
	for k := range e.known {
		set[k] = struct{}{}
	}
	e.mu.Unlock()

	if bearing, err := e.effects.Entities(ctx); err != nil {
		e.logger.Warn("effect port enumeration failed", "err", err)
	} else {
		for _, b := range bearing {
			set[b] = struct{}{}
		}
	}

	out := make([]domain.EntityRef, 0, len(set))
	for entity := range set {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// reconcileEntity applies the three categories in fixed order so effect
// identity stays stable within an entity.
func (e *Engine) reconcileEntity(ctx context.Context, entity domain.EntityRef, desired domain.DesiredEffects) error {
	live, err := e.effects.List(ctx, entity)
	if err != nil {
		return err
	}
	byCategory := make(map[domain.EffectCategory]domain.Effect, len(live))
	for _, eff := range live {
		byCategory[eff.Category] = eff
	}

	for _, cat := range domain.EffectCategories {
		want := desired.ByCategory(cat)
		have, exists := byCategory[cat]

		switch {
		case want == nil && !exists:
			// Absence is a valid terminal state.

		case want == nil && exists:
			if err := e.effects.Remove(ctx, entity, cat); err != nil {
				return err
			}
			e.metrics.EffectOps.WithLabelValues("delete").Inc()

		case !exists:
			if _, err := e.effects.Apply(ctx, entity, cat, *want); err != nil {
				return err
			}
			e.metrics.EffectOps.WithLabelValues("create").Inc()

		default:
			if want.Equal(&have.Payload) {
				continue
			}
			if _, ok, err := e.effects.Resolve(ctx, have.ID); err != nil {
				return err
			} else if !ok {
				e.logger.Debug("stale effect reference, recreating",
					"entity", entity, "category", cat)
			}
			if _, err := e.effects.Apply(ctx, entity, cat, *want); err != nil {
				return err
			}
			e.metrics.EffectOps.WithLabelValues("update").Inc()
		}
	}
	return nil
}
