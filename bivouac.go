package bivouac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evhart/bivouac/internal/aggregate"
	"github.com/evhart/bivouac/internal/archive"
	"github.com/evhart/bivouac/internal/broadcast"
	"github.com/evhart/bivouac/internal/docstore"
	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/internal/reconcile"
	"github.com/evhart/bivouac/internal/relay"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// Version is the library version, stamped into CLI output and the MCP
// server identity.
var Version = "0.1.0"

// Host is the authoritative side of a session and the high-level entry
// point for the Bivouac library. It owns the single writer sequence: every
// document mutation, whether a relayed peer command or a host API call,
// flows through the same store, refresh broadcast, and reconciliation
// schedule.
type Host struct {
	self    domain.Identity
	bus     ports.Bus
	effects ports.EffectPort
	roster  ports.Roster
	storage ports.Storage
	logger  *slog.Logger

	quiet         time.Duration
	ackTimeout    time.Duration
	catalogSource func() ([]byte, error)
	registry      prometheus.Registerer

	docs        *docstore.Store
	relay       *relay.Relay
	builder     *aggregate.Builder
	engine      *reconcile.Engine
	broadcaster *broadcast.Broadcaster
	archive     *archive.Store
}

// Option defines a functional option for configuring the Host.
type Option func(*Host)

// WithLogger sets a custom structured logger for the host and every
// component it wires.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithQuietPeriod overrides the reconciliation debounce window.
func WithQuietPeriod(d time.Duration) Option {
	return func(h *Host) {
		h.quiet = d
	}
}

// WithAckTimeout overrides how long open broadcasts wait for the first ack.
func WithAckTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.ackTimeout = d
	}
}

// WithCatalogSource sets where the modifier catalog YAML is read from.
func WithCatalogSource(src func() ([]byte, error)) Option {
	return func(h *Host) {
		h.catalogSource = src
	}
}

// WithMetrics registers the host's reconciliation metrics on the given
// registerer. Without it no metrics are exported.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(h *Host) {
		h.registry = reg
	}
}

// New wires a Host over the four ports: storage for documents, a bus for
// session traffic, an effect port for materialized effects, and a roster
// for membership facts.
func New(self domain.Identity, storage ports.Storage, bus ports.Bus, effects ports.EffectPort, roster ports.Roster, opts ...Option) *Host {
	h := &Host{
		self:       self,
		bus:        bus,
		effects:    effects,
		roster:     roster,
		storage:    storage,
		logger:     logging.NewNop(),
		quiet:      reconcile.DefaultQuietPeriod,
		ackTimeout: broadcast.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.docs = docstore.New(storage, docstore.WithLogger(h.logger))
	h.relay = relay.New(h.docs, roster, relay.WithLogger(h.logger))

	var aggOpts []aggregate.Option
	if h.catalogSource != nil {
		aggOpts = append(aggOpts, aggregate.WithCatalogSource(h.catalogSource))
	}
	h.builder = aggregate.New(h.docs, roster, aggOpts...)

	engOpts := []reconcile.Option{
		reconcile.WithLogger(h.logger),
		reconcile.WithQuietPeriod(h.quiet),
	}
	if h.registry != nil {
		engOpts = append(engOpts, reconcile.WithMetrics(reconcile.NewMetrics(h.registry)))
	}
	h.engine = reconcile.New(h.builder, effects, engOpts...)

	h.broadcaster = broadcast.New(bus, self,
		broadcast.WithTimeout(h.ackTimeout),
		broadcast.WithLogger(h.logger),
	)
	h.archive = archive.New(effects)
	return h
}

// Run consumes the bus and, when the storage backend supports it, the
// storage change stream, until ctx is cancelled. On shutdown a final
// synchronous pass flushes any debounced work.
func (h *Host) Run(ctx context.Context) error {
	h.engine.Start(ctx)

	stream, err := h.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe bus: %w", err)
	}

	var changes <-chan domain.DocName
	if w, ok := h.storage.(ports.WatchableStorage); ok {
		changes, err = w.Watch(ctx)
		if err != nil {
			return fmt.Errorf("watch storage: %w", err)
		}
	}

	h.logger.Info("host running", "identity", h.self)
	for {
		select {
		case <-ctx.Done():
			h.flush(ctx)
			return ctx.Err()
		case env, ok := <-stream:
			if !ok {
				h.flush(ctx)
				return nil
			}
			h.dispatch(ctx, env)
		case key, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			h.storageChanged(ctx, key)
		}
	}
}

func (h *Host) dispatch(ctx context.Context, env domain.Envelope) {
	switch env.Type {
	case domain.MsgMutate:
		if env.Request == nil {
			h.logger.Warn("mutate envelope without request", "from", env.From)
			return
		}
		cmd := *env.Request
		// The transport's sender identity wins over whatever the
		// payload claims.
		cmd.From = env.From
		applied, err := h.relay.Handle(ctx, cmd)
		if err != nil {
			h.logger.Error("command handling failed", "op", cmd.Kind, "err", err)
			return
		}
		if applied {
			pol, _ := domain.PolicyFor(cmd.Kind)
			h.changed(ctx, pol.Doc)
		}
	case domain.MsgOpenAck:
		h.broadcaster.HandleAck(env)
	case domain.MsgOpen, domain.MsgRefresh:
		// Host-originated traffic echoed by a relaying transport.
	}
}

// storageChanged handles one backend change notification. Self-writes were
// marked on the ledger before the save and are absorbed here; anything else
// is an out-of-band edit that still needs a refresh and a pass.
func (h *Host) storageChanged(ctx context.Context, key domain.DocName) {
	if h.docs.Ledger().Absorb(key) {
		return
	}
	h.logger.Debug("external document change", "doc", key)
	h.changed(ctx, key)
}

// changed is the single exit path for every applied mutation: tell the
// clients to re-read, then ask for a reconciliation pass.
func (h *Host) changed(ctx context.Context, doc domain.DocName) {
	env := domain.Envelope{
		Type: domain.MsgRefresh,
		From: h.self,
		App:  string(doc),
	}
	if err := h.bus.Publish(ctx, env); err != nil {
		h.logger.Warn("refresh broadcast failed", "doc", doc, "err", err)
	}
	h.engine.Schedule()
}

func (h *Host) flush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.engine.RunOnce(flushCtx); err != nil {
		h.logger.Warn("shutdown flush failed", "err", err)
	}
}

// Submit runs one command through the exact path a bus-delivered command
// takes. Host-side ingestion surfaces (HTTP, MCP) use it. The bool reports
// whether a document changed.
func (h *Host) Submit(ctx context.Context, cmd domain.Command) (bool, error) {
	applied, err := h.relay.Handle(ctx, cmd)
	if err != nil {
		return false, err
	}
	if applied {
		pol, _ := domain.PolicyFor(cmd.Kind)
		h.changed(ctx, pol.Doc)
	}
	return applied, nil
}

// Document returns the fully-defaulted blob for a document.
func (h *Host) Document(ctx context.Context, name domain.DocName) (map[string]any, error) {
	return h.docs.ReadBlob(ctx, name)
}

// Effects lists the live effects attached to an entity.
func (h *Host) Effects(ctx context.Context, entity domain.EntityRef) ([]domain.Effect, error) {
	return h.effects.List(ctx, entity)
}

// Status assembles the current global read model, for reporting surfaces.
func (h *Host) Status(ctx context.Context) (domain.GlobalContext, error) {
	return h.builder.Build(ctx)
}

// OpenApp asks every peer to surface the named app. The returned channel
// delivers exactly one result: the first ack, or the timeout.
func (h *Host) OpenApp(ctx context.Context, app string) (string, <-chan broadcast.Result, error) {
	return h.broadcaster.Open(ctx, app)
}

// Archive exposes the effect archive.
func (h *Host) Archive() *archive.Store {
	return h.archive
}

// Reconcile runs one synchronous reconciliation pass, bypassing the
// debounce. Mostly useful in tests and CLI tooling.
func (h *Host) Reconcile(ctx context.Context) error {
	return h.engine.RunOnce(ctx)
}

// InvalidateCatalog forces the next pass to re-read the modifier catalog.
func (h *Host) InvalidateCatalog() {
	h.builder.InvalidateCatalog()
}

// mutate is the host-only read-modify-write helper. fn returns false to
// signal no-change, which skips the persist and the refresh.
func mutate[T any](ctx context.Context, h *Host, name domain.DocName, fn func(*T) bool) error {
	doc, err := docstore.Read[T](ctx, h.docs, name)
	if err != nil {
		return err
	}
	if !fn(&doc) {
		return nil
	}
	if err := h.docs.Write(ctx, name, doc); err != nil {
		return err
	}
	h.changed(ctx, name)
	return nil
}

// SetWatchLocked toggles the rest-tracking lock. While locked, peer watch
// commands are dropped; host edits remain possible.
func (h *Host) SetWatchLocked(ctx context.Context, locked bool) error {
	return mutate(ctx, h, domain.DocWatch, func(w *domain.WatchDoc) bool {
		if w.Locked == locked {
			return false
		}
		w.Locked = locked
		return true
	})
}

// ClearWatchSlot empties one watch slot regardless of the lock.
func (h *Host) ClearWatchSlot(ctx context.Context, slotID string) error {
	return mutate(ctx, h, domain.DocWatch, func(w *domain.WatchDoc) bool {
		slot, ok := w.Slots[slotID]
		if !ok || (slot.Entity == "" && slot.Notes == "") {
			return false
		}
		w.Slots[slotID] = domain.WatchSlot{}
		return true
	})
}

// SetHazard replaces the environmental hazard wholesale.
func (h *Host) SetHazard(ctx context.Context, hazard domain.HazardDoc) error {
	return mutate(ctx, h, domain.DocHazard, func(doc *domain.HazardDoc) bool {
		*doc = hazard
		return true
	})
}

// ClearHazard turns the hazard off, keeping scope settings for next time.
func (h *Host) ClearHazard(ctx context.Context) error {
	return mutate(ctx, h, domain.DocHazard, func(doc *domain.HazardDoc) bool {
		if !doc.Active() {
			return false
		}
		doc.Preset = domain.HazardNone
		doc.Selected = nil
		return true
	})
}

// AddInjury appends an injury record for the entity.
func (h *Host) AddInjury(ctx context.Context, entity domain.EntityRef, rec domain.InjuryRecord) error {
	return mutate(ctx, h, domain.DocInjuries, func(doc *domain.InjuryDoc) bool {
		if doc.Records == nil {
			doc.Records = make(map[domain.EntityRef][]domain.InjuryRecord)
		}
		doc.Records[entity] = append(doc.Records[entity], rec)
		return true
	})
}

// StabilizeInjury marks the named injury stabilized. The status effect
// stays; only removing the record clears it.
func (h *Host) StabilizeInjury(ctx context.Context, entity domain.EntityRef, name string) error {
	return mutate(ctx, h, domain.DocInjuries, func(doc *domain.InjuryDoc) bool {
		records := doc.Records[entity]
		for i := range records {
			if records[i].Name == name && !records[i].Stabilized {
				records[i].Stabilized = true
				return true
			}
		}
		return false
	})
}

// RemoveInjury deletes the named injury record.
func (h *Host) RemoveInjury(ctx context.Context, entity domain.EntityRef, name string) error {
	return mutate(ctx, h, domain.DocInjuries, func(doc *domain.InjuryDoc) bool {
		records := doc.Records[entity]
		for i := range records {
			if records[i].Name == name {
				rest := append(records[:i:i], records[i+1:]...)
				if len(rest) == 0 {
					delete(doc.Records, entity)
				} else {
					doc.Records[entity] = rest
				}
				return true
			}
		}
		return false
	})
}

// SetSupplyLevel sets one resource level.
func (h *Host) SetSupplyLevel(ctx context.Context, resource string, level int) error {
	return mutate(ctx, h, domain.DocSupplies, func(doc *domain.SupplyDoc) bool {
		if doc.Levels == nil {
			doc.Levels = make(map[string]int)
		}
		if cur, ok := doc.Levels[resource]; ok && cur == level {
			return false
		}
		doc.Levels[resource] = level
		return true
	})
}

// BindSupply records which resource an entity carries. An empty resource
// unbinds.
func (h *Host) BindSupply(ctx context.Context, entity domain.EntityRef, resource string) error {
	return mutate(ctx, h, domain.DocSupplies, func(doc *domain.SupplyDoc) bool {
		if resource == "" {
			if _, ok := doc.Bindings[entity]; !ok {
				return false
			}
			delete(doc.Bindings, entity)
			return true
		}
		if doc.Bindings == nil {
			doc.Bindings = make(map[domain.EntityRef]string)
		}
		if doc.Bindings[entity] == resource {
			return false
		}
		doc.Bindings[entity] = resource
		return true
	})
}

// SetSyncMode switches the aura sync mode ("off", "party", "scene").
func (h *Host) SetSyncMode(ctx context.Context, mode string) error {
	switch mode {
	case domain.SyncOff, domain.SyncParty, domain.SyncScene:
	default:
		return fmt.Errorf("unknown sync mode %q", mode)
	}
	return mutate(ctx, h, domain.DocSync, func(doc *domain.SyncDoc) bool {
		if doc.Mode == mode {
			return false
		}
		doc.Mode = mode
		return true
	})
}

// SetReputation updates the party standing.
func (h *Host) SetReputation(ctx context.Context, score int, notoriety string) error {
	return mutate(ctx, h, domain.DocReputation, func(doc *domain.ReputationDoc) bool {
		if doc.Score == score && doc.Notoriety == notoriety {
			return false
		}
		doc.Score = score
		doc.Notoriety = notoriety
		return true
	})
}
