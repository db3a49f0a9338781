// Package relay validates incoming peer commands against the static
// per-command policy table and applies them to the document store on the
// host's behalf.
package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evhart/bivouac/internal/docstore"
	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// Relay is the host-side command handler. Rejections are policy, not errors:
// a rejected command is logged and dropped, and no rejection message is sent
// back — the issuing client surfaces its own timeout affordance.
type Relay struct {
	docs   *docstore.Store
	roster ports.Roster
	logger *slog.Logger
}

// Option configures the Relay.
type Option func(*Relay)

// WithLogger sets the relay logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// New creates a command relay over the document store and roster.
func New(docs *docstore.Store, roster ports.Roster, opts ...Option) *Relay {
	r := &Relay{
		docs:   docs,
		roster: roster,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle validates and applies one command. It reports whether a document
// was actually mutated; the caller broadcasts the refresh and schedules
// reconciliation only on true. The error return covers infrastructure
// failures (storage I/O) only, never policy rejections.
func (r *Relay) Handle(ctx context.Context, cmd domain.Command) (bool, error) {
	if err := Sanitize(&cmd); err != nil {
		r.logger.Warn("command rejected by sanitizer", "op", cmd.Kind, "err", err)
		return false, nil
	}

	pol, ok := domain.PolicyFor(cmd.Kind)
	if !ok {
		// Sanitize already checks this; kept as a guard for callers that
		// bypass the bus boundary.
		r.logger.Warn("command rejected: unknown kind", "op", cmd.Kind)
		return false, nil
	}

	allowed, err := r.authorize(ctx, cmd, pol)
	if err != nil {
		return false, fmt.Errorf("resolve requester %q: %w", cmd.From, err)
	}
	if !allowed {
		r.logger.Warn("command rejected by ownership policy",
			"op", cmd.Kind, "actor", cmd.Actor, "from", cmd.From)
		return false, nil
	}

	applied, err := r.apply(ctx, cmd, pol.Doc)
	if err != nil {
		return false, err
	}
	if applied {
		r.logger.Info("command applied", "op", cmd.Kind, "actor", cmd.Actor, "doc", pol.Doc)
	} else {
		r.logger.Debug("command was a no-op", "op", cmd.Kind, "actor", cmd.Actor)
	}
	return applied, nil
}

func (r *Relay) authorize(ctx context.Context, cmd domain.Command, pol domain.CommandPolicy) (bool, error) {
	switch pol.Rule {
	case domain.RuleOwnActor:
		active, err := r.roster.Active(ctx, cmd.From)
		if err != nil {
			return false, err
		}
		if !active {
			return false, nil
		}
		controlled, err := r.roster.Controlled(ctx, cmd.From)
		if err != nil {
			return false, err
		}
		for _, e := range controlled {
			if e == cmd.Actor {
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (r *Relay) apply(ctx context.Context, cmd domain.Command, doc domain.DocName) (bool, error) {
	switch doc {
	case domain.DocWatch:
		current, err := docstore.Read[domain.WatchDoc](ctx, r.docs, doc)
		if err != nil {
			return false, err
		}
		next, changed := reduceWatch(current, cmd)
		if !changed {
			return false, nil
		}
		return true, r.docs.Write(ctx, doc, next)

	case domain.DocMarch:
		current, err := docstore.Read[domain.MarchDoc](ctx, r.docs, doc)
		if err != nil {
			return false, err
		}
		next, changed := reduceMarch(current, cmd)
		if !changed {
			return false, nil
		}
		return true, r.docs.Write(ctx, doc, next)
	}

	return false, nil
}
