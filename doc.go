/*
Package bivouac is a host-authoritative shared session-state engine for small
groups of cooperating clients: one host that owns every write, and peers that
request changes over a message bus.

It keeps named JSON-like documents (watch rotation, marching order, injuries,
hazards, reputation, supplies, sync mode), relays peer commands through a
static policy table, and runs a debounced reconciliation loop that keeps
per-entity materialized effects (auras, injury markers, environment overlays)
consistent with the documents.

# Concept

State lives in documents; clients never exchange state, only commands and
refresh signals. The host validates each command against ownership rules,
applies a pure reducer, persists, and broadcasts a refresh. A trailing-edge
debounce coalesces bursts of writes into single reconciliation passes, each
of which projects the desired effects for every relevant entity and diffs
them against what is live. This Hexagonal Architecture keeps the engine
independent of transport and storage: swap the in-memory adapters for Redis
and websockets without touching the core.

# Usage

Wire a Host over the four ports and run it; peers connect through the same
bus with the peer package.

	package main

	import (
		"context"
		"log"

		"github.com/evhart/bivouac"
		"github.com/evhart/bivouac/pkg/adapters/memory"
	)

	func main() {
		hub := memory.NewHub()
		roster := memory.NewRoster()
		roster.Grant("player-1", "hero-1")

		host := bivouac.New("host", memory.NewStore(), hub.Client(),
			memory.NewEffects(), roster)

		ctx := context.Background()
		if err := host.Run(ctx); err != nil {
			log.Fatal(err)
		}
	}
*/
package bivouac
