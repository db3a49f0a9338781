package domain

// EntityRef identifies a game entity (an actor, a token owner) across
// documents and effects. It is an opaque identifier minted elsewhere; the
// engine only ever compares it.
type EntityRef string

// Identity identifies a connected client (host or peer) on the bus.
type Identity string
