/*
Package ports defines the driven ports (interfaces) for the Bivouac engine.

These interfaces decouple the core from its environment: where documents are
persisted, how messages travel between host and peers, how effects are
materialized, and who controls which entities.

# Key Interfaces

  - Storage: persists raw document blobs under well-known keys.
  - Bus: at-most-once pub/sub transport for the session envelopes.
  - EffectPort: upsert/delete surface for materialized per-entity effects.
  - Roster: resolves identities to controlled entities and scene membership.

The contract suites (RunStorageContract, RunBusContract) verify that an
adapter honors the semantics the engine relies on; every shipped adapter runs
them.
*/
package ports
