/*
Package domain contains the core types shared across the Bivouac engine:
documents, commands, effects, the global context, and the bus envelope.

Everything here is plain data plus pure functions. Side effects (persistence,
messaging, effect materialization) live behind the interfaces in pkg/ports.
*/
package domain
