package domain

import "errors"

// ErrDocumentNotFound is returned when a document key has never been written.
// Callers reading through the document store never see it: a missing document
// reads as its defaults.
var ErrDocumentNotFound = errors.New("document not found")

// ErrEffectNotFound is returned when an effect handle no longer resolves.
var ErrEffectNotFound = errors.New("effect not found")

// ErrArchiveEntryNotFound is returned when an archive ID is unknown.
var ErrArchiveEntryNotFound = errors.New("archive entry not found")

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("bus closed")
