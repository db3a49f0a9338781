package ports

import (
	"context"

	"github.com/evhart/bivouac/pkg/domain"
)

// Roster resolves the out-of-band membership facts the engine must not own:
// which identities exist, what they control, and what the active scene
// contains.
type Roster interface {
	// Controlled returns the entities the identity may act for.
	Controlled(ctx context.Context, id domain.Identity) ([]domain.EntityRef, error)

	// Active reports whether the identity is a live session member.
	// Unknown identities are inactive.
	Active(ctx context.Context, id domain.Identity) (bool, error)

	// Entities returns every entity known to the session.
	Entities(ctx context.Context) ([]domain.EntityRef, error)

	// SceneEntities returns the membership of the active scene. No active
	// scene yields an empty slice, not an error.
	SceneEntities(ctx context.Context) ([]domain.EntityRef, error)
}
