package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac/internal/docstore"
	"github.com/evhart/bivouac/pkg/adapters/memory"
	"github.com/evhart/bivouac/pkg/domain"
)

const testCatalog = `
modifiers:
  - key: cold
    label: Biting Cold
    bonus: -2
  - key: heat
    label: Scorching Heat
    bonus: -1
`

func newTestBuilder(t *testing.T, opts ...Option) (*Builder, *docstore.Store, *memory.Roster) {
	t.Helper()
	docs := docstore.New(memory.NewStore())
	roster := memory.NewRoster()
	return New(docs, roster, opts...), docs, roster
}

func TestBuildFromEmptyStore(t *testing.T) {
	b, _, roster := newTestBuilder(t)
	roster.SetEntities("A1", "B2")

	g, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Len(t, g.Watch.Slots, domain.DefaultWatchSlots)
	assert.Equal(t, domain.HazardNone, g.Hazard.Preset)
	assert.Equal(t, []domain.EntityRef{"A1", "B2"}, g.AllEntities)
	assert.Empty(t, g.Tracked())
}

func TestBuildReflectsDocuments(t *testing.T) {
	b, docs, _ := newTestBuilder(t)
	ctx := context.Background()

	watch := domain.DefaultWatch()
	watch.Slots["watch-1"] = domain.WatchSlot{Entity: "A1"}
	require.NoError(t, docs.Write(ctx, domain.DocWatch, watch))

	g, err := b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityRef{"A1"}, g.Tracked())

	// A second build sees later writes; nothing is cached across passes.
	watch.Slots["watch-2"] = domain.WatchSlot{Entity: "B2"}
	require.NoError(t, docs.Write(ctx, domain.DocWatch, watch))
	g, err = b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityRef{"A1", "B2"}, g.Tracked())
}

func TestCatalogMemoization(t *testing.T) {
	loads := 0
	src := func() ([]byte, error) {
		loads++
		return []byte(testCatalog), nil
	}
	b, _, _ := newTestBuilder(t, WithCatalogSource(src))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g, err := b.Build(ctx)
		require.NoError(t, err)
		assert.Equal(t, -2, g.Modifiers["cold"].Bonus)
	}
	assert.Equal(t, 1, loads, "catalog loads once")

	b.InvalidateCatalog()
	_, err := b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "invalidation forces a reload")
}

func TestCatalogSourceFailure(t *testing.T) {
	b, _, _ := newTestBuilder(t, WithCatalogSource(func() ([]byte, error) {
		return nil, errors.New("disk gone")
	}))
	_, err := b.Build(context.Background())
	assert.ErrorContains(t, err, "modifier catalog")
}

func TestParseCatalog(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		catalog, err := ParseCatalog([]byte(testCatalog))
		require.NoError(t, err)
		assert.Len(t, catalog, 2)
		assert.Equal(t, "Biting Cold", catalog["cold"].Label)
	})

	t.Run("duplicate key", func(t *testing.T) {
		_, err := ParseCatalog([]byte("modifiers:\n  - key: cold\n  - key: cold\n"))
		assert.ErrorContains(t, err, "duplicate key")
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := ParseCatalog([]byte("modifiers:\n  - label: Nameless\n"))
		assert.ErrorContains(t, err, "has no key")
	})
}
