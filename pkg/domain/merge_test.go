package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeMissing(t *testing.T) {
	t.Run("fills missing keys from defaults", func(t *testing.T) {
		stored := map[string]any{"locked": true}
		merged := MergeMissing(stored, DefaultDoc(DocWatch))

		assert.Equal(t, true, merged["locked"], "stored value must win")
		slots, ok := merged["slots"].(map[string]any)
		require.True(t, ok, "missing slots filled from defaults")
		assert.Len(t, slots, DefaultWatchSlots)
	})

	t.Run("never overwrites stored values", func(t *testing.T) {
		stored := map[string]any{
			"slots": map[string]any{
				"watch-1": map[string]any{"entity": "A1"},
			},
		}
		merged := MergeMissing(stored, DefaultDoc(DocWatch))

		slots := merged["slots"].(map[string]any)
		w1 := slots["watch-1"].(map[string]any)
		assert.Equal(t, "A1", w1["entity"])
		// Nested gap inside a stored map is still filled.
		assert.Contains(t, w1, "notes")
		// Default-only siblings appear alongside stored ones.
		assert.Contains(t, slots, "watch-2")
	})

	t.Run("preserves unknown stored keys", func(t *testing.T) {
		stored := map[string]any{"futureField": "keep-me"}
		merged := MergeMissing(stored, DefaultDoc(DocSync))

		assert.Equal(t, "keep-me", merged["futureField"])
		assert.Equal(t, SyncOff, merged["mode"])
	})

	t.Run("does not mutate inputs", func(t *testing.T) {
		stored := map[string]any{}
		defaults := DefaultDoc(DocReputation)
		_ = MergeMissing(stored, defaults)
		assert.Empty(t, stored)
	})

	t.Run("idempotent", func(t *testing.T) {
		once := MergeMissing(map[string]any{"score": float64(3)}, DefaultDoc(DocReputation))
		twice := MergeMissing(once, DefaultDoc(DocReputation))
		assert.Equal(t, once, twice)
	})
}

func TestDecodeDoc(t *testing.T) {
	t.Run("round trips through blob form", func(t *testing.T) {
		blob := MergeMissing(map[string]any{"score": float64(7)}, DefaultDoc(DocReputation))
		doc, err := DecodeDoc[ReputationDoc](blob)
		require.NoError(t, err)
		assert.Equal(t, 7, doc.Score)
		assert.Equal(t, "unknown", doc.Notoriety)
	})

	t.Run("tolerates unknown keys", func(t *testing.T) {
		blob := MergeMissing(map[string]any{"futureField": true}, DefaultDoc(DocSync))
		doc, err := DecodeDoc[SyncDoc](blob)
		require.NoError(t, err)
		assert.Equal(t, SyncOff, doc.Mode)
	})
}

func TestDefaultDoc(t *testing.T) {
	for _, name := range DocNames {
		name := name
		t.Run(string(name), func(t *testing.T) {
			blob := DefaultDoc(name)
			assert.NotNil(t, blob)
		})
	}

	t.Run("panics on unknown name", func(t *testing.T) {
		assert.Panics(t, func() { DefaultDoc("no-such-doc") })
	})
}
