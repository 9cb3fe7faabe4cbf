package synthetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railopt/core/adapter"
)

func TestGenerator_Deterministic(t *testing.T) {
	a, b := NewGenerator(42), NewGenerator(42)
	for i := 0; i < 20; i++ {
		ca, sa := a.Next()
		cb, sb := b.Next()
		assert.Equal(t, ca, cb)
		assert.Equal(t, sa, sb)
	}
}

func TestGenerator_ProducesValidConflicts(t *testing.T) {
	g := NewGenerator(7)
	for i := 0; i < 500; i++ {
		c, snap := g.Next()
		require.NotEmpty(t, c.Trains)
		require.NotEmpty(t, c.Sections)
		_, err := adapter.Normalize(c, snap)
		require.NoError(t, err, "conflict %s", c.ID)
	}
}

func TestGenerator_Batch(t *testing.T) {
	conflicts, snap := NewGenerator(3).Batch(25)
	require.Len(t, conflicts, 25)
	seen := map[string]bool{}
	for _, c := range conflicts {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
		_, err := adapter.Normalize(c, snap)
		require.NoError(t, err)
	}
}
