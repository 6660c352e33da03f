package schema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_MatchesGraph(t *testing.T) {
	ctx := context.Background()
	g := employmentGraph(t)

	store, err := OpenSQLStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Import(ctx, g))

	for _, want := range g.Concepts() {
		got, ok, err := store.Lookup(ctx, want.Label)
		require.NoError(t, err)
		require.True(t, ok, "missing %s", want.Label)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Lookup(%s) mismatch (-graph +sqlite):\n%s", want.Label, diff)
		}
	}

	for _, kind := range []Kind{KindMeta, KindEntityType, KindRelationType, KindAttributeType, KindRole} {
		want, _ := g.Labels(ctx, kind)
		got, err := store.Labels(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, want, got, "labels of kind %s", kind)
	}

	n, err := store.ShardCount(ctx, "part-time-employment")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok, err := store.Lookup(ctx, "manager")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLStore_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "schema.db")

	store, err := OpenSQLStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Import(ctx, employmentGraph(t)))
	require.NoError(t, store.SetShardCount(ctx, "friendship", 42))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	h := NewHierarchy(reopened)
	subs, err := h.Subs(ctx, "employment")
	require.NoError(t, err)
	assert.Equal(t, []Label{"employment", "part-time-employment"}, subs)

	n, err := h.ShardCount(ctx, "friendship")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestSnapshot_PinsShardCounts(t *testing.T) {
	ctx := context.Background()
	g := employmentGraph(t)

	snap, err := NewSnapshot(g, 16, true)
	require.NoError(t, err)

	n, err := snap.ShardCount(ctx, "employment")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	g.SetShardCount("employment", 500)
	n, err = snap.ShardCount(ctx, "employment")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n, "pinned count must not move within a pass")

	snap.Refresh()
	n, err = snap.ShardCount(ctx, "employment")
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)

	unpinned, err := NewSnapshot(g, 16, false)
	require.NoError(t, err)
	g.SetShardCount("employment", 7)
	n, err = unpinned.ShardCount(ctx, "employment")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestSnapshot_CachesLookups(t *testing.T) {
	ctx := context.Background()
	snap, err := NewSnapshot(employmentGraph(t), 2, true)
	require.NoError(t, err)

	c, ok, err := snap.Lookup(ctx, "employment")
	require.NoError(t, err)
	require.True(t, ok)
	c.Subs[0] = "mutated"

	again, _, err := snap.Lookup(ctx, "employment")
	require.NoError(t, err)
	assert.Equal(t, []Label{"part-time-employment"}, again.Subs)

	_, ok, err = snap.Lookup(ctx, "manager")
	require.NoError(t, err)
	assert.False(t, ok)
}
