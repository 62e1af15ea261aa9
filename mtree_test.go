package mkapp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// splitConfig forces frequent node splits: at 128 bytes a leaf holds at most
// a handful of entries and a directory node even fewer.
func splitConfig() Config {
	cfg := DefaultConfig()
	cfg.KMax = 2
	cfg.Degree = 1
	cfg.LogScale = false
	cfg.Workers = 1
	cfg.PageSize = 128
	cfg.CheckIntegrity = true
	return cfg
}

func TestInsertAll_SplitsGrowTree(t *testing.T) {
	tree, err := NewTree(splitConfig())
	require.NoError(t, err)

	coords := make([]float64, 24)
	for i := range coords {
		coords[i] = float64(i*i) * 0.5 // irregular spacing
	}
	require.NoError(t, tree.InsertAll(objects1D(coords...)))
	require.Equal(t, len(coords), tree.NumObjects())

	root, err := tree.getNode(tree.rootEntry.childPage)
	require.NoError(t, err)
	require.False(t, root.leaf, "24 objects at page size 128 must split the root")

	// Every inserted object must be reachable exactly once.
	ids, err := tree.leafEntryIDs(tree.rootEntry.childPage, nil)
	require.NoError(t, err)
	require.Len(t, ids, len(coords))

	seen := make(map[ObjectID]bool)
	for _, id := range ids {
		require.False(t, seen[id], "object %d appears twice", id)
		seen[id] = true
	}
}

func TestInsertAll_IntegrityAcrossBatches(t *testing.T) {
	// The integrity check runs after every batch; radii and parent
	// distances must stay consistent as later batches split earlier nodes.
	tree, err := NewTree(splitConfig())
	require.NoError(t, err)

	next := ObjectID(0)
	for batch := 0; batch < 4; batch++ {
		objs := make([]Object, 6)
		for i := range objs {
			objs[i] = Object{ID: next, Vector: []float64{float64(next)*1.7 + float64(batch)*0.3}}
			next++
		}
		require.NoError(t, tree.InsertAll(objs))
	}
	require.Equal(t, 24, tree.NumObjects())
}

func TestPromote_PicksFarthestPair(t *testing.T) {
	tree, err := NewTree(lineConfig())
	require.NoError(t, err)
	tree.objects[0] = []float64{0}
	tree.objects[1] = []float64{10}
	tree.objects[2] = []float64{1}

	n := newNode(0, true, 4)
	n.addEntry(&entry{routingID: 0, childPage: invalidPageID})
	n.addEntry(&entry{routingID: 1, childPage: invalidPageID})
	n.addEntry(&entry{routingID: 2, childPage: invalidPageID})

	i1, i2 := tree.promote(n)
	require.Equal(t, 0, i1)
	require.Equal(t, 1, i2)
}

func TestChooseSubtree_PrefersCoveringEntry(t *testing.T) {
	tree, err := NewTree(lineConfig())
	require.NoError(t, err)
	tree.objects[0] = []float64{0}
	tree.objects[1] = []float64{10}

	n := newNode(0, false, 4)
	n.addEntry(&entry{routingID: 0, childPage: 1, coveringRadius: 5})
	n.addEntry(&entry{routingID: 1, childPage: 2, coveringRadius: 5})

	// 4 is inside entry 0's ball and outside entry 1's.
	idx, d := tree.chooseSubtree(n, []float64{4})
	require.Equal(t, 0, idx)
	require.True(t, almostEqual(d, 4, floatTol))

	// 7 is only inside entry 1's ball.
	idx, d = tree.chooseSubtree(n, []float64{7})
	require.Equal(t, 1, idx)
	require.True(t, almostEqual(d, 3, floatTol))
}

func TestChooseSubtree_MinimalEnlargement(t *testing.T) {
	tree, err := NewTree(lineConfig())
	require.NoError(t, err)
	tree.objects[0] = []float64{0}
	tree.objects[1] = []float64{10}

	n := newNode(0, false, 4)
	n.addEntry(&entry{routingID: 0, childPage: 1, coveringRadius: 1})
	n.addEntry(&entry{routingID: 1, childPage: 2, coveringRadius: 1})

	// 6 is outside both balls; entry 1 needs the smaller enlargement.
	idx, _ := tree.chooseSubtree(n, []float64{6})
	require.Equal(t, 1, idx)
}
