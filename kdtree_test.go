package mkapp

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKDIndex_KNNQueryAscending(t *testing.T) {
	// Points on a line; leaf size 1 forces a deep tree.
	data := []float64{0, 5, 1, 9, 3, 7, 2}
	kd := buildKDIndex(data, len(data), 1, EuclideanMetric{}, 1)

	items := kd.knnQuery([]float64{4}, 3)
	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		if items[i].dist < items[i-1].dist {
			t.Errorf("results not ascending: %v", items)
		}
	}
	// Nearest to 4 are 5 (index 1) and 3 (index 4), tied at distance 1 in
	// either order, then 2 (index 6).
	require.ElementsMatch(t, []int{1, 4}, []int{items[0].index, items[1].index})
	require.Equal(t, 6, items[2].index)
}

func TestKDIndex_MatchesBruteForce(t *testing.T) {
	objs := clusteredObjects()
	dims := 2
	flat := make([]float64, 0, len(objs)*dims)
	for _, o := range objs {
		flat = append(flat, o.Vector...)
	}

	metric := EuclideanMetric{}
	kd := buildKDIndex(flat, len(objs), dims, metric, 2)

	for q := range objs {
		for k := 1; k <= 5; k++ {
			items := kd.knnQuery(objs[q].Vector, k)

			var want []float64
			for _, o := range objs {
				want = append(want, metric.Distance(objs[q].Vector, o.Vector))
			}
			sort.Float64s(want)

			require.Len(t, items, k)
			for i := 0; i < k; i++ {
				if !almostEqual(items[i].dist, want[i], 1e-12) {
					t.Errorf("query %d k=%d: dist[%d] = %v, expected %v", q, k, i, items[i].dist, want[i])
				}
			}
		}
	}
}

func TestKDTreeKNN_MatchesBruteForceSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KMax = 4
	cfg.Degree = 1
	cfg.LogScale = false
	cfg.Workers = 2

	tree, err := NewTree(cfg)
	require.NoError(t, err)
	require.NoError(t, tree.InsertAll(clusteredObjects()))

	kdSrc := NewKDTreeKNN()
	kdSrc.bind(tree)
	brute := &bruteForceKNN{tree: tree}

	ids := append([]ObjectID(nil), tree.ids...)
	for _, k := range []int{1, 3, 5} {
		got, err := kdSrc.BatchKNN(ids, k)
		require.NoError(t, err)
		want, err := brute.BatchKNN(ids, k)
		require.NoError(t, err)

		require.Len(t, got, len(want))
		for id, wantList := range want {
			gotList := got[id]
			require.Len(t, gotList, len(wantList), "id %d k %d", id, k)
			for i := range wantList {
				if !almostEqual(gotList[i], wantList[i], 1e-12) {
					t.Errorf("id %d k=%d: dist[%d] = %v, brute force %v", id, k, i, gotList[i], wantList[i])
				}
			}
		}
	}
}

func TestKDTreeKNN_AsConfiguredSource(t *testing.T) {
	// A tree built with the KD-tree source must store the same model as a
	// tree built with the brute-force default.
	build := func(src BatchKNNSource) *Tree {
		cfg := DefaultConfig()
		cfg.KMax = 3
		cfg.Degree = 1
		cfg.LogScale = false
		cfg.Workers = 1
		cfg.BatchKNN = src
		tree, err := NewTree(cfg)
		require.NoError(t, err)
		require.NoError(t, tree.InsertAll(clusteredObjects()))
		return tree
	}

	c1 := collectCoeffs(t, build(nil))
	c2 := collectCoeffs(t, build(&KDTreeKNN{LeafSize: 2}))

	require.Equal(t, len(c1), len(c2))
	for i := range c1 {
		require.Equal(t, len(c1[i]), len(c2[i]))
		for j := range c1[i] {
			if !almostEqual(c1[i][j], c2[i][j], 1e-9) {
				t.Errorf("entry %d coeff %d: kd %v vs brute %v", i, j, c2[i][j], c1[i][j])
			}
		}
	}
}

func TestBruteForceKNN_ExcludesSelfAndTruncates(t *testing.T) {
	tree, err := NewTree(lineConfig())
	require.NoError(t, err)
	require.NoError(t, tree.InsertAll(objects1D(0, 1, 3)))

	brute := &bruteForceKNN{tree: tree}
	lists, err := brute.BatchKNN([]ObjectID{0, 1, 2}, 5)
	require.NoError(t, err)

	// Only two neighbors exist per object; self distance 0 must not appear.
	require.Equal(t, []float64{1, 3}, lists[0])
	require.Equal(t, []float64{1, 2}, lists[1])
	require.Equal(t, []float64{2, 3}, lists[2])
}
