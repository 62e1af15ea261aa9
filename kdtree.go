package mkapp

import (
	"container/heap"
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// KDTreeKNN is a BatchKNNSource that accelerates the exact neighbor
// computation during InsertAll with a KD-tree over the indexed vectors.
// Pruning uses the metric distance to the clamped point of a node's bounding
// box, which is a valid lower bound for coordinate-monotone metrics
// (Euclidean, Manhattan, Chebyshev); for other metrics use the brute-force
// default instead.
type KDTreeKNN struct {
	// LeafSize is the maximum number of points per KD-tree leaf.
	// Default: 40.
	LeafSize int

	tree *Tree
}

// NewKDTreeKNN returns a KD-tree-backed batch kNN source. A zero-value
// &KDTreeKNN{} in Config.BatchKNN works too: NewTree binds it to the tree it
// builds.
func NewKDTreeKNN() *KDTreeKNN {
	return &KDTreeKNN{LeafSize: 40}
}

// bind attaches the source to its tree; used when the source is supplied in
// the Config before the Tree exists.
func (s *KDTreeKNN) bind(t *Tree) { s.tree = t }

// BatchKNN builds a KD-tree over the current objects and answers every query
// against it. Queries are split across workers in contiguous ranges.
func (s *KDTreeKNN) BatchKNN(ids []ObjectID, k int) (map[ObjectID][]float64, error) {
	t := s.tree
	if t == nil {
		return nil, errors.New("mkapp: KDTreeKNN not bound to a tree")
	}
	if len(t.ids) == 0 {
		return map[ObjectID][]float64{}, nil
	}

	leafSize := s.LeafSize
	if leafSize < 1 {
		leafSize = 40
	}

	dims := len(t.objects[t.ids[0]])
	flat := make([]float64, 0, len(t.ids)*dims)
	for _, id := range t.ids {
		flat = append(flat, t.objects[id]...)
	}
	kd := buildKDIndex(flat, len(t.ids), dims, t.cfg.Metric, leafSize)

	lists := make([][]float64, len(ids))

	numWorkers := t.cfg.Workers
	if numWorkers > len(ids) {
		numWorkers = len(ids)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	perWorker := (len(ids) + numWorkers - 1) / numWorkers

	for w := 0; w < numWorkers; w++ {
		start := w * perWorker
		end := start + perWorker
		if end > len(ids) {
			end = len(ids)
		}
		if start >= len(ids) {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				query := ids[i]
				// k+1 because the query object is in the tree and is
				// dropped from its own result.
				items := kd.knnQuery(t.vector(query), k+1)
				dists := make([]float64, 0, k)
				for _, it := range items {
					if t.ids[it.index] == query {
						continue
					}
					if len(dists) == k {
						break
					}
					dists = append(dists, it.dist)
				}
				lists[i] = dists
			}
		}(start, end)
	}
	wg.Wait()

	result := make(map[ObjectID][]float64, len(ids))
	for i, id := range ids {
		result[id] = lists[i]
	}
	return result, nil
}

// kdIndex is a KD-tree stored as a complete binary tree in array form:
// node i has children at 2*i+1 and 2*i+2. Points live in a flat row-major
// array, reordered via an index permutation.
type kdIndex struct {
	data     []float64
	n        int
	dims     int
	leafSize int
	metric   DistanceMetric
	idxArray []int // tree-order position -> original index

	nodes []kdNode
	// boundsMin[node*dims + j] = min value of feature j in node
	boundsMin []float64
	boundsMax []float64
}

type kdNode struct {
	idxStart, idxEnd int
	leaf             bool
}

func buildKDIndex(data []float64, n, dims int, metric DistanceMetric, leafSize int) *kdIndex {
	idxArray := make([]int, n)
	for i := range idxArray {
		idxArray[i] = i
	}

	maxNodes := kdMaxNodes(n, leafSize)
	kd := &kdIndex{
		data:      data,
		n:         n,
		dims:      dims,
		leafSize:  leafSize,
		metric:    metric,
		idxArray:  idxArray,
		nodes:     make([]kdNode, maxNodes),
		boundsMin: make([]float64, maxNodes*dims),
		boundsMax: make([]float64, maxNodes*dims),
	}
	if n > 0 {
		kd.buildNode(0, 0, n)
	}
	return kd
}

// kdMaxNodes returns an upper bound on the number of nodes needed for a
// binary tree with n points and the given leaf size.
func kdMaxNodes(n, leafSize int) int {
	if n == 0 {
		return 1
	}
	leaves := (n + leafSize - 1) / leafSize
	depth := 0
	v := 1
	for v < leaves {
		v *= 2
		depth++
	}
	return (1 << (depth + 1)) - 1 + 2 // +2 for safety margin
}

// buildNode recursively builds the tree for points in idxArray[start:end],
// splitting at the median of the dimension with the greatest spread.
func (kd *kdIndex) buildNode(nodeID, start, end int) {
	for nodeID >= len(kd.nodes) {
		kd.nodes = append(kd.nodes, kdNode{})
		kd.boundsMin = append(kd.boundsMin, make([]float64, kd.dims)...)
		kd.boundsMax = append(kd.boundsMax, make([]float64, kd.dims)...)
	}

	kd.computeBounds(nodeID, start, end)

	if end-start <= kd.leafSize {
		kd.nodes[nodeID] = kdNode{idxStart: start, idxEnd: end, leaf: true}
		return
	}

	splitDim := 0
	maxSpread := -1.0
	for d := 0; d < kd.dims; d++ {
		spread := kd.boundsMax[nodeID*kd.dims+d] - kd.boundsMin[nodeID*kd.dims+d]
		if spread > maxSpread {
			maxSpread = spread
			splitDim = d
		}
	}

	sub := kd.idxArray[start:end]
	dims, data := kd.dims, kd.data
	sort.Slice(sub, func(i, j int) bool {
		return data[sub[i]*dims+splitDim] < data[sub[j]*dims+splitDim]
	})
	mid := start + (end-start)/2

	kd.nodes[nodeID] = kdNode{idxStart: start, idxEnd: end}
	kd.buildNode(2*nodeID+1, start, mid)
	kd.buildNode(2*nodeID+2, mid, end)
}

func (kd *kdIndex) computeBounds(nodeID, start, end int) {
	base := nodeID * kd.dims
	for d := 0; d < kd.dims; d++ {
		kd.boundsMin[base+d] = math.Inf(1)
		kd.boundsMax[base+d] = math.Inf(-1)
	}
	for i := start; i < end; i++ {
		ptIdx := kd.idxArray[i]
		for d := 0; d < kd.dims; d++ {
			v := kd.data[ptIdx*kd.dims+d]
			if v < kd.boundsMin[base+d] {
				kd.boundsMin[base+d] = v
			}
			if v > kd.boundsMax[base+d] {
				kd.boundsMax[base+d] = v
			}
		}
	}
}

// minDistToNode lower-bounds the distance from query to any point in the
// node by measuring to the query clamped into the node's bounding box.
func (kd *kdIndex) minDistToNode(nodeID int, query, scratch []float64) float64 {
	base := nodeID * kd.dims
	for d := 0; d < kd.dims; d++ {
		v := query[d]
		if v < kd.boundsMin[base+d] {
			v = kd.boundsMin[base+d]
		} else if v > kd.boundsMax[base+d] {
			v = kd.boundsMax[base+d]
		}
		scratch[d] = v
	}
	return kd.metric.Distance(query, scratch)
}

// knnQuery returns the k nearest points to query, ascending by distance.
func (kd *kdIndex) knnQuery(query []float64, k int) []knnItem {
	h := &knnHeap{}
	heap.Init(h)
	scratch := make([]float64, kd.dims)
	kd.knnSearch(0, query, k, h, scratch)

	items := make([]knnItem, h.Len())
	for i := len(items) - 1; i >= 0; i-- {
		items[i] = heap.Pop(h).(knnItem)
	}
	return items
}

// knnSearch performs a single-tree kNN traversal using a max-heap of size k,
// visiting the nearer child first and pruning the farther one against the
// current k-th distance.
func (kd *kdIndex) knnSearch(nodeID int, query []float64, k int, h *knnHeap, scratch []float64) {
	if nodeID >= len(kd.nodes) {
		return
	}
	n := kd.nodes[nodeID]
	if n.idxStart == n.idxEnd && nodeID != 0 {
		return // uninitialized node
	}

	if n.leaf {
		for i := n.idxStart; i < n.idxEnd; i++ {
			ptIdx := kd.idxArray[i]
			pt := kd.data[ptIdx*kd.dims : (ptIdx+1)*kd.dims]
			d := kd.metric.Distance(query, pt)
			if h.Len() < k {
				heap.Push(h, knnItem{index: ptIdx, dist: d})
			} else if d < (*h)[0].dist {
				(*h)[0] = knnItem{index: ptIdx, dist: d}
				heap.Fix(h, 0)
			}
		}
		return
	}

	left := 2*nodeID + 1
	right := 2*nodeID + 2

	leftDist := kd.minDistToNode(left, query, scratch)
	rightDist := kd.minDistToNode(right, query, scratch)

	nearChild, farChild, farDist := left, right, rightDist
	if rightDist < leftDist {
		nearChild, farChild, farDist = right, left, leftDist
	}

	kd.knnSearch(nearChild, query, k, h, scratch)
	if h.Len() < k || (*h)[0].dist > farDist {
		kd.knnSearch(farChild, query, k, h, scratch)
	}
}

// knnItem is one candidate in a kNN max-heap.
type knnItem struct {
	index int
	dist  float64
}

// knnHeap is a max-heap of knnItem (largest distance on top) used as a
// bounded candidate set during kNN search.
type knnHeap []knnItem

func (h knnHeap) Len() int            { return len(h) }
func (h knnHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist } // max-heap
func (h knnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x interface{}) { *h = append(*h, x.(knnItem)) }
func (h *knnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
