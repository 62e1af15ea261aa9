package mkapp

import (
	"container/heap"
	"sort"

	"github.com/pkg/errors"
)

// Neighbor is one reverse-kNN result: an object that (by the stored model)
// counts the query among its k nearest neighbors, and its true distance to
// the query.
type Neighbor struct {
	ID       ObjectID
	Distance float64
}

// searchCandidate is a subtree awaiting examination, keyed by a lower bound
// on the distance from the query to anything inside it.
type searchCandidate struct {
	lowerBound float64
	pageID     int
	routingID  ObjectID // routing object of the entry addressing the page; -1 for the root
}

// candidateQueue is a min-heap of searchCandidate. Ties break on page id so
// traversal order, and with it any floating-point accumulation, is
// deterministic.
type candidateQueue []searchCandidate

func (q candidateQueue) Len() int { return len(q) }
func (q candidateQueue) Less(i, j int) bool {
	if q[i].lowerBound != q[j].lowerBound {
		return q[i].lowerBound < q[j].lowerBound
	}
	return q[i].pageID < q[j].pageID
}
func (q candidateQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *candidateQueue) Push(x interface{}) { *q = append(*q, x.(searchCandidate)) }
func (q *candidateQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

// ReverseKNN finds every indexed object for which the query object is, per
// the stored approximation, among its k nearest neighbors. Results are
// ascending by true distance to the query. k must lie in [1, KMax].
//
// The traversal is branch-and-bound: a subtree survives only if the lower
// bound on the query's distance to it does not exceed the subtree's modeled
// kNN distance at k. There is no exact refinement pass afterwards, so the
// answer carries the model's error in both directions.
func (t *Tree) ReverseKNN(queryID ObjectID, k int) ([]Neighbor, error) {
	if k < 1 || k > t.cfg.KMax {
		return nil, errors.Wrapf(ErrInvalidK, "k=%d, valid range [1, %d]", k, t.cfg.KMax)
	}
	qVec := t.vector(queryID)
	if qVec == nil {
		return nil, errors.Wrapf(ErrUnknownObject, "query object %d", queryID)
	}
	return t.searchReverseKNN(qVec, k)
}

// ReverseKNNVec is ReverseKNN for a query vector that need not be indexed.
// An indexed query object always reports itself (it is at distance 0 of its
// own model); an external vector can legitimately produce an empty result.
func (t *Tree) ReverseKNNVec(query []float64, k int) ([]Neighbor, error) {
	if k < 1 || k > t.cfg.KMax {
		return nil, errors.Wrapf(ErrInvalidK, "k=%d, valid range [1, %d]", k, t.cfg.KMax)
	}
	return t.searchReverseKNN(query, k)
}

func (t *Tree) searchReverseKNN(qVec []float64, k int) ([]Neighbor, error) {
	result := []Neighbor{}
	if t.rootPage == invalidPageID {
		return result, nil
	}

	pq := &candidateQueue{{lowerBound: 0, pageID: t.rootPage, routingID: -1}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cand := heap.Pop(pq).(searchCandidate)
		n, err := t.getNode(cand.pageID)
		if err != nil {
			return nil, err
		}

		if !n.leaf {
			for _, e := range n.entries {
				d := t.distanceToVec(e.routingID, qVec)
				lower := 0.0
				if d >= e.coveringRadius {
					lower = d - e.coveringRadius
				}
				if lower <= t.approxValueAt(e.approx, k) {
					heap.Push(pq, searchCandidate{
						lowerBound: lower,
						pageID:     e.childPage,
						routingID:  e.routingID,
					})
				}
			}
			continue
		}

		for _, e := range n.entries {
			d := t.distanceToVec(e.routingID, qVec)
			if d <= t.approxValueAt(e.approx, k) {
				result = append(result, Neighbor{ID: e.routingID, Distance: d})
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
