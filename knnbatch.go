package mkapp

import (
	"sort"
	"sync"
)

// BatchKNNSource supplies exact nearest-neighbor distances for a batch of
// object ids in one amortized call. For each requested id the returned list
// holds the distances to its k nearest indexed neighbors in ascending order,
// excluding the object itself; lists are shorter than k when fewer neighbors
// exist. The computation may be internally parallel but must complete before
// returning, producing one list per requested id.
type BatchKNNSource interface {
	BatchKNN(ids []ObjectID, k int) (map[ObjectID][]float64, error)
}

// bruteForceKNN computes exact neighbor distances by scanning every indexed
// object per query. Queries are split across workers in contiguous ranges;
// ranges do not overlap, so result writes need no synchronization.
type bruteForceKNN struct {
	tree *Tree
}

func (b *bruteForceKNN) BatchKNN(ids []ObjectID, k int) (map[ObjectID][]float64, error) {
	t := b.tree
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
			dists := make([]float64, 0, len(t.ids))
			for i := start; i < end; i++ {
				query := ids[i]
				qVec := t.vector(query)

				dists = dists[:0]
				for _, other := range t.ids {
					if other == query {
						continue
					}
					dists = append(dists, t.distanceToVec(other, qVec))
				}
				sort.Float64s(dists)

				n := k
				if n > len(dists) {
					n = len(dists)
				}
				lists[i] = append([]float64(nil), dists[:n]...)
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
