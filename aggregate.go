package mkapp

import "github.com/pkg/errors"

// meanKNNDistances averages the k-th nearest-neighbor distance across a set
// of objects, for every k in [1, kMax]. knnLists maps each object id to its
// true nearest-neighbor distances in ascending order; an id whose list is
// shorter than k contributes nothing to the k-th mean, but the divisor stays
// the full id count so subtree means remain comparable across ks.
//
// The id set is frequently a singleton (one leaf entry), in which case the
// mean degenerates to the entry's own distance list; no special case is made.
func meanKNNDistances(ids []ObjectID, knnLists map[ObjectID][]float64, kMax int) ([]float64, error) {
	if len(ids) == 0 {
		return nil, errors.Wrap(ErrEmptyInput, "mean knn distances")
	}

	means := make([]float64, kMax)
	for _, id := range ids {
		knns := knnLists[id]
		for k := 0; k < kMax && k < len(knns); k++ {
			means[k] += knns[k]
		}
	}
	for k := range means {
		means[k] /= float64(len(ids))
	}
	return means, nil
}
