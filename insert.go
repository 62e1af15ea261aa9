package mkapp

import (
	"math"

	"github.com/pkg/errors"
)

// approxAssign stages one computed approximation. Nothing is written to the
// tree until every fit in the batch has succeeded, so a failed InsertAll
// leaves all stored approximations untouched.
type approxAssign struct {
	pageID   int // invalidPageID targets the synthetic root entry
	entryIdx int
	approx   approximation
}

// InsertAll bulk-inserts a batch of objects and recomputes the approximate
// kNN-distance model of every node and entry from the batch's exact
// nearest-neighbor distances. It is the only insertion path: the model is
// fit over a batch, so per-object insertion is unsupported.
//
// The first call plans the node capacities from the configured page size;
// later calls reuse them. Object ids must be unique across the life of the
// tree, and all vectors must share the dimensionality of the first object
// ever inserted.
func (t *Tree) InsertAll(objects []Object) error {
	if len(objects) == 0 {
		return nil
	}

	if !t.initialized {
		if err := t.initializeCapacities(); err != nil {
			return err
		}
	}

	dims := -1
	if len(t.ids) > 0 {
		dims = len(t.objects[t.ids[0]])
	}

	ids := make([]ObjectID, 0, len(objects))
	for _, obj := range objects {
		if _, ok := t.objects[obj.ID]; ok {
			return errors.Errorf("mkapp: duplicate object id %d", obj.ID)
		}
		if dims >= 0 && len(obj.Vector) != dims {
			return errors.Errorf("mkapp: object %d has %d dimensions, tree has %d", obj.ID, len(obj.Vector), dims)
		}
		dims = len(obj.Vector)

		t.objects[obj.ID] = obj.Vector
		t.ids = append(t.ids, obj.ID)
		if err := t.insertObject(obj); err != nil {
			return err
		}
		ids = append(ids, obj.ID)
	}
	t.log.Debugf("mkapp: inserted batch of %d objects, %d total", len(ids), len(t.ids))

	// One amortized exact kNN pass over the batch. KMax+1 neighbors give
	// the model headroom at the top of its range.
	batchLists, err := t.knn.BatchKNN(ids, t.cfg.KMax+1)
	if err != nil {
		return errors.Wrap(err, "mkapp: batch knn")
	}
	for id, knns := range batchLists {
		t.knnLists[id] = knns
	}

	var staged []approxAssign
	rootApprox, err := t.stageApproximations(t.rootEntry.childPage, t.knnLists, &staged)
	if err != nil {
		return err
	}
	staged = append(staged, approxAssign{pageID: invalidPageID, approx: rootApprox})

	for _, a := range staged {
		if a.pageID == invalidPageID {
			t.rootEntry.approx = a.approx
			continue
		}
		n, err := t.getNode(a.pageID)
		if err != nil {
			return err
		}
		n.entries[a.entryIdx].approx = a.approx
		if err := t.pf.Put(n); err != nil {
			return err
		}
	}

	if t.cfg.CheckIntegrity {
		if err := t.checkIntegrity(); err != nil {
			return errors.Wrap(err, "mkapp: integrity check after insert")
		}
	}
	return nil
}

// stageApproximations walks the subtree at pageID post-order, fitting one
// approximation per entry. Leaf entries fit directly from their own object's
// neighbor distances; directory entries recurse first, then fit from the
// mean distance vector over every object transitively under them. Returns
// the approximation for the entry addressing this subtree.
func (t *Tree) stageApproximations(pageID int, knnLists map[ObjectID][]float64, out *[]approxAssign) (approximation, error) {
	n, err := t.getNode(pageID)
	if err != nil {
		return approximation{}, err
	}

	if n.leaf {
		for i, e := range n.entries {
			means, err := meanKNNDistances([]ObjectID{e.routingID}, knnLists, t.cfg.KMax)
			if err != nil {
				return approximation{}, err
			}
			approx, err := t.fitKNNDistances(means)
			if err != nil {
				return approximation{}, errors.Wrapf(err, "leaf entry %d of node %d", i, pageID)
			}
			*out = append(*out, approxAssign{pageID: pageID, entryIdx: i, approx: approx})
		}
	} else {
		for i, e := range n.entries {
			childApprox, err := t.stageApproximations(e.childPage, knnLists, out)
			if err != nil {
				return approximation{}, err
			}
			*out = append(*out, approxAssign{pageID: pageID, entryIdx: i, approx: childApprox})
		}
	}

	subtreeIDs, err := t.leafEntryIDs(pageID, nil)
	if err != nil {
		return approximation{}, err
	}
	means, err := meanKNNDistances(subtreeIDs, knnLists, t.cfg.KMax)
	if err != nil {
		return approximation{}, err
	}
	approx, err := t.fitKNNDistances(means)
	if err != nil {
		return approximation{}, errors.Wrapf(err, "subtree of node %d", pageID)
	}
	return approx, nil
}

// fitKNNDistances fits the configured polynomial to a mean distance vector
// indexed by k-1. In log scale the sample coordinates are (log k, log d);
// a leading run of zero distances cannot be log-transformed and is skipped.
func (t *Tree) fitKNNDistances(means []float64) (approximation, error) {
	k0 := 0
	if t.cfg.LogScale {
		for k0 < len(means) && means[k0] == 0 {
			k0++
		}
	}
	m := len(means) - k0
	if m == 0 {
		return approximation{}, errors.Wrap(ErrDegenerateFit, "all mean distances zero in log scale")
	}

	xs := make([]float64, m)
	ys := make([]float64, m)
	for i := 0; i < m; i++ {
		k := float64(k0 + i + 1)
		d := means[k0+i]
		if t.cfg.LogScale {
			xs[i] = math.Log(k)
			ys[i] = math.Log(d)
		} else {
			xs[i] = k
			ys[i] = d
		}
	}

	coeffs, err := polyFit(xs, ys, t.cfg.Degree)
	if err != nil {
		return approximation{}, err
	}
	return approximation{coeffs: coeffs}, nil
}

// approxValueAt evaluates an entry's distance model at k, undoing the log
// transform for log-scale trees. Negative estimates clamp to 0: they mean
// "essentially no distance budget", never "no neighbor".
func (t *Tree) approxValueAt(a approximation, k int) float64 {
	if !a.valid() {
		return 0
	}
	x := float64(k)
	if t.cfg.LogScale {
		x = math.Log(x)
	}
	v := a.valueAt(x)
	if t.cfg.LogScale {
		v = math.Exp(v)
	}
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	return v
}
