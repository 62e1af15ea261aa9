package mkapp

import (
	"math"

	"github.com/pkg/errors"
)

// integrityTol absorbs floating-point drift in stored distances.
const integrityTol = 1e-9

// checkIntegrity verifies the structural invariants of the whole tree:
// entry counts within capacity, stored parent distances matching recomputed
// ones, covering radii containing every object of their subtree, every entry
// carrying an approximation, and the leaf count matching the number of
// indexed objects. Expensive; run only when Config.CheckIntegrity is set.
func (t *Tree) checkIntegrity() error {
	if t.rootPage == invalidPageID {
		if len(t.ids) > 0 {
			return errors.Errorf("mkapp: %d objects indexed but no root", len(t.ids))
		}
		return nil
	}

	seen := 0
	if err := t.checkNode(t.rootPage, -1, false, math.Inf(1), &seen); err != nil {
		return err
	}
	if seen != len(t.ids) {
		return errors.Errorf("mkapp: tree holds %d leaf entries, expected %d", seen, len(t.ids))
	}
	return nil
}

func (t *Tree) checkNode(pageID int, parentRouting ObjectID, hasParent bool, radius float64, seen *int) error {
	n, err := t.getNode(pageID)
	if err != nil {
		return err
	}

	if len(n.entries) > t.capacityOf(n)-1 {
		return errors.Errorf("mkapp: node %d holds %d entries, capacity allows %d",
			pageID, len(n.entries), t.capacityOf(n)-1)
	}

	for i, e := range n.entries {
		if !e.approx.valid() {
			return errors.Errorf("mkapp: entry %d of node %d has no approximation", i, pageID)
		}

		if hasParent {
			pd := t.distance(e.routingID, parentRouting)
			if math.Abs(pd-e.parentDist) > integrityTol {
				return errors.Errorf("mkapp: entry %d of node %d stores parent distance %g, recomputed %g",
					i, pageID, e.parentDist, pd)
			}
			if pd > radius+integrityTol {
				return errors.Errorf("mkapp: entry %d of node %d at distance %g outside covering radius %g",
					i, pageID, pd, radius)
			}
		}

		if n.leaf {
			*seen++
			continue
		}

		subtreeIDs, err := t.leafEntryIDs(e.childPage, nil)
		if err != nil {
			return err
		}
		for _, id := range subtreeIDs {
			if d := t.distance(e.routingID, id); d > e.coveringRadius+integrityTol {
				return errors.Errorf("mkapp: object %d at distance %g outside covering radius %g of entry %d in node %d",
					id, d, e.coveringRadius, i, pageID)
			}
		}

		if err := t.checkNode(e.childPage, e.routingID, true, e.coveringRadius, seen); err != nil {
			return err
		}
	}
	return nil
}
