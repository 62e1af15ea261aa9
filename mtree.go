package mkapp

import (
	"math"

	"github.com/pkg/errors"
)

// pathStep records one directory hop of an insertion descent: the page of a
// directory node and the index of the entry taken within it.
type pathStep struct {
	pageID   int
	entryIdx int
}

func (t *Tree) getNode(pageID int) (*node, error) {
	n, err := t.pf.Get(pageID)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch node %d", pageID)
	}
	return n, nil
}

// ensureRoot creates the initial leaf root on first use. The synthetic root
// entry has no routing object; it exists to give the whole tree an
// approximation slot.
func (t *Tree) ensureRoot() error {
	if t.rootPage != invalidPageID {
		return nil
	}
	root := newNode(t.pf.Allocate(), true, t.leafCapacity)
	if err := t.pf.Put(root); err != nil {
		return err
	}
	t.rootPage = root.pageID
	t.rootEntry = &entry{routingID: -1, childPage: root.pageID}
	return nil
}

// chooseSubtree picks the directory entry to descend into for a new object.
// Among entries whose covering radius already contains the object, the
// closest routing object wins; otherwise the entry needing the least radius
// enlargement wins. Returns the entry index and the distance to its routing
// object.
func (t *Tree) chooseSubtree(n *node, vec []float64) (int, float64) {
	bestIdx := -1
	bestDist := math.Inf(1)
	bestEnlargement := math.Inf(1)
	covered := false

	for i, e := range n.entries {
		d := t.distanceToVec(e.routingID, vec)
		if d <= e.coveringRadius {
			if !covered || d < bestDist {
				covered = true
				bestIdx, bestDist = i, d
			}
		} else if !covered {
			if enl := d - e.coveringRadius; enl < bestEnlargement {
				bestEnlargement = enl
				bestIdx, bestDist = i, d
			}
		}
	}
	return bestIdx, bestDist
}

// insertObject places one object into the tree, growing covering radii along
// the descent and splitting overflowing nodes bottom-up.
func (t *Tree) insertObject(obj Object) error {
	if err := t.ensureRoot(); err != nil {
		return err
	}

	var path []pathStep
	pageID := t.rootPage
	parentRouting := ObjectID(-1)
	hasParent := false

	n, err := t.getNode(pageID)
	if err != nil {
		return err
	}
	for !n.leaf {
		idx, d := t.chooseSubtree(n, obj.Vector)
		e := n.entries[idx]
		if d > e.coveringRadius {
			e.coveringRadius = d
			if err := t.pf.Put(n); err != nil {
				return err
			}
		}
		path = append(path, pathStep{pageID: pageID, entryIdx: idx})
		parentRouting = e.routingID
		hasParent = true

		pageID = e.childPage
		if n, err = t.getNode(pageID); err != nil {
			return err
		}
	}

	var parentDist float64
	if hasParent {
		parentDist = t.distanceToVec(parentRouting, obj.Vector)
	}
	n.addEntry(&entry{routingID: obj.ID, parentDist: parentDist, childPage: invalidPageID})
	if err := t.pf.Put(n); err != nil {
		return err
	}

	if len(n.entries) >= t.capacityOf(n) {
		return t.splitNode(n, path)
	}
	return nil
}

func (t *Tree) capacityOf(n *node) int {
	if n.leaf {
		return t.leafCapacity
	}
	return t.dirCapacity
}

// splitNode splits an overflowing node: promotes the two entries with the
// largest pairwise routing distance, partitions the rest by proximity, and
// wires the two halves into the parent, recursing if the parent overflows in
// turn. A root split grows the tree by one level.
func (t *Tree) splitNode(n *node, path []pathStep) error {
	i1, i2 := t.promote(n)
	r1 := n.entries[i1].routingID
	r2 := n.entries[i2].routingID

	sibling := newNode(t.pf.Allocate(), n.leaf, t.capacityOf(n))
	group1 := make([]*entry, 0, len(n.entries))

	var radius1, radius2 float64
	for i, e := range n.entries {
		d1 := t.distance(e.routingID, r1)
		d2 := t.distance(e.routingID, r2)
		toFirst := d1 <= d2
		if i == i1 {
			toFirst = true
		} else if i == i2 {
			toFirst = false
		}

		if toFirst {
			e.parentDist = d1
			group1 = append(group1, e)
			radius1 = math.Max(radius1, d1+e.coveringRadius)
		} else {
			e.parentDist = d2
			sibling.addEntry(e)
			radius2 = math.Max(radius2, d2+e.coveringRadius)
		}
	}
	n.entries = group1

	if err := t.pf.Put(n); err != nil {
		return err
	}
	if err := t.pf.Put(sibling); err != nil {
		return err
	}

	e1 := &entry{routingID: r1, childPage: n.pageID, coveringRadius: radius1}
	e2 := &entry{routingID: r2, childPage: sibling.pageID, coveringRadius: radius2}

	if len(path) == 0 {
		return t.growRoot(e1, e2)
	}

	parentStep := path[len(path)-1]
	parent, err := t.getNode(parentStep.pageID)
	if err != nil {
		return err
	}

	// Parent distances of the two new entries are measured against the
	// routing object of the entry addressing the parent node, if any.
	if len(path) >= 2 {
		grandStep := path[len(path)-2]
		grand, err := t.getNode(grandStep.pageID)
		if err != nil {
			return err
		}
		grandRouting := grand.entries[grandStep.entryIdx].routingID
		e1.parentDist = t.distance(r1, grandRouting)
		e2.parentDist = t.distance(r2, grandRouting)
	}

	parent.entries[parentStep.entryIdx] = e1
	parent.addEntry(e2)
	if err := t.pf.Put(parent); err != nil {
		return err
	}

	if len(parent.entries) >= t.dirCapacity {
		return t.splitNode(parent, path[:len(path)-1])
	}
	return nil
}

// promote returns the indices of the two entries with the largest pairwise
// routing-object distance. Quadratic in the entry count, which is bounded by
// the node capacity.
func (t *Tree) promote(n *node) (int, int) {
	best1, best2 := 0, 1
	bestDist := math.Inf(-1)
	for i := 0; i < len(n.entries); i++ {
		for j := i + 1; j < len(n.entries); j++ {
			d := t.distance(n.entries[i].routingID, n.entries[j].routingID)
			if d > bestDist {
				bestDist = d
				best1, best2 = i, j
			}
		}
	}
	return best1, best2
}

// growRoot replaces a split root with a new directory root over the two
// halves.
func (t *Tree) growRoot(e1, e2 *entry) error {
	root := newNode(t.pf.Allocate(), false, t.dirCapacity)
	root.addEntry(e1)
	root.addEntry(e2)
	if err := t.pf.Put(root); err != nil {
		return err
	}
	t.rootPage = root.pageID
	t.rootEntry.childPage = root.pageID
	return nil
}

// leafEntryIDs appends the ids of every object stored in the subtree rooted
// at pageID to dst, in entry order.
func (t *Tree) leafEntryIDs(pageID int, dst []ObjectID) ([]ObjectID, error) {
	n, err := t.getNode(pageID)
	if err != nil {
		return nil, err
	}
	if n.leaf {
		for _, e := range n.entries {
			dst = append(dst, e.routingID)
		}
		return dst, nil
	}
	for _, e := range n.entries {
		if dst, err = t.leafEntryIDs(e.childPage, dst); err != nil {
			return nil, err
		}
	}
	return dst, nil
}
