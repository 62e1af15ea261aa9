package mkapp

import "github.com/pkg/errors"

// On-page field widths. They define the node byte layout the capacity
// formulas are derived from; the in-memory page file does not serialize
// nodes, but capacities must honor the layout so a disk-backed page file
// can be swapped in without re-planning.
const (
	objectIDWidth    = 4
	pageIDWidth      = 4
	distanceWidth    = 8
	coefficientWidth = 4
	entryBookkeeping = 2

	// Per-node overhead: node index (4), entry count (4), page id (4),
	// plus one leaf/directory flag bit.
	nodeOverheadBytes = 12.125

	// Below this many entries per node the tree degenerates toward a
	// linked list; worth a warning, not an error.
	lowCapacityThreshold = 10
)

// directoryEntrySize returns the on-page byte size of a directory entry for
// polynomial degree p: child page id, routing object id, covering radius,
// parent distance, p+1 coefficients, bookkeeping.
func directoryEntrySize(p int) int {
	return pageIDWidth + objectIDWidth + distanceWidth + distanceWidth + (p+1)*coefficientWidth + entryBookkeeping
}

// leafEntrySize returns the on-page byte size of a leaf entry for polynomial
// degree p: object id, parent distance, p+1 coefficients, bookkeeping.
func leafEntrySize(p int) int {
	return objectIDWidth + distanceWidth + (p+1)*coefficientWidth + entryBookkeeping
}

// computeCapacities determines the directory and leaf node capacities for the
// given page size. A node may persistently hold capacity-1 entries; the extra
// slot absorbs the overflowing entry during a split. Returns ErrPageTooSmall
// if the page cannot hold even a routing entry plus one child or object.
func computeCapacities(pageSize int, overhead float64, dirEntrySize, leafEntrySize int) (dirCapacity, leafCapacity int, err error) {
	usable := float64(pageSize) - overhead
	if usable < 0 {
		return 0, 0, errors.Wrapf(ErrPageTooSmall, "page size %d bytes", pageSize)
	}

	dirCapacity = int(usable)/dirEntrySize + 1
	if dirCapacity <= 1 {
		return 0, 0, errors.Wrapf(ErrPageTooSmall, "page size %d bytes holds no directory entry", pageSize)
	}

	leafCapacity = int(usable)/leafEntrySize + 1
	if leafCapacity <= 1 {
		return 0, 0, errors.Wrapf(ErrPageTooSmall, "page size %d bytes holds no leaf entry", pageSize)
	}

	return dirCapacity, leafCapacity, nil
}

// initializeCapacities computes and stores the node capacities once, at the
// first bulk insertion. Low capacities are advisory warnings only.
func (t *Tree) initializeCapacities() error {
	dirCap, leafCap, err := computeCapacities(
		t.pf.PageSize(), nodeOverheadBytes,
		directoryEntrySize(t.cfg.Degree), leafEntrySize(t.cfg.Degree),
	)
	if err != nil {
		return err
	}

	if dirCap < lowCapacityThreshold {
		t.log.Warnf("mkapp: page size %d is small: max %d entries per directory node", t.pf.PageSize(), dirCap-1)
	}
	if leafCap < lowCapacityThreshold {
		t.log.Warnf("mkapp: page size %d is small: max %d entries per leaf node", t.pf.PageSize(), leafCap-1)
	}

	t.dirCapacity = dirCap
	t.leafCapacity = leafCap
	t.initialized = true

	t.log.Debugf("mkapp: directory capacity %d, leaf capacity %d", dirCap-1, leafCap-1)
	return nil
}
