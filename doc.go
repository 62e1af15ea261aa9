// Package mkapp implements a disk-page-oriented metric index for approximate
// reverse k-nearest-neighbor (RkNN) search.
//
// The index is an M-tree variant: objects live in leaf pages, directory
// pages route through representative objects with covering radii. Instead of
// storing exact kNN distances per object and per k, every node and entry
// carries a small polynomial fitted to the mean kNN-distance curve of its
// subtree (optionally in log-log space, which suits the power-law growth of
// kNN distance with k). Reverse-kNN queries prune subtrees against that
// model, so they are approximate: depending on the fit residual they can
// report false positives or miss true results.
//
// Basic usage:
//
//	cfg := mkapp.DefaultConfig()
//	cfg.KMax = 20
//	cfg.Degree = 2
//	tree, err := mkapp.NewTree(cfg)
//	err = tree.InsertAll(objects)              // bulk insertion only
//	hits, err := tree.ReverseKNN(queryID, 5)   // k in [1, KMax]
//
// Insertion is strictly batched: the distance model is fit from an exact
// batch nearest-neighbor pass over the inserted objects, so there is no
// single-object insert. A Tree is not safe for concurrent use; guard it with
// an external lock if insertions and queries interleave.
package mkapp
