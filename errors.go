package mkapp

import "errors"

// Sentinel errors returned by the index. Wrapped errors carry context;
// match with errors.Is.
var (
	// ErrPageTooSmall means the configured page size cannot hold even a
	// minimal node. Raised once, at capacity initialization, and aborts
	// tree construction.
	ErrPageTooSmall = errors.New("mkapp: page size too small for a single node")

	// ErrDegenerateFit means a polynomial fit was requested with fewer
	// distinct sample points than coefficients. Aborts the enclosing
	// InsertAll; no approximation from the failed batch is committed.
	ErrDegenerateFit = errors.New("mkapp: not enough distinct samples for polynomial degree")

	// ErrEmptyInput means an aggregation was requested over zero object
	// identifiers. Indicates a caller bug.
	ErrEmptyInput = errors.New("mkapp: empty identifier set")

	// ErrInvalidK means a reverse-kNN query used k outside [1, KMax].
	// Aborts that query only.
	ErrInvalidK = errors.New("mkapp: k out of range")

	// ErrUnsupportedOperation means a single-object insert was attempted.
	// The approximation model is only meaningful over a batch, so the
	// index deliberately has no single-object path.
	ErrUnsupportedOperation = errors.New("mkapp: single-object insertion is not supported")

	// ErrUnknownObject means an operation referenced an object identifier
	// that was never inserted into the tree.
	ErrUnknownObject = errors.New("mkapp: unknown object id")
)
