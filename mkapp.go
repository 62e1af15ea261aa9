package mkapp

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Config controls the index. Start with [DefaultConfig] and override the
// fields you need.
type Config struct {
	// KMax is the largest k for which the approximate distance model is
	// maintained; reverse-kNN queries accept k in [1, KMax]. Must be >= 1.
	// Default: 10.
	KMax int

	// Degree is the degree of the polynomial fitted to the kNN-distance
	// samples of each node and entry. Must satisfy 0 <= Degree < KMax.
	// Default: 2.
	Degree int

	// LogScale fits polynomials over (log k, log distance) pairs, which
	// captures the power-law growth of kNN distance with k better than a
	// direct fit. Default: true.
	LogScale bool

	// Metric is the distance function used for both routing and query
	// distances. Must be symmetric and non-negative.
	// Default: EuclideanMetric.
	Metric DistanceMetric

	// PageSize is the node page size in bytes; it determines how many
	// entries a node may hold. Ignored when a custom PageFile is supplied.
	// Default: 4096.
	PageSize int

	// Workers controls the number of goroutines used by the built-in batch
	// nearest-neighbor computation during InsertAll. 0 means runtime.NumCPU().
	Workers int

	// CheckIntegrity runs a full structural consistency check after every
	// InsertAll. Expensive; intended for diagnostic builds.
	CheckIntegrity bool

	// Logger receives advisory warnings (small page size) and debug output.
	// Default: logrus.StandardLogger().
	Logger *logrus.Logger

	// PageFile stores the tree's nodes. Default: an in-memory page file of
	// PageSize bytes per page.
	PageFile PageFile

	// BatchKNN supplies exact nearest-neighbor distance lists during
	// InsertAll. Default: built-in brute force over the indexed objects.
	BatchKNN BatchKNNSource
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		KMax:     10,
		Degree:   2,
		LogScale: true,
		Metric:   EuclideanMetric{},
		PageSize: 4096,
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	if cfg.KMax < 1 {
		return fmt.Errorf("mkapp: KMax must be >= 1, got %d", cfg.KMax)
	}
	if cfg.Degree < 0 {
		return fmt.Errorf("mkapp: Degree must be >= 0, got %d", cfg.Degree)
	}
	if cfg.Degree >= cfg.KMax {
		return fmt.Errorf("mkapp: Degree must be < KMax, got Degree=%d KMax=%d", cfg.Degree, cfg.KMax)
	}
	if cfg.PageSize <= 0 {
		return fmt.Errorf("mkapp: PageSize must be > 0, got %d", cfg.PageSize)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("mkapp: Workers must be >= 0, got %d", cfg.Workers)
	}
	return nil
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Metric == nil {
		cfg.Metric = EuclideanMetric{}
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 4096
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.PageFile == nil {
		cfg.PageFile = NewMemPageFile(cfg.PageSize)
	}
}

// Tree is a metric index supporting approximate reverse k-nearest-neighbor
// queries. Instead of exact kNN distances it stores, per node and entry, a
// fitted polynomial model of how the kNN distance grows with k, and prunes
// reverse-kNN searches against that model. Results are approximate: the
// model's residual can admit false positives or drop true ones.
//
// A Tree is not safe for concurrent use. Callers interleaving InsertAll and
// ReverseKNN from multiple goroutines need an external lock: exclusive
// around InsertAll, shared around ReverseKNN.
type Tree struct {
	cfg Config
	pf  PageFile
	log *logrus.Logger
	knn BatchKNNSource

	objects map[ObjectID][]float64
	ids     []ObjectID // insertion order, for deterministic iteration

	// knnLists accumulates the exact neighbor distances delivered by the
	// batch kNN source, so approximation propagation after a later batch
	// still has a list for every leaf entry. Lists of earlier batches are
	// not refreshed when new objects arrive; the model they feed is
	// approximate to begin with.
	knnLists map[ObjectID][]float64

	rootPage  int
	rootEntry *entry

	dirCapacity  int
	leafCapacity int
	initialized  bool
}

// NewTree creates an empty tree. Node capacities are planned lazily, at the
// first InsertAll, so a PageTooSmall configuration surfaces there.
func NewTree(cfg Config) (*Tree, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	t := &Tree{
		cfg:      cfg,
		pf:       cfg.PageFile,
		log:      cfg.Logger,
		knn:      cfg.BatchKNN,
		objects:  make(map[ObjectID][]float64),
		knnLists: make(map[ObjectID][]float64),
		rootPage: invalidPageID,
	}
	if t.knn == nil {
		t.knn = &bruteForceKNN{tree: t}
	} else if kd, ok := t.knn.(*KDTreeKNN); ok && kd.tree == nil {
		kd.bind(t)
	}
	return t, nil
}

// KMax returns the largest k supported by reverse-kNN queries on this tree.
func (t *Tree) KMax() int { return t.cfg.KMax }

// NumObjects returns the number of indexed objects.
func (t *Tree) NumObjects() int { return len(t.ids) }

// Insert is not supported: the approximation model is only meaningful over a
// batch, so single-object insertion always returns ErrUnsupportedOperation.
// Use InsertAll.
func (t *Tree) Insert(Object) error { return ErrUnsupportedOperation }

// vector returns the stored vector for id, or nil if unknown.
func (t *Tree) vector(id ObjectID) []float64 { return t.objects[id] }

// distance computes the metric distance between two indexed objects.
func (t *Tree) distance(a, b ObjectID) float64 {
	return t.cfg.Metric.Distance(t.objects[a], t.objects[b])
}

// distanceToVec computes the metric distance from an indexed object to a
// raw vector.
func (t *Tree) distanceToVec(id ObjectID, vec []float64) float64 {
	return t.cfg.Metric.Distance(t.objects[id], vec)
}
