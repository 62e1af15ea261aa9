package mkapp

import (
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

// invalidPageID marks entries that do not address a child page (leaf entries)
// and trees that have no root yet.
const invalidPageID = -1

// PageFile stores nodes addressed by page id. The tree fetches nodes per
// operation and never holds references across calls, so implementations are
// free to evict; Put must persist the node state as of the call.
type PageFile interface {
	Get(pageID int) (*node, error)
	Put(n *node) error
	Allocate() int
	PageSize() int
}

// pageItem keys a node by page id inside the page directory.
type pageItem struct {
	id int
	n  *node
}

func (p pageItem) Less(than btree.Item) bool { return p.id < than.(pageItem).id }

// MemPageFile is an in-memory PageFile backed by an ordered page directory.
// The ordering gives deterministic page walks for diagnostics; it is not
// required by the tree itself.
type MemPageFile struct {
	mu       sync.Mutex
	pages    *btree.BTree
	nextID   int
	pageSize int
}

// NewMemPageFile creates an in-memory page file reporting the given page
// size. The page size only drives capacity planning; nodes are stored as
// structs, not serialized.
func NewMemPageFile(pageSize int) *MemPageFile {
	return &MemPageFile{
		pages:    btree.New(16),
		pageSize: pageSize,
	}
}

func (f *MemPageFile) Get(pageID int) (*node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item := f.pages.Get(pageItem{id: pageID})
	if item == nil {
		return nil, errors.Errorf("mkapp: no page %d", pageID)
	}
	return item.(pageItem).n, nil
}

func (f *MemPageFile) Put(n *node) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pages.ReplaceOrInsert(pageItem{id: n.pageID, n: n})
	return nil
}

func (f *MemPageFile) Allocate() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	return id
}

func (f *MemPageFile) PageSize() int { return f.pageSize }

// NumPages reports how many pages have been written.
func (f *MemPageFile) NumPages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages.Len()
}
