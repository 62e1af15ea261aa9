package mkapp

// ObjectID identifies an indexed object.
type ObjectID int64

// Object is one item to index: an identifier and its vector representation.
// Vectors of one batch must share dimensionality.
type Object struct {
	ID     ObjectID
	Vector []float64
}

// entry is a slot in a node. In a leaf node it represents a single indexed
// object (routingID is the object's own id). In a directory node it routes
// to a child page: childPage addresses the subtree and coveringRadius upper
// bounds the distance from the routing object to anything in it.
//
// parentDist is the distance from this entry's routing object to the routing
// object of the parent entry (0 for entries directly under the root).
type entry struct {
	routingID  ObjectID
	parentDist float64
	approx     approximation

	childPage      int
	coveringRadius float64
}

// node is one page worth of entries, either all leaf entries or all
// directory entries. Nodes are addressed by page id through the page file
// and written back after every mutation.
type node struct {
	pageID  int
	leaf    bool
	entries []*entry
}

func newNode(pageID int, leaf bool, capacity int) *node {
	return &node{
		pageID:  pageID,
		leaf:    leaf,
		entries: make([]*entry, 0, capacity),
	}
}

func (n *node) addEntry(e *entry) { n.entries = append(n.entries, e) }
