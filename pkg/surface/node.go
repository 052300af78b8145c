package surface

// Node carries the identity and change state shared by concrete surfaces.
// Embed it to get ID, Name and a draining Changed.
//
// A Node is not safe for concurrent mutation; callers serialize
// SetParameter against other access.
type Node struct {
	id    uint32
	name  string
	dirty *Box
}

// NewNode returns a Node with the given identity.
func NewNode(id uint32, name string) Node {
	return Node{id: id, name: name}
}

// ID returns the node identity.
func (n *Node) ID() uint32 { return n.id }

// Name returns the node name, or DefaultName when unset.
func (n *Node) Name() string {
	if n.name == "" {
		return DefaultName
	}
	return n.name
}

// MarkDirty records that region changed. Pending regions accumulate until
// the next call to Changed.
func (n *Node) MarkDirty(region Box) {
	if n.dirty != nil {
		region = Merge(*n.dirty, region)
	}
	n.dirty = &region
}

// Dirty reports whether a change is pending.
func (n *Node) Dirty() bool { return n.dirty != nil }

// Changed returns the pending region and clears it.
func (n *Node) Changed() (Box, bool) {
	if n.dirty == nil {
		return Box{}, false
	}
	b := *n.dirty
	n.dirty = nil
	return b, true
}
