package zone

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Node is a single node in the zone tree, addressed by a Name. It owns
// a type->RRSet mapping and two optional back-pointers:
// the apex zone it belongs to, and (only at zone cuts) the child apex
// zone delegated to below it.
type Node struct {
	name     Name
	children cmap.ConcurrentMap[string, *Node]
	RRtypes  *RRTypeStore

	// apex is set on every node that is itself the root of a zone.
	apex *ApexZone

	// childApex is set only at a zone cut: a node below some apex that
	// delegates to another, separately-rooted, apex zone.
	childApex *ApexZone

	// parent is a weak (non-owning) back-pointer used to ascend the tree
	// for closest-encloser / wildcard lookups. The apex owns the
	// subtree's lifetime.
	parent *Node
}

func newNode(name Name, parent *Node) *Node {
	return &Node{
		name:     name,
		children: cmap.New[*Node](),
		RRtypes:  NewRRTypeStore(),
		parent:   parent,
	}
}

func (n *Node) Name() Name { return n.name }

// IsApex reports whether this node is the root of a zone.
func (n *Node) IsApex() bool { return n.apex != nil }

// Apex returns the apex zone this node belongs to: itself if it is an
// apex, otherwise it ascends the tree looking for the nearest ancestor
// apex (or child-apex at a cut, whichever is closer).
func (n *Node) Apex() *ApexZone {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.childApex != nil && cur != n {
			// We ascended past a delegation cut without finding our own
			// apex first; this subtree belongs to that child apex.
			return cur.childApex
		}
		if cur.apex != nil {
			return cur.apex
		}
	}
	return nil
}

// IsDelegationCut reports whether this node carries a non-empty NS RRSet
// without being an apex itself, which is what makes it a delegation.
func (n *Node) IsDelegationCut() bool {
	if n.IsApex() {
		return false
	}
	rrset, ok := n.RRtypes.Get(TypeNS)
	return ok && len(rrset.Records) > 0
}

// HasChildren reports whether this node has any child labels below it,
// used to distinguish NXDOMAIN from NODATA.
func (n *Node) HasChildren() bool { return n.children.Count() > 0 }

func (n *Node) childNames() []string { return n.children.Keys() }

// ChildLabels exposes the node's immediate child labels to other packages
// (e.g. internal/transfer walking a zone for AXFR) without leaking the
// underlying concurrent map.
func (n *Node) ChildLabels() []string { return n.childNames() }

// ChildByLabel looks up a single immediate child by label.
func (n *Node) ChildByLabel(label string) (*Node, bool) { return n.children.Get(label) }
