// Package navtree tracks which navigation paths a query has touched and
// whether each has been expanded into a join yet.
//
// A Tree is an arena of nodes addressed by stable NodeIDs. Node paths
// are sequences of tuple-side tags ("outer"/"inner") describing how to
// reach a node's value through the nested composite tuples produced by
// successive joins. The arena layout keeps mutation explicit: the
// expansion pass owns exactly one Tree per tracked root and mutates it
// in place as joins are emitted; trees are never shared across
// compilations.
package navtree

import (
	"fmt"

	"github.com/kestrel-orm/kestrel/internal/model"
)

// Side identifies one field of a composite tuple.
type Side int

const (
	SideOuter Side = iota
	SideInner
)

// String returns "outer" or "inner".
func (s Side) String() string {
	if s == SideInner {
		return "inner"
	}
	return "outer"
}

// Path is a sequence of tuple sides, outermost first.
type Path []Side

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Prepend returns a new path with the given sides in front.
func (p Path) Prepend(sides ...Side) Path {
	out := make(Path, 0, len(sides)+len(p))
	out = append(out, sides...)
	out = append(out, p...)
	return out
}

// String renders the path as "outer.inner.…" ("." for the empty path).
func (p Path) String() string {
	if len(p) == 0 {
		return "."
	}
	s := ""
	for i, side := range p {
		if i > 0 {
			s += "."
		}
		s += side.String()
	}
	return s
}

// NodeID addresses a node within its Tree. The root is always node 0.
type NodeID int

// RootID is the NodeID of every tree's root node.
const RootID NodeID = 0

type node struct {
	nav      *model.Navigation // nil for the root
	parent   NodeID            // RootID's parent is itself
	children []NodeID          // creation order
	expanded bool
	fromPath Path
	toPath   Path
}

// Tree is the navigation tree for one tracked entity root.
type Tree struct {
	root  *model.EntityType
	nodes []node
}

// NewTree creates a tree whose root represents the given entity type.
// The root node carries no navigation and is considered expanded.
func NewTree(root *model.EntityType) *Tree {
	return &Tree{
		root:  root,
		nodes: []node{{parent: RootID, expanded: true}},
	}
}

// RootEntity returns the entity type the tree's root represents.
func (t *Tree) RootEntity() *model.EntityType { return t.root }

// Len returns the number of nodes, including the root.
func (t *Tree) Len() int { return len(t.nodes) }

// Navigation returns the navigation definition of a node (nil for root).
func (t *Tree) Navigation(id NodeID) *model.Navigation { return t.nodes[id].nav }

// Parent returns a node's parent (the root is its own parent).
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].parent }

// Expanded reports whether the node's join has been emitted.
func (t *Tree) Expanded(id NodeID) bool { return t.nodes[id].expanded }

// Optional reports whether the node's relationship is nullable.
func (t *Tree) Optional(id NodeID) bool {
	nav := t.nodes[id].nav
	return nav != nil && nav.Optional
}

// ToPath returns the node's value path through the current tuple shape.
func (t *Tree) ToPath(id NodeID) Path { return t.nodes[id].toPath }

// FromPath returns the path of the node's parent value at expansion time.
func (t *Tree) FromPath(id NodeID) Path { return t.nodes[id].fromPath }

// Children returns a node's children in creation order.
func (t *Tree) Children(id NodeID) []NodeID { return t.nodes[id].children }

// Child finds a child of parent by navigation name, or -1.
func (t *Tree) Child(parent NodeID, name string) NodeID {
	for _, c := range t.nodes[parent].children {
		if t.nodes[c].nav.Name == name {
			return c
		}
	}
	return -1
}

// AddChild lazily creates an unexpanded child for the navigation.
// If a child for that navigation already exists it is returned as-is.
func (t *Tree) AddChild(parent NodeID, nav *model.Navigation) NodeID {
	if existing := t.Child(parent, nav.Name); existing >= 0 {
		return existing
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{
		nav:      nav,
		parent:   parent,
		fromPath: t.nodes[parent].toPath.Clone(),
	})
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id
}

// MarkExpanded transitions a node to expanded. A node may only be
// expanded once and only after its parent.
func (t *Tree) MarkExpanded(id NodeID) error {
	n := &t.nodes[id]
	if n.expanded {
		return fmt.Errorf("navtree: node %d (%s) already expanded", id, t.nodeName(id))
	}
	if !t.nodes[n.parent].expanded {
		return fmt.Errorf("navtree: node %d (%s) expanded before its parent", id, t.nodeName(id))
	}
	n.expanded = true
	return nil
}

// SetToPath replaces the node's value path.
func (t *Tree) SetToPath(id NodeID, p Path) { t.nodes[id].toPath = p }

// PrependToExpanded prepends sides to every expanded node's to-path
// except the ones listed in skip. Called when a new join widens the
// tuple shape: every live path must be re-routed through the new
// outer field(s).
func (t *Tree) PrependToExpanded(sides []Side, skip ...NodeID) {
	for id := range t.nodes {
		if !t.nodes[id].expanded {
			continue
		}
		skipped := false
		for _, s := range skip {
			if NodeID(id) == s {
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}
		t.nodes[id].toPath = t.nodes[id].toPath.Prepend(sides...)
	}
}

// ExpandedCount returns the number of expanded nodes, excluding the root.
func (t *Tree) ExpandedCount() int {
	n := 0
	for id := 1; id < len(t.nodes); id++ {
		if t.nodes[id].expanded {
			n++
		}
	}
	return n
}

// Walk visits every node in ID order (root first).
func (t *Tree) Walk(fn func(NodeID)) {
	for id := range t.nodes {
		fn(NodeID(id))
	}
}

// EntityFor resolves the entity type a node's value has.
func (t *Tree) EntityFor(id NodeID, m *model.Model) *model.EntityType {
	if id == RootID {
		return t.root
	}
	return m.Entity(t.nodes[id].nav.Target)
}

func (t *Tree) nodeName(id NodeID) string {
	if id == RootID {
		return t.root.Name
	}
	return t.nodes[id].nav.Name
}

// PathString renders the dotted navigation path from the root to a node,
// e.g. "Order.Customer". Used in diagnostics.
func (t *Tree) PathString(id NodeID) string {
	if id == RootID {
		return t.root.Name
	}
	return t.PathString(t.nodes[id].parent) + "." + t.nodes[id].nav.Name
}
