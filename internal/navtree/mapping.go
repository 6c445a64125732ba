package navtree

import "github.com/kestrel-orm/kestrel/internal/model"

// SourceMapping binds one tracked entity root to its navigation tree
// within the current operator's variable scope. A query carries several
// mappings at once after a join (both sides remain roots) and a single
// fresh mapping after a projection is materialized.
//
// The location of the root entity's value inside the current bound
// variable's tuple shape is the tree root's to-path: empty while the
// root IS the bound variable, growing as joins and combinators nest
// tuples around it.
type SourceMapping struct {
	Entity *model.EntityType
	Tree   *Tree
}

// NewSourceMapping creates a mapping rooted directly at the bound
// variable, with a fresh single-node tree.
func NewSourceMapping(entity *model.EntityType) *SourceMapping {
	return &SourceMapping{Entity: entity, Tree: NewTree(entity)}
}

// RootPath locates the root entity's value inside the bound variable.
func (sm *SourceMapping) RootPath() Path { return sm.Tree.ToPath(RootID) }

// PrependPaths re-routes the mapping through a widened tuple shape:
// the given sides are prepended to every expanded node's to-path,
// the root's included.
func (sm *SourceMapping) PrependPaths(sides ...Side) {
	sm.Tree.PrependToExpanded(sides)
}
