package expand

import (
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// State is the in-flight rewrite context attached to a wrapped
// (unmaterialized) operator result.
//
// Invariant: when ApplyPending is false, the wrapped physical source's
// element type already equals the pending selector's output type (the
// projection is a no-op awaiting confirmation). When true, a
// materialization step must run before any further physical operator
// referencing the output shape can be appended.
type State struct {
	// Param is the current bound variable: the logical row variable of
	// the rewritten physical source.
	Param *queryir.Parameter

	// Pending is the deferred projection from Param to the output
	// shape. Its body stays bound (contains BoundNav references) until
	// a terminal operator forces materialization.
	Pending *queryir.Lambda

	// Mappings lists every tracked entity root visible in scope.
	Mappings []*navtree.SourceMapping

	// CustomRoots locates projection values not rooted in a tracked
	// entity (literals, computed scalars) inside the current tuple
	// shape, so their positions stay valid as joins widen it.
	CustomRoots []navtree.Path

	// ApplyPending marks that Pending must be committed before the
	// next shape-observing operator.
	ApplyPending bool
}

// result is what visiting an operator produces: the rewritten physical
// node plus, when the node is still navigation-trackable, its state.
// A nil state means the node passed through unwrapped.
type result struct {
	node  queryir.Node
	state *State
}

func (r result) wrapped() bool { return r.state != nil }
