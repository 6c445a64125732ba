package expand

import (
	"fmt"

	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// touch records one navigation-tree node referenced by a bound lambda,
// in first-touch order (parents naturally precede children).
type touch struct {
	sm *navtree.SourceMapping
	id navtree.NodeID
}

// binder is the navigation binding visitor: it replaces member-access
// chains resolvable against the active source mappings with BoundNav
// references, lazily growing the navigation trees. Unresolvable chains
// pass through unchanged - they may be non-entity values, which is not
// an error.
type binder struct {
	ex      *Expander
	st      *State
	touched []touch
	err     error
}

func (b *binder) bind(e queryir.Expr) (queryir.Expr, error) {
	out := queryir.RewriteExpr(e, b.rewrite)
	if b.err != nil {
		return nil, b.err
	}
	return out, nil
}

func (b *binder) rewrite(e queryir.Expr) queryir.Expr {
	if b.err != nil {
		return e
	}
	switch x := e.(type) {
	case *queryir.Parameter:
		return b.resolveRoot(x)
	case *queryir.TupleField:
		// Composition of a user lambda against the pending selector
		// leaves tuple reads over fresh tuple constructions behind;
		// reduce them before trying to resolve the chain.
		if nt, ok := x.Expr.(*queryir.NewTuple); ok {
			if x.Side == navtree.SideInner {
				return nt.Inner
			}
			return nt.Outer
		}
		return b.resolveRoot(x)
	case *queryir.Member:
		if bn, ok := x.Expr.(*queryir.BoundNav); ok {
			return b.resolveMember(x, bn)
		}
	}
	return e
}

// resolveRoot binds a parameter or tuple-field chain that lands exactly
// on a tracked entity root.
func (b *binder) resolveRoot(e queryir.Expr) queryir.Expr {
	ref, ok := e.ExprType().(*queryir.EntityRef)
	if !ok {
		return e
	}
	param, path, ok := chainPath(e)
	if !ok || param.ID != b.st.Param.ID {
		return e
	}

	var found *navtree.SourceMapping
	for _, sm := range b.st.Mappings {
		if sm.Entity.Name != ref.Entity.Name || !pathEqual(sm.RootPath(), path) {
			continue
		}
		if found != nil {
			b.err = errAmbiguous(fmt.Sprintf("%s at %s", ref.Entity.Name, path))
			return e
		}
		found = sm
	}
	if found == nil {
		return e
	}
	return &queryir.BoundNav{Mapping: found, Node: navtree.RootID, Type: ref}
}

// resolveMember binds one navigation hop on an already-bound reference,
// registering a new unexpanded tree node on first touch. Scalar
// property accesses keep their Member shape (with the declared type);
// collection navigations are left for the flatten processor.
func (b *binder) resolveMember(x *queryir.Member, bn *queryir.BoundNav) queryir.Expr {
	ent := bn.Mapping.Tree.EntityFor(bn.Node, b.ex.Model)
	if ent == nil {
		return x
	}
	if nav := ent.Navigation(x.Name); nav != nil {
		if nav.Collection {
			return x
		}
		target := b.ex.Model.Entity(nav.Target)
		if target == nil {
			b.err = errInvariant("", "navigation targets unknown entity", nav.Target)
			return x
		}
		child := bn.Mapping.Tree.AddChild(bn.Node, nav)
		b.touched = append(b.touched, touch{sm: bn.Mapping, id: child})
		return &queryir.BoundNav{Mapping: bn.Mapping, Node: child, Type: &queryir.EntityRef{Entity: target}}
	}
	if p := ent.Property(x.Name); p != nil {
		return &queryir.Member{Expr: bn, Name: x.Name, Type: queryir.PropertyType(p)}
	}
	return x
}

// composeWithPending substitutes a lambda parameter by the pending
// selector: its bound body outside subqueries, its physical (unbound)
// equivalent inside them. A subquery keeps its own binding scope, so an
// enclosing reference crossing the boundary must already be physical.
func composeWithPending(body queryir.Expr, id string, bound, physical queryir.Expr) queryir.Expr {
	return queryir.RewriteExpr(body, func(sub queryir.Expr) queryir.Expr {
		switch x := sub.(type) {
		case *queryir.Parameter:
			if x.ID == id {
				return bound
			}
		case *queryir.Subquery:
			return &queryir.Subquery{Node: queryir.ReplaceParameterInNode(x.Node, id, physical)}
		}
		return sub
	})
}

func pathEqual(a, b navtree.Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
