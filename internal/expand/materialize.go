package expand

import (
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// unbind turns bound navigation references back into literal
// tuple-field chains against the expanded join shape. The result is a
// purely physical expression a backend can consume.
func unbind(e queryir.Expr, st *State) (queryir.Expr, error) {
	var firstErr error
	out := queryir.RewriteExpr(e, func(sub queryir.Expr) queryir.Expr {
		bn, ok := sub.(*queryir.BoundNav)
		if !ok {
			return sub
		}
		path, err := pathExpr(st.Param, bn.Mapping.Tree.ToPath(bn.Node))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return sub
		}
		return path
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// materialize commits the pending selector into a real projection
// operator and re-roots the expansion state against the projection's
// output shape: every bound reference still sitting at a structural
// position of the output becomes a fresh source mapping seeded at that
// position, so navigation tracking continues across the terminal (a
// projection to a related entity keeps that entity's own navigations
// trackable). Positions not rooted in a tracked entity become custom
// roots.
//
// An identity-shaped pending selector materializes to nothing: the
// physical source already has the output shape, so no projection
// operator is emitted and the state is kept (only ApplyPending drops).
func (e *Expander) materialize(src queryir.Node, st *State) (queryir.Node, *State, error) {
	unbound, err := unbind(st.Pending.Body, st)
	if err != nil {
		return nil, nil, err
	}
	if isIdentity(unbound, st.Param) {
		st.ApplyPending = false
		return src, st, nil
	}

	sel := &queryir.Select{
		Source:   src,
		Selector: &queryir.Lambda{Params: []*queryir.Parameter{st.Param}, Body: unbound},
	}

	newParam := e.newParam("", st.Pending.Body.ExprType())
	newSt := &State{Param: newParam}
	body, err := e.reroot(st.Pending.Body, nil, newSt)
	if err != nil {
		return nil, nil, err
	}
	newSt.Pending = &queryir.Lambda{Params: []*queryir.Parameter{newParam}, Body: body}
	return sel, newSt, nil
}

// reroot rebuilds the pending body's shape against the fresh state:
// tuple structure is preserved, bound references at structural
// positions seed new mappings, and everything else becomes a custom
// root read straight off the new bound variable.
func (e *Expander) reroot(body queryir.Expr, path navtree.Path, st *State) (queryir.Expr, error) {
	switch x := body.(type) {
	case *queryir.BoundNav:
		ent := x.Mapping.Tree.EntityFor(x.Node, e.Model)
		if ent == nil {
			return nil, errInvariant("", "bound reference to entity missing from model", x.Mapping.Tree.PathString(x.Node))
		}
		sm := navtree.NewSourceMapping(ent)
		sm.Tree.SetToPath(navtree.RootID, path.Clone())
		st.Mappings = append(st.Mappings, sm)
		return &queryir.BoundNav{Mapping: sm, Node: navtree.RootID, Type: &queryir.EntityRef{Entity: ent}}, nil
	case *queryir.NewTuple:
		outer, err := e.reroot(x.Outer, append(path.Clone(), navtree.SideOuter), st)
		if err != nil {
			return nil, err
		}
		inner, err := e.reroot(x.Inner, append(path.Clone(), navtree.SideInner), st)
		if err != nil {
			return nil, err
		}
		return &queryir.NewTuple{Outer: outer, Inner: inner}, nil
	default:
		st.CustomRoots = append(st.CustomRoots, path.Clone())
		return pathExpr(st.Param, path)
	}
}
