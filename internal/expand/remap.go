package expand

import (
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// remapStates merges two independent expansion states through a
// two-argument result combinator. The merged state's bound variable is
// the composite tuple of both sides; both mapping sets survive with
// their paths tagged outer/inner respectively, and the merged pending
// projection is the combinator applied to both original pending
// projections routed through the new tuple.
//
// The merged pending is then itself scanned for navigations (the
// self-expansion pass): a combinator like (o, c) => o.Customer forces
// joins of its own before the state is stored.
func (e *Expander) remapStates(node queryir.Node, oSt, iSt *State, combinator *queryir.Lambda) (queryir.Node, *State, error) {
	oType := oSt.Param.Type
	iType := iSt.Param.Type
	pt := e.newParam("", &queryir.TupleType{Outer: oType, Inner: iType})

	for _, m := range oSt.Mappings {
		m.PrependPaths(navtree.SideOuter)
	}
	for _, m := range iSt.Mappings {
		m.PrependPaths(navtree.SideInner)
	}
	customs := make([]navtree.Path, 0, len(oSt.CustomRoots)+len(iSt.CustomRoots))
	for _, p := range oSt.CustomRoots {
		customs = append(customs, p.Prepend(navtree.SideOuter))
	}
	for _, p := range iSt.CustomRoots {
		customs = append(customs, p.Prepend(navtree.SideInner))
	}

	oBody := queryir.ReplaceParameter(oSt.Pending.Body, oSt.Param.ID,
		&queryir.TupleField{Expr: pt, Side: navtree.SideOuter, Type: oType})
	iBody := queryir.ReplaceParameter(iSt.Pending.Body, iSt.Param.ID,
		&queryir.TupleField{Expr: pt, Side: navtree.SideInner, Type: iType})

	st := &State{
		Param:        pt,
		Mappings:     append(append([]*navtree.SourceMapping{}, oSt.Mappings...), iSt.Mappings...),
		CustomRoots:  customs,
		ApplyPending: true,
	}

	physO, err := unbind(oBody, st)
	if err != nil {
		return nil, nil, err
	}
	physI, err := unbind(iBody, st)
	if err != nil {
		return nil, nil, err
	}
	composed := composeWithPending(combinator.Body, combinator.Params[0].ID, oBody, physO)
	composed = composeWithPending(composed, combinator.Params[1].ID, iBody, physI)

	b := &binder{ex: e, st: st}
	bound, err := b.bind(composed)
	if err != nil {
		return nil, nil, err
	}
	st.Pending = &queryir.Lambda{Params: []*queryir.Parameter{st.Param}, Body: bound}
	node, _, err = e.applyExpansions(node, st, b.touched, nil)
	if err != nil {
		return nil, nil, err
	}
	return node, st, nil
}
