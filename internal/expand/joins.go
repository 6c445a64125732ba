package expand

import (
	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// applyExpansions materializes a join for every touched navigation-tree
// node not yet expanded, ancestors first so multi-hop chains expand
// hop by hop. live carries expression bodies that reference the current
// bound variable and must be re-routed as each join widens the tuple
// shape; the updated bodies are returned alongside the new source.
func (e *Expander) applyExpansions(node queryir.Node, st *State, touched []touch, live []queryir.Expr) (queryir.Node, []queryir.Expr, error) {
	for _, t := range touched {
		var chain []navtree.NodeID
		for cur := t.id; cur != navtree.RootID && !t.sm.Tree.Expanded(cur); cur = t.sm.Tree.Parent(cur) {
			chain = append(chain, cur)
		}
		for i := len(chain) - 1; i >= 0; i-- {
			var err error
			node, live, err = e.expandHop(node, st, t.sm, chain[i], live)
			if err != nil {
				return nil, nil, err
			}
		}
	}
	return node, live, nil
}

// expandHop emits the join that materializes one navigation hop.
//
// Required navigations become an inner join keyed on the dependent
// side's foreign key against the principal side's key. Optional
// navigations become a group-join followed by a flatten with a
// default-if-empty placeholder (left-outer-join emulation), because the
// related row may not exist.
//
// After emission the node is marked expanded and every other live path
// is re-routed through the widened composite tuple: the new node's
// value sits at the inner field, everything else moves behind one outer
// tag for required hops and two for optional hops.
func (e *Expander) expandHop(src queryir.Node, st *State, sm *navtree.SourceMapping, id navtree.NodeID, live []queryir.Expr) (queryir.Node, []queryir.Expr, error) {
	tree := sm.Tree
	nav := tree.Navigation(id)
	parent := tree.Parent(id)
	parentPath := tree.ToPath(parent)
	declaring := tree.EntityFor(parent, e.Model)
	target := e.Model.Entity(nav.Target)
	if declaring == nil || target == nil {
		return nil, nil, errInvariant("", "navigation endpoints missing from model", tree.PathString(id))
	}

	outerType := st.Param.Type
	targetRef := &queryir.EntityRef{Entity: target}

	outerKey, innerKey, err := e.hopKeys(nav, declaring, target, outerType, targetRef, parentPath)
	if err != nil {
		return nil, nil, err
	}

	inner := e.unwrapCollectionSource(&queryir.EntitySource{Entity: target})

	var prefix []navtree.Side
	var newType queryir.Type
	if !nav.Optional {
		// The result combinator reuses the key-selector parameters.
		// Re-expanding an emitted join rebuilds it in exactly this shape,
		// so the canonical rendering reaches a fixed point after one pass.
		po := outerKey.Params[0]
		pi := innerKey.Params[0]
		src = &queryir.Join{
			Outer:    src,
			Inner:    inner,
			OuterKey: outerKey,
			InnerKey: innerKey,
			Result: &queryir.Lambda{
				Params: []*queryir.Parameter{po, pi},
				Body:   &queryir.NewTuple{Outer: po, Inner: pi},
			},
		}
		prefix = []navtree.Side{navtree.SideOuter}
		newType = &queryir.TupleType{Outer: outerType, Inner: targetRef}
	} else {
		groupType := &queryir.SequenceType{Elem: targetRef}
		po := e.newParam("", outerType)
		pg := e.newParam("", groupType)
		gj := &queryir.GroupJoin{
			Outer:    src,
			Inner:    inner,
			OuterKey: outerKey,
			InnerKey: innerKey,
			Result: &queryir.Lambda{
				Params: []*queryir.Parameter{po, pg},
				Body:   &queryir.NewTuple{Outer: po, Inner: pg},
			},
		}
		pairType := &queryir.TupleType{Outer: outerType, Inner: groupType}
		pt := e.newParam("", pairType)
		pr := e.newParam("", pairType)
		pi := e.newParam("", targetRef)
		src = &queryir.SelectMany{
			Source: gj,
			Collection: &queryir.Lambda{
				Params: []*queryir.Parameter{pt},
				Body: &queryir.Subquery{Node: &queryir.DefaultIfEmpty{
					Source: &queryir.ExprSource{Expr: &queryir.TupleField{Expr: pt, Side: navtree.SideInner, Type: groupType}},
				}},
			},
			Result: &queryir.Lambda{
				Params: []*queryir.Parameter{pr, pi},
				Body:   &queryir.NewTuple{Outer: pr, Inner: pi},
			},
		}
		prefix = []navtree.Side{navtree.SideOuter, navtree.SideOuter}
		newType = &queryir.TupleType{Outer: pairType, Inner: targetRef}
	}

	// Path bookkeeping: every other expanded node, every other mapping,
	// and every custom root moves behind the new outer field(s); the
	// expanded node's value is the inner field of the new shape.
	for _, m := range st.Mappings {
		m.Tree.PrependToExpanded(prefix)
	}
	for i := range st.CustomRoots {
		st.CustomRoots[i] = st.CustomRoots[i].Prepend(prefix...)
	}
	tree.SetToPath(id, navtree.Path{navtree.SideInner})
	if err := tree.MarkExpanded(id); err != nil {
		return nil, nil, errInvariant("", err.Error(), tree.PathString(id))
	}

	// Re-route the bound variable: the old shape now sits behind the
	// outer field(s) of the widened tuple.
	oldParam := st.Param
	newParam := e.newParam(oldParam.Name, newType)
	oldRef, err := pathExpr(newParam, prefix)
	if err != nil {
		return nil, nil, err
	}
	st.Pending = &queryir.Lambda{
		Params: []*queryir.Parameter{newParam},
		Body:   queryir.ReplaceParameter(st.Pending.Body, oldParam.ID, oldRef),
	}
	st.Param = newParam
	st.ApplyPending = true
	for i := range live {
		live[i] = queryir.ReplaceParameter(live[i], oldParam.ID, oldRef)
	}
	return src, live, nil
}

// hopKeys builds the outer and inner key-selector lambdas for one hop.
// Composite keys compare as anonymous multi-column keys; when exactly
// one side of an aligned column pair is nullable, the other side is
// lifted to the nullable equivalent so key-comparison semantics stay
// consistent between required and optional joins.
func (e *Expander) hopKeys(nav *model.Navigation, declaring, target *model.EntityType, outerType queryir.Type, targetRef *queryir.EntityRef, parentPath navtree.Path) (*queryir.Lambda, *queryir.Lambda, error) {
	principal, err := e.Model.PrincipalKeyFor(nav, declaring)
	if err != nil {
		return nil, nil, errInvariant("", err.Error(), nav.Name)
	}
	var outerNames, innerNames []string
	if nav.DependentToPrincipal {
		outerNames, innerNames = nav.ForeignKey, principal
	} else {
		outerNames, innerNames = principal, nav.ForeignKey
	}

	po := e.newParam("", outerType)
	pi := e.newParam("", targetRef)
	base, err := pathExpr(po, parentPath)
	if err != nil {
		return nil, nil, err
	}

	outerParts := make([]queryir.Expr, len(outerNames))
	innerParts := make([]queryir.Expr, len(innerNames))
	for i := range outerNames {
		op := declaring.Property(outerNames[i])
		ip := target.Property(innerNames[i])
		if op == nil || ip == nil {
			return nil, nil, errInvariant("", "key property missing from model", nav.Name)
		}
		var oe queryir.Expr = &queryir.Member{Expr: base, Name: op.Name, Type: queryir.PropertyType(op)}
		var ie queryir.Expr = &queryir.Member{Expr: pi, Name: ip.Name, Type: queryir.PropertyType(ip)}
		switch {
		case op.Nullable && !ip.Nullable:
			ie = &queryir.Convert{Expr: ie, To: queryir.AsNullable(ie.ExprType())}
		case ip.Nullable && !op.Nullable:
			oe = &queryir.Convert{Expr: oe, To: queryir.AsNullable(oe.ExprType())}
		}
		outerParts[i] = oe
		innerParts[i] = ie
	}

	return &queryir.Lambda{Params: []*queryir.Parameter{po}, Body: keyExpr(outerParts)},
		&queryir.Lambda{Params: []*queryir.Parameter{pi}, Body: keyExpr(innerParts)},
		nil
}

func keyExpr(parts []queryir.Expr) queryir.Expr {
	if len(parts) == 1 {
		return parts[0]
	}
	return &queryir.NewKey{Parts: parts}
}

// unwrapCollectionSource strips the collection-materialization wrapper
// an earlier pipeline stage may have left on a sub-source: at this
// layer collections are still plain queryable sources.
func (e *Expander) unwrapCollectionSource(n queryir.Node) queryir.Node {
	for {
		mc, ok := n.(*queryir.MaterializeCollection)
		if !ok {
			return n
		}
		n = mc.Source
	}
}
