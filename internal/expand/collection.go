package expand

import (
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// resolveCollection turns the bound body of a flatten's collection
// selector into a physical, navigation-trackable inner source and the
// expansion state for the flattened element.
//
// Three shapes are accepted: a collection navigation read off a bound
// entity (rewritten to a correlated filter over the target's source),
// a subquery (expanded recursively, its own state adopted), and
// nothing else.
func (e *Expander) resolveCollection(oSt *State, body queryir.Expr, depth int) (*State, queryir.Expr, error) {
	switch x := body.(type) {
	case *queryir.Member:
		bn, ok := x.Expr.(*queryir.BoundNav)
		if !ok {
			break
		}
		return e.resolveCollectionNav(oSt, x, bn)
	case *queryir.Subquery:
		res, err := e.visit(e.unwrapCollectionSource(x.Node), depth+1)
		if err != nil {
			return nil, nil, err
		}
		if !res.wrapped() {
			return nil, nil, errInvariant("SelectMany",
				"collection subquery does not resolve to a navigation-trackable source", "")
		}
		return res.state, &queryir.Subquery{Node: res.node}, nil
	}
	return nil, nil, errInvariant("SelectMany",
		"collection selector does not resolve to a navigation-trackable source", "")
}

// resolveCollectionNav builds the correlated inner source for a
// collection navigation: the target entity's source filtered to the
// rows whose foreign key matches the principal's key at the bound
// position. The inner state starts fresh, rooted at the target.
func (e *Expander) resolveCollectionNav(oSt *State, m *queryir.Member, bn *queryir.BoundNav) (*State, queryir.Expr, error) {
	ent := bn.Mapping.Tree.EntityFor(bn.Node, e.Model)
	if ent == nil {
		return nil, nil, errInvariant("SelectMany", "bound reference to entity missing from model", "")
	}
	nav := ent.Navigation(m.Name)
	if nav == nil || !nav.Collection {
		return nil, nil, errInvariant("SelectMany", "member is not a collection navigation", m.Name)
	}
	target := e.Model.Entity(nav.Target)
	if target == nil {
		return nil, nil, errInvariant("SelectMany", "navigation targets unknown entity", nav.Target)
	}
	principal, err := e.Model.PrincipalKeyFor(nav, ent)
	if err != nil {
		return nil, nil, errInvariant("SelectMany", err.Error(), nav.Name)
	}
	if len(principal) != len(nav.ForeignKey) {
		return nil, nil, errInvariant("SelectMany", "key arity mismatch on navigation", nav.Name)
	}

	// The declaring side is the principal here: collection navigations
	// point from a principal row to the dependent rows carrying its key.
	outerBase, err := unbind(bn, oSt)
	if err != nil {
		return nil, nil, err
	}

	targetRef := &queryir.EntityRef{Entity: target}
	pf := e.newParam("", targetRef)
	var pred queryir.Expr
	for i := range nav.ForeignKey {
		fk := target.Property(nav.ForeignKey[i])
		pk := ent.Property(principal[i])
		if fk == nil || pk == nil {
			return nil, nil, errInvariant("SelectMany", "key property missing from model", nav.Name)
		}
		var fe queryir.Expr = &queryir.Member{Expr: pf, Name: fk.Name, Type: queryir.PropertyType(fk)}
		var ke queryir.Expr = &queryir.Member{Expr: outerBase, Name: pk.Name, Type: queryir.PropertyType(pk)}
		switch {
		case fk.Nullable && !pk.Nullable:
			ke = &queryir.Convert{Expr: ke, To: queryir.AsNullable(ke.ExprType())}
		case pk.Nullable && !fk.Nullable:
			fe = &queryir.Convert{Expr: fe, To: queryir.AsNullable(fe.ExprType())}
		}
		eq := &queryir.Binary{Op: queryir.OpEq, Left: fe, Right: ke}
		if pred == nil {
			pred = eq
		} else {
			pred = &queryir.Binary{Op: queryir.OpAnd, Left: pred, Right: eq}
		}
	}

	inner := &queryir.Where{
		Source:    &queryir.EntitySource{Entity: target},
		Predicate: &queryir.Lambda{Params: []*queryir.Parameter{pf}, Body: pred},
	}

	// The inner state's bound variable is the filter parameter itself,
	// matching what re-expanding the emitted subquery reconstructs; the
	// canonical rendering is stable across repeated passes.
	sm := navtree.NewSourceMapping(target)
	iSt := &State{
		Param:    pf,
		Mappings: []*navtree.SourceMapping{sm},
		Pending: &queryir.Lambda{
			Params: []*queryir.Parameter{pf},
			Body:   &queryir.BoundNav{Mapping: sm, Node: navtree.RootID, Type: targetRef},
		},
	}
	return iSt, &queryir.Subquery{Node: inner}, nil
}
