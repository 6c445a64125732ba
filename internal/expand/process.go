package expand

import (
	"fmt"

	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// processWhere binds and expands the predicate, then re-emits the
// filter against the (possibly widened) physical shape. The pending
// selector is unchanged: filtering commutes with the deferred
// projection.
func (e *Expander) processWhere(x *queryir.Where, depth int) (result, error) {
	srcRes, err := e.visit(x.Source, depth+1)
	if err != nil {
		return result{}, err
	}
	if !srcRes.wrapped() {
		return result{node: &queryir.Where{Source: srcRes.node, Predicate: x.Predicate}}, nil
	}
	st := srcRes.state

	bound, touched, err := e.bindLambda(st, x.Predicate)
	if err != nil {
		return result{}, err
	}
	node, live, err := e.applyExpansions(srcRes.node, st, touched, []queryir.Expr{bound})
	if err != nil {
		return result{}, err
	}
	phys, err := unbind(live[0], st)
	if err != nil {
		return result{}, err
	}
	pred := &queryir.Lambda{Params: []*queryir.Parameter{st.Param}, Body: phys}
	return result{node: &queryir.Where{Source: node, Predicate: pred}, state: st}, nil
}

// processSelect folds the selector into the pending projection without
// materializing it: a later consumer may still need to bind navigations
// inside this projection itself. The physical operator chain gains
// nothing here beyond any joins the selector forced.
func (e *Expander) processSelect(x *queryir.Select, depth int) (result, error) {
	srcRes, err := e.visit(x.Source, depth+1)
	if err != nil {
		return result{}, err
	}
	if !srcRes.wrapped() {
		return result{node: &queryir.Select{Source: srcRes.node, Selector: x.Selector}}, nil
	}
	st := srcRes.state

	bound, touched, err := e.bindLambda(st, x.Selector)
	if err != nil {
		return result{}, err
	}
	node, live, err := e.applyExpansions(srcRes.node, st, touched, []queryir.Expr{bound})
	if err != nil {
		return result{}, err
	}
	st.Pending = &queryir.Lambda{Params: []*queryir.Parameter{st.Param}, Body: live[0]}
	st.ApplyPending = true
	return result{node: node, state: st}, nil
}

// processSort handles OrderBy and ThenBy: binding-wise identical to a
// filter, type-parameterized by the key instead of bool.
func (e *Expander) processSort(source queryir.Node, key *queryir.Lambda, rebuild func(queryir.Node, *queryir.Lambda) queryir.Node, depth int) (result, error) {
	srcRes, err := e.visit(source, depth+1)
	if err != nil {
		return result{}, err
	}
	if !srcRes.wrapped() {
		return result{node: rebuild(srcRes.node, key)}, nil
	}
	st := srcRes.state

	bound, touched, err := e.bindLambda(st, key)
	if err != nil {
		return result{}, err
	}
	node, live, err := e.applyExpansions(srcRes.node, st, touched, []queryir.Expr{bound})
	if err != nil {
		return result{}, err
	}
	phys, err := unbind(live[0], st)
	if err != nil {
		return result{}, err
	}
	physKey := &queryir.Lambda{Params: []*queryir.Parameter{st.Param}, Body: phys}
	return result{node: rebuild(node, physKey), state: st}, nil
}

// processJoin expands both sides independently on their key selectors,
// emits the physical join producing a composite tuple, and merges the
// two expansion states through the result combinator.
func (e *Expander) processJoin(x *queryir.Join, depth int) (result, error) {
	oRes, err := e.visit(x.Outer, depth+1)
	if err != nil {
		return result{}, err
	}
	iRes, err := e.visit(x.Inner, depth+1)
	if err != nil {
		return result{}, err
	}
	if !oRes.wrapped() || !iRes.wrapped() {
		return result{node: &queryir.Join{
			Outer: oRes.node, Inner: iRes.node,
			OuterKey: x.OuterKey, InnerKey: x.InnerKey, Result: x.Result,
		}}, nil
	}
	oSt, iSt := oRes.state, iRes.state

	oNode, oKey, err := e.expandKeySide(oRes.node, oSt, x.OuterKey)
	if err != nil {
		return result{}, err
	}
	iNode, iKey, err := e.expandKeySide(iRes.node, iSt, x.InnerKey)
	if err != nil {
		return result{}, err
	}

	join := &queryir.Join{
		Outer:    oNode,
		Inner:    iNode,
		OuterKey: oKey,
		InnerKey: iKey,
		Result: &queryir.Lambda{
			Params: []*queryir.Parameter{oSt.Param, iSt.Param},
			Body:   &queryir.NewTuple{Outer: oSt.Param, Inner: iSt.Param},
		},
	}
	node, st, err := e.remapStates(join, oSt, iSt, x.Result)
	if err != nil {
		return result{}, err
	}
	return result{node: node, state: st}, nil
}

// expandKeySide binds and expands one join key selector against its
// side's state, returning the (possibly widened) source and the
// physical key lambda.
func (e *Expander) expandKeySide(src queryir.Node, st *State, key *queryir.Lambda) (queryir.Node, *queryir.Lambda, error) {
	bound, touched, err := e.bindLambda(st, key)
	if err != nil {
		return nil, nil, err
	}
	node, live, err := e.applyExpansions(src, st, touched, []queryir.Expr{bound})
	if err != nil {
		return nil, nil, err
	}
	phys, err := unbind(live[0], st)
	if err != nil {
		return nil, nil, err
	}
	return node, &queryir.Lambda{Params: []*queryir.Parameter{st.Param}, Body: phys}, nil
}

// processSelectMany expands the outer source, resolves the collection
// selector to a navigation-trackable inner source, and either replaces
// the outer state with the inner one (no combinator) or merges both
// through the combinator into a composite-tuple state.
func (e *Expander) processSelectMany(x *queryir.SelectMany, depth int) (result, error) {
	srcRes, err := e.visit(x.Source, depth+1)
	if err != nil {
		return result{}, err
	}
	if !srcRes.wrapped() {
		return result{node: &queryir.SelectMany{Source: srcRes.node, Collection: x.Collection, Result: x.Result}}, nil
	}
	oSt := srcRes.state

	bound, touched, err := e.bindLambda(oSt, x.Collection)
	if err != nil {
		return result{}, err
	}
	node, live, err := e.applyExpansions(srcRes.node, oSt, touched, []queryir.Expr{bound})
	if err != nil {
		return result{}, err
	}

	iSt, collBody, err := e.resolveCollection(oSt, live[0], depth)
	if err != nil {
		return result{}, err
	}
	if x.Result != nil {
		// Reconcile display names with the combinator's declared
		// parameter names; the combinator is the nearest enclosing
		// result lambda and its naming wins.
		oSt.Param.Name = x.Result.Params[0].Name
		iSt.Param.Name = x.Result.Params[1].Name
	}
	coll := &queryir.Lambda{Params: []*queryir.Parameter{oSt.Param}, Body: collBody}

	if innerOnlyResult(x.Result) {
		// Projection narrows to the flattened element: the inner
		// mapping set replaces the outer one.
		sm := &queryir.SelectMany{
			Source:     node,
			Collection: coll,
			Result: &queryir.Lambda{
				Params: []*queryir.Parameter{oSt.Param, iSt.Param},
				Body:   iSt.Param,
			},
		}
		return result{node: sm, state: iSt}, nil
	}

	sm := &queryir.SelectMany{
		Source:     node,
		Collection: coll,
		Result: &queryir.Lambda{
			Params: []*queryir.Parameter{oSt.Param, iSt.Param},
			Body:   &queryir.NewTuple{Outer: oSt.Param, Inner: iSt.Param},
		},
	}
	merged, st, err := e.remapStates(sm, oSt, iSt, x.Result)
	if err != nil {
		return result{}, err
	}
	return result{node: merged, state: st}, nil
}

// innerOnlyResult reports whether a flatten combinator keeps just the
// flattened element. That shape is exactly what the pass synthesizes
// for combinator-less flattens, so recognizing it keeps re-expansion of
// already-expanded output stable.
func innerOnlyResult(l *queryir.Lambda) bool {
	if l == nil {
		return true
	}
	p, ok := l.Body.(*queryir.Parameter)
	return ok && len(l.Params) == 2 && p.ID == l.Params[1].ID
}

// processTerminal handles the operators that either force the pending
// projection to commit or pass through untouched. With nothing pending
// the operator is appended as-is and the bound variable merely loses
// its display name; with a pending projection the materializer runs
// first and the terminal is appended over the committed projection.
func (e *Expander) processTerminal(n queryir.Node, depth int) (result, error) {
	srcRes, err := e.visit(terminalSource(n), depth+1)
	if err != nil {
		return result{}, err
	}

	if !srcRes.wrapped() {
		node, err := e.rebuildTerminal(n, srcRes.node, depth)
		if err != nil {
			return result{}, err
		}
		return result{node: node}, nil
	}
	st := srcRes.state

	if st.ApplyPending {
		mat, newSt, err := e.materialize(srcRes.node, st)
		if err != nil {
			return result{}, err
		}
		node, err := e.rebuildTerminal(n, mat, depth)
		if err != nil {
			return result{}, err
		}
		return result{node: node, state: newSt}, nil
	}

	st.Param.Name = ""
	node, err := e.rebuildTerminal(n, srcRes.node, depth)
	if err != nil {
		return result{}, err
	}
	return result{node: node, state: st}, nil
}

func terminalSource(n queryir.Node) queryir.Node {
	switch x := n.(type) {
	case *queryir.DefaultIfEmpty:
		return x.Source
	case *queryir.Distinct:
		return x.Source
	case *queryir.Skip:
		return x.Source
	case *queryir.Take:
		return x.Source
	case *queryir.First:
		return x.Source
	case *queryir.Single:
		return x.Source
	case *queryir.Any:
		return x.Source
	case *queryir.OfType:
		return x.Source
	case *queryir.Tracking:
		return x.Source
	}
	return nil
}

func (e *Expander) rebuildTerminal(n queryir.Node, src queryir.Node, depth int) (queryir.Node, error) {
	switch x := n.(type) {
	case *queryir.DefaultIfEmpty:
		return &queryir.DefaultIfEmpty{Source: src}, nil
	case *queryir.Distinct:
		return &queryir.Distinct{Source: src}, nil
	case *queryir.Skip:
		count, err := e.visitValue(x.Count, depth)
		if err != nil {
			return nil, err
		}
		return &queryir.Skip{Source: src, Count: count}, nil
	case *queryir.Take:
		count, err := e.visitValue(x.Count, depth)
		if err != nil {
			return nil, err
		}
		return &queryir.Take{Source: src, Count: count}, nil
	case *queryir.First:
		return &queryir.First{Source: src, OrDefault: x.OrDefault}, nil
	case *queryir.Single:
		return &queryir.Single{Source: src, OrDefault: x.OrDefault}, nil
	case *queryir.Any:
		return &queryir.Any{Source: src}, nil
	case *queryir.OfType:
		return &queryir.OfType{Source: src, Target: x.Target}, nil
	case *queryir.Tracking:
		return &queryir.Tracking{Source: src, Enabled: x.Enabled}, nil
	default:
		return nil, errUnsupported(fmt.Sprintf("%T", n))
	}
}
