// Package expand implements the navigation-expansion pass: it rewrites
// an operator tree written against entity types with navigation
// properties into an equivalent tree where every navigation access has
// been replaced by an explicit join (or group-join plus flatten for
// optional relationships), while the eventual output shape rides along
// as a pending projection that is only committed when a terminal
// operator observes it.
//
// The pass is single-threaded and purely synchronous: one Expand call
// owns all of its navigation trees and mutates them in place. Trees are
// built fresh per call, never shared across compilations.
package expand

import (
	"fmt"

	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// DefaultMaxDepth bounds operator and navigation-chain recursion so a
// pathological input fails predictably instead of overflowing the
// stack.
const DefaultMaxDepth = 512

// Expander rewrites operator trees against one entity model.
type Expander struct {
	Model *model.Model

	// Gen produces opaque bound-variable IDs. Tests install a
	// SeqGenerator for deterministic output.
	Gen Generator

	// MaxDepth is the recursion budget; zero means DefaultMaxDepth.
	MaxDepth int
}

// New creates an Expander over the given model with production
// defaults.
func New(m *model.Model) *Expander {
	return &Expander{Model: m, Gen: UUIDv7Generator{}, MaxDepth: DefaultMaxDepth}
}

// Expand rewrites the operator tree, eliminating every navigation
// access in favor of explicit joins and literal member-access chains
// through composite tuples. The input tree is not modified.
//
// If the tree's topmost result is still carrying an uncommitted pending
// projection, Expand commits it here, so the returned tree always has
// the declared output shape.
func (e *Expander) Expand(n queryir.Node) (queryir.Node, error) {
	res, err := e.visit(n, 0)
	if err != nil {
		return nil, err
	}
	if !res.wrapped() {
		return res.node, nil
	}
	if res.state.ApplyPending {
		node, _, err := e.materialize(res.node, res.state)
		if err != nil {
			return nil, err
		}
		return node, nil
	}
	return res.node, nil
}

func (e *Expander) maxDepth() int {
	if e.MaxDepth > 0 {
		return e.MaxDepth
	}
	return DefaultMaxDepth
}

func (e *Expander) newParam(name string, t queryir.Type) *queryir.Parameter {
	return &queryir.Parameter{ID: e.Gen.Generate(), Name: name, Type: t}
}

// visit dispatches on the operator kind. The switch is exhaustive over
// the sealed Node interface; the default arm is the defensive
// unsupported-operator failure.
func (e *Expander) visit(n queryir.Node, depth int) (result, error) {
	if depth > e.maxDepth() {
		return result{}, errDepth(e.maxDepth())
	}
	switch x := n.(type) {
	case *queryir.EntitySource:
		return e.processEntitySource(x)
	case *queryir.MaterializeCollection:
		// Collection-materialization wrappers from an earlier stage are
		// transparent here; the sub-source is still fully queryable.
		return e.visit(x.Source, depth+1)
	case *queryir.Where:
		return e.processWhere(x, depth)
	case *queryir.Select:
		return e.processSelect(x, depth)
	case *queryir.OrderBy:
		return e.processSort(x.Source, x.Key, func(s queryir.Node, k *queryir.Lambda) queryir.Node {
			return &queryir.OrderBy{Source: s, Key: k, Descending: x.Descending}
		}, depth)
	case *queryir.ThenBy:
		return e.processSort(x.Source, x.Key, func(s queryir.Node, k *queryir.Lambda) queryir.Node {
			return &queryir.ThenBy{Source: s, Key: k, Descending: x.Descending}
		}, depth)
	case *queryir.Join:
		return e.processJoin(x, depth)
	case *queryir.GroupJoin:
		// Group-join without a flatten is an explicit non-goal: the
		// operator passes through untouched.
		return result{node: x}, nil
	case *queryir.SelectMany:
		return e.processSelectMany(x, depth)
	case *queryir.ExprSource:
		return result{node: x}, nil
	case *queryir.DefaultIfEmpty, *queryir.Distinct, *queryir.Skip, *queryir.Take,
		*queryir.First, *queryir.Single, *queryir.Any, *queryir.OfType, *queryir.Tracking:
		return e.processTerminal(n, depth)
	default:
		return result{}, errUnsupported(fmt.Sprintf("%T", n))
	}
}

// processEntitySource starts a fresh expansion state: one source
// mapping rooted at the entity, an identity pending selector, and an
// anonymous bound variable.
func (e *Expander) processEntitySource(x *queryir.EntitySource) (result, error) {
	sm := navtree.NewSourceMapping(x.Entity)
	ref := &queryir.EntityRef{Entity: x.Entity}
	p := e.newParam("", ref)
	st := &State{
		Param: p,
		Pending: &queryir.Lambda{
			Params: []*queryir.Parameter{p},
			Body:   &queryir.BoundNav{Mapping: sm, Node: navtree.RootID, Type: ref},
		},
		Mappings: []*navtree.SourceMapping{sm},
	}
	return result{node: x, state: st}, nil
}

// bindLambda folds a one-parameter operator lambda against the pending
// selector and binds it against the live source mappings. When the
// wrapper's bound variable is anonymous it adopts the lambda's declared
// parameter name.
func (e *Expander) bindLambda(st *State, l *queryir.Lambda) (queryir.Expr, []touch, error) {
	if st.Param.Name == "" && l.Params[0].Name != "" {
		st.Param.Name = l.Params[0].Name
	}
	physical, err := unbind(st.Pending.Body, st)
	if err != nil {
		return nil, nil, err
	}
	composed := composeWithPending(l.Body, l.Params[0].ID, st.Pending.Body, physical)
	b := &binder{ex: e, st: st}
	bound, err := b.bind(composed)
	if err != nil {
		return nil, nil, err
	}
	return bound, b.touched, nil
}

// visitValue re-visits a plain value argument (a skip/take count)
// independently: it is a value sub-expression, not a navigation path.
// Embedded subqueries are expanded on their own.
func (e *Expander) visitValue(v queryir.Expr, depth int) (queryir.Expr, error) {
	sq, ok := v.(*queryir.Subquery)
	if !ok {
		return v, nil
	}
	res, err := e.visit(sq.Node, depth+1)
	if err != nil {
		return nil, err
	}
	node := res.node
	if res.wrapped() && res.state.ApplyPending {
		node, _, err = e.materialize(res.node, res.state)
		if err != nil {
			return nil, err
		}
	}
	return &queryir.Subquery{Node: node}, nil
}
