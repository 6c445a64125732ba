package expand

import (
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// pathExpr builds the tuple-field access chain that reads the value at
// path from base, threading types through the nested tuple shape.
func pathExpr(base queryir.Expr, path navtree.Path) (queryir.Expr, error) {
	cur := base
	for _, side := range path {
		t, err := queryir.TupleSide(cur.ExprType(), side)
		if err != nil {
			return nil, errInvariant("", "path does not fit the current tuple shape", path.String())
		}
		cur = &queryir.TupleField{Expr: cur, Side: side, Type: t}
	}
	return cur, nil
}

// chainPath decomposes a tuple-field chain rooted at a parameter into
// (parameter, path). Returns ok=false for any other expression shape.
func chainPath(e queryir.Expr) (*queryir.Parameter, navtree.Path, bool) {
	var rev navtree.Path
	cur := e
	for {
		switch x := cur.(type) {
		case *queryir.Parameter:
			// rev was collected innermost-last; reverse into root-first order.
			path := make(navtree.Path, len(rev))
			for i, s := range rev {
				path[len(rev)-1-i] = s
			}
			return x, path, true
		case *queryir.TupleField:
			rev = append(rev, x.Side)
			cur = x.Expr
		default:
			return nil, nil, false
		}
	}
}

// etaReduce collapses tuple reconstructions of the form
// tuple(x.outer, x.inner) back to x, recursively. Used to recognize
// identity-shaped pending selectors.
func etaReduce(e queryir.Expr) queryir.Expr {
	nt, ok := e.(*queryir.NewTuple)
	if !ok {
		return e
	}
	outer := etaReduce(nt.Outer)
	inner := etaReduce(nt.Inner)
	of, okO := outer.(*queryir.TupleField)
	inf, okI := inner.(*queryir.TupleField)
	if okO && okI && of.Side == navtree.SideOuter && inf.Side == navtree.SideInner && sameChain(of.Expr, inf.Expr) {
		return of.Expr
	}
	return &queryir.NewTuple{Outer: outer, Inner: inner}
}

// sameChain compares parameter/tuple-field chains structurally, with
// parameter identity by ID.
func sameChain(a, b queryir.Expr) bool {
	pa, patha, oka := chainPath(a)
	pb, pathb, okb := chainPath(b)
	if !oka || !okb || pa.ID != pb.ID || len(patha) != len(pathb) {
		return false
	}
	for i := range patha {
		if patha[i] != pathb[i] {
			return false
		}
	}
	return true
}

// isIdentity reports whether the unbound selector body is the bound
// variable itself (possibly eta-expanded through tuple rebuilds).
func isIdentity(unbound queryir.Expr, param *queryir.Parameter) bool {
	p, ok := etaReduce(unbound).(*queryir.Parameter)
	return ok && p.ID == param.ID
}
