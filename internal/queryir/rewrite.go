package queryir

// RewriteExpr rebuilds an expression bottom-up. Children are rewritten
// first, then fn is applied to the rebuilt node. fn returning its
// argument unchanged is the identity.
//
// Subquery operands are opaque to RewriteExpr: operator trees embedded
// in expressions are not descended into. Callers that need to touch
// them do so explicitly.
func RewriteExpr(e Expr, fn func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *Parameter, *Constant, *BoundNav, *Subquery:
		return fn(e)
	case *Member:
		return fn(&Member{Expr: RewriteExpr(x.Expr, fn), Name: x.Name, Type: x.Type})
	case *TupleField:
		return fn(&TupleField{Expr: RewriteExpr(x.Expr, fn), Side: x.Side, Type: x.Type})
	case *NewTuple:
		return fn(&NewTuple{Outer: RewriteExpr(x.Outer, fn), Inner: RewriteExpr(x.Inner, fn)})
	case *NewKey:
		parts := make([]Expr, len(x.Parts))
		for i, p := range x.Parts {
			parts[i] = RewriteExpr(p, fn)
		}
		return fn(&NewKey{Parts: parts})
	case *Binary:
		return fn(&Binary{Op: x.Op, Left: RewriteExpr(x.Left, fn), Right: RewriteExpr(x.Right, fn)})
	case *Convert:
		return fn(&Convert{Expr: RewriteExpr(x.Expr, fn), To: x.To})
	}
	return fn(e)
}

// WalkExpr visits every sub-expression top-down. Returning false from
// fn stops descent into that subtree.
func WalkExpr(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *Member:
		WalkExpr(x.Expr, fn)
	case *TupleField:
		WalkExpr(x.Expr, fn)
	case *NewTuple:
		WalkExpr(x.Outer, fn)
		WalkExpr(x.Inner, fn)
	case *NewKey:
		for _, p := range x.Parts {
			WalkExpr(p, fn)
		}
	case *Binary:
		WalkExpr(x.Left, fn)
		WalkExpr(x.Right, fn)
	case *Convert:
		WalkExpr(x.Expr, fn)
	}
}

// ReplaceParameter substitutes every reference to the parameter with
// the given ID by the replacement expression. Renaming a bound variable
// is this substitution with a fresh Parameter as replacement.
//
// Unlike RewriteExpr, substitution does descend into Subquery operands:
// a correlated subquery may reference an enclosing lambda's variable,
// and parameter IDs are globally unique so there is no shadowing.
func ReplaceParameter(e Expr, id string, replacement Expr) Expr {
	return RewriteExpr(e, func(sub Expr) Expr {
		switch x := sub.(type) {
		case *Parameter:
			if x.ID == id {
				return replacement
			}
		case *Subquery:
			return &Subquery{Node: ReplaceParameterInNode(x.Node, id, replacement)}
		}
		return sub
	})
}

// ReplaceParameterInNode applies ReplaceParameter to every expression
// position of an operator tree, including nested subqueries.
func ReplaceParameterInNode(n Node, id string, replacement Expr) Node {
	re := func(e Expr) Expr { return ReplaceParameter(e, id, replacement) }
	rl := func(l *Lambda) *Lambda {
		if l == nil {
			return nil
		}
		return &Lambda{Params: l.Params, Body: re(l.Body)}
	}
	switch x := n.(type) {
	case nil:
		return nil
	case *EntitySource:
		return x
	case *Where:
		return &Where{Source: ReplaceParameterInNode(x.Source, id, replacement), Predicate: rl(x.Predicate)}
	case *Select:
		return &Select{Source: ReplaceParameterInNode(x.Source, id, replacement), Selector: rl(x.Selector)}
	case *OrderBy:
		return &OrderBy{Source: ReplaceParameterInNode(x.Source, id, replacement), Key: rl(x.Key), Descending: x.Descending}
	case *ThenBy:
		return &ThenBy{Source: ReplaceParameterInNode(x.Source, id, replacement), Key: rl(x.Key), Descending: x.Descending}
	case *Join:
		return &Join{
			Outer:    ReplaceParameterInNode(x.Outer, id, replacement),
			Inner:    ReplaceParameterInNode(x.Inner, id, replacement),
			OuterKey: rl(x.OuterKey), InnerKey: rl(x.InnerKey), Result: rl(x.Result),
		}
	case *GroupJoin:
		return &GroupJoin{
			Outer:    ReplaceParameterInNode(x.Outer, id, replacement),
			Inner:    ReplaceParameterInNode(x.Inner, id, replacement),
			OuterKey: rl(x.OuterKey), InnerKey: rl(x.InnerKey), Result: rl(x.Result),
		}
	case *SelectMany:
		return &SelectMany{
			Source:     ReplaceParameterInNode(x.Source, id, replacement),
			Collection: rl(x.Collection), Result: rl(x.Result),
		}
	case *DefaultIfEmpty:
		return &DefaultIfEmpty{Source: ReplaceParameterInNode(x.Source, id, replacement)}
	case *ExprSource:
		return &ExprSource{Expr: re(x.Expr)}
	case *Distinct:
		return &Distinct{Source: ReplaceParameterInNode(x.Source, id, replacement)}
	case *Skip:
		return &Skip{Source: ReplaceParameterInNode(x.Source, id, replacement), Count: re(x.Count)}
	case *Take:
		return &Take{Source: ReplaceParameterInNode(x.Source, id, replacement), Count: re(x.Count)}
	case *First:
		return &First{Source: ReplaceParameterInNode(x.Source, id, replacement), OrDefault: x.OrDefault}
	case *Single:
		return &Single{Source: ReplaceParameterInNode(x.Source, id, replacement), OrDefault: x.OrDefault}
	case *Any:
		return &Any{Source: ReplaceParameterInNode(x.Source, id, replacement)}
	case *OfType:
		return &OfType{Source: ReplaceParameterInNode(x.Source, id, replacement), Target: x.Target}
	case *Tracking:
		return &Tracking{Source: ReplaceParameterInNode(x.Source, id, replacement), Enabled: x.Enabled}
	case *MaterializeCollection:
		return &MaterializeCollection{Source: ReplaceParameterInNode(x.Source, id, replacement)}
	}
	return n
}

// UsesParameter reports whether the expression references the parameter.
func UsesParameter(e Expr, id string) bool {
	used := false
	WalkExpr(e, func(sub Expr) bool {
		if p, ok := sub.(*Parameter); ok && p.ID == id {
			used = true
		}
		return !used
	})
	return used
}
