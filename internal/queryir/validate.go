package queryir

import "fmt"

// ValidationResult contains structural analysis of an operator tree.
type ValidationResult struct {
	// IsWellFormed indicates the tree satisfies the structural rules
	// the expansion pass assumes (operand presence, lambda arities).
	IsWellFormed bool

	// Warnings lists every structural problem found. Empty when
	// IsWellFormed is true.
	Warnings []string
}

// Validate checks an operator tree against the structural rules the
// expansion pass assumes:
//
//  1. Every operator has a source operand (Join/GroupJoin have both).
//  2. One-parameter lambdas where the operator takes a single lambda,
//     two-parameter lambdas for join key result combinators.
//  3. SelectMany has a collection selector.
//
// Validate is a pure function with no side effects. It does not chase
// types: type errors surface as expansion errors with more context.
func Validate(n Node) ValidationResult {
	v := &validator{warnings: []string{}}
	v.node(n)
	return ValidationResult{
		IsWellFormed: len(v.warnings) == 0,
		Warnings:     v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) node(n Node) {
	switch x := n.(type) {
	case nil:
		v.warnf("nil operator node")
	case *EntitySource:
		if x.Entity == nil {
			v.warnf("entity source without entity type")
		}
	case *Where:
		v.lambda("where predicate", x.Predicate, 1)
		v.source("where", x.Source)
	case *Select:
		v.lambda("select selector", x.Selector, 1)
		v.source("select", x.Source)
	case *OrderBy:
		v.lambda("orderby key", x.Key, 1)
		v.source("orderby", x.Source)
	case *ThenBy:
		v.lambda("thenby key", x.Key, 1)
		v.source("thenby", x.Source)
	case *Join:
		v.lambda("join outer key", x.OuterKey, 1)
		v.lambda("join inner key", x.InnerKey, 1)
		v.lambda("join result", x.Result, 2)
		v.source("join outer", x.Outer)
		v.source("join inner", x.Inner)
	case *GroupJoin:
		v.lambda("groupjoin outer key", x.OuterKey, 1)
		v.lambda("groupjoin inner key", x.InnerKey, 1)
		v.lambda("groupjoin result", x.Result, 2)
		v.source("groupjoin outer", x.Outer)
		v.source("groupjoin inner", x.Inner)
	case *SelectMany:
		v.lambda("selectmany collection", x.Collection, 1)
		if x.Result != nil {
			v.lambda("selectmany result", x.Result, 2)
		}
		v.source("selectmany", x.Source)
	case *DefaultIfEmpty:
		v.source("defaultifempty", x.Source)
	case *ExprSource:
		if x.Expr == nil {
			v.warnf("exprsource without expression")
		}
	case *Distinct:
		v.source("distinct", x.Source)
	case *Skip:
		if x.Count == nil {
			v.warnf("skip without count")
		}
		v.source("skip", x.Source)
	case *Take:
		if x.Count == nil {
			v.warnf("take without count")
		}
		v.source("take", x.Source)
	case *First:
		v.source("first", x.Source)
	case *Single:
		v.source("single", x.Source)
	case *Any:
		v.source("any", x.Source)
	case *OfType:
		if x.Target == nil {
			v.warnf("oftype without target type")
		}
		v.source("oftype", x.Source)
	case *Tracking:
		v.source("tracking", x.Source)
	case *MaterializeCollection:
		v.source("materialize", x.Source)
	default:
		v.warnf("unknown operator kind %T", n)
	}
}

func (v *validator) source(op string, src Node) {
	if src == nil {
		v.warnf("%s without source operand", op)
		return
	}
	v.node(src)
}

func (v *validator) lambda(what string, l *Lambda, arity int) {
	if l == nil {
		v.warnf("missing %s lambda", what)
		return
	}
	if len(l.Params) != arity {
		v.warnf("%s lambda has %d parameters, want %d", what, len(l.Params), arity)
	}
	if l.Body == nil {
		v.warnf("%s lambda has no body", what)
	}
}
