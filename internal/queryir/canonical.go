package queryir

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kestrel-orm/kestrel/internal/navtree"
)

// Render produces the canonical text form of an operator tree.
//
// The rendering is deterministic and independent of parameter IDs and
// display names: parameters are numbered p0, p1, ... in first-use
// order. Two plans that differ only in bound-variable naming render
// identically, which is what the fingerprint and the golden tests rely
// on. All output is NFC normalized.
func Render(n Node) string {
	r := &renderer{params: map[string]string{}}
	var b strings.Builder
	r.node(&b, n, 0)
	return norm.NFC.String(b.String())
}

// RenderExpr renders a single expression in canonical form.
func RenderExpr(e Expr) string {
	r := &renderer{params: map[string]string{}}
	return norm.NFC.String(r.expr(e, 0))
}

type renderer struct {
	params map[string]string // parameter ID -> canonical label
}

func (r *renderer) label(p *Parameter) string {
	if l, ok := r.params[p.ID]; ok {
		return l
	}
	l := fmt.Sprintf("p%d", len(r.params))
	r.params[p.ID] = l
	return l
}

func (r *renderer) node(b *strings.Builder, n Node, depth int) {
	pad := strings.Repeat("  ", depth)
	line := func(format string, args ...any) {
		fmt.Fprintf(b, pad+format+"\n", args...)
	}
	child := func(label string, src Node) {
		line("%s:", label)
		r.node(b, src, depth+1)
	}

	switch x := n.(type) {
	case nil:
		line("<nil>")
	case *EntitySource:
		line("source %s", x.Entity.Name)
	case *Where:
		line("where %s", r.lambda(x.Predicate, depth))
		child("from", x.Source)
	case *Select:
		line("select %s", r.lambda(x.Selector, depth))
		child("from", x.Source)
	case *OrderBy:
		line("orderby%s %s", descSuffix(x.Descending), r.lambda(x.Key, depth))
		child("from", x.Source)
	case *ThenBy:
		line("thenby%s %s", descSuffix(x.Descending), r.lambda(x.Key, depth))
		child("from", x.Source)
	case *Join:
		line("join on %s == %s into %s",
			r.lambda(x.OuterKey, depth), r.lambda(x.InnerKey, depth), r.lambda(x.Result, depth))
		child("outer", x.Outer)
		child("inner", x.Inner)
	case *GroupJoin:
		line("groupjoin on %s == %s into %s",
			r.lambda(x.OuterKey, depth), r.lambda(x.InnerKey, depth), r.lambda(x.Result, depth))
		child("outer", x.Outer)
		child("inner", x.Inner)
	case *SelectMany:
		if x.Result != nil {
			line("selectmany %s into %s", r.lambda(x.Collection, depth), r.lambda(x.Result, depth))
		} else {
			line("selectmany %s", r.lambda(x.Collection, depth))
		}
		child("from", x.Source)
	case *DefaultIfEmpty:
		line("defaultifempty")
		child("from", x.Source)
	case *ExprSource:
		line("exprsource %s", r.expr(x.Expr, depth))
	case *Distinct:
		line("distinct")
		child("from", x.Source)
	case *Skip:
		line("skip %s", r.expr(x.Count, depth))
		child("from", x.Source)
	case *Take:
		line("take %s", r.expr(x.Count, depth))
		child("from", x.Source)
	case *First:
		line("first%s", orDefaultSuffix(x.OrDefault))
		child("from", x.Source)
	case *Single:
		line("single%s", orDefaultSuffix(x.OrDefault))
		child("from", x.Source)
	case *Any:
		line("any")
		child("from", x.Source)
	case *OfType:
		line("oftype %s", x.Target)
		child("from", x.Source)
	case *Tracking:
		line("tracking %v", x.Enabled)
		child("from", x.Source)
	case *MaterializeCollection:
		line("materialize")
		child("from", x.Source)
	default:
		line("<unknown %T>", n)
	}
}

func (r *renderer) lambda(l *Lambda, depth int) string {
	if l == nil {
		return "<nil>"
	}
	labels := make([]string, len(l.Params))
	for i, p := range l.Params {
		labels[i] = r.label(p)
	}
	return fmt.Sprintf("(%s) => %s", strings.Join(labels, ", "), r.expr(l.Body, depth))
}

func (r *renderer) expr(e Expr, depth int) string {
	switch x := e.(type) {
	case nil:
		return "<nil>"
	case *Parameter:
		return r.label(x)
	case *Member:
		return r.expr(x.Expr, depth) + "." + x.Name
	case *TupleField:
		if x.Side == navtree.SideInner {
			return r.expr(x.Expr, depth) + ".inner"
		}
		return r.expr(x.Expr, depth) + ".outer"
	case *NewTuple:
		return fmt.Sprintf("tuple(%s, %s)", r.expr(x.Outer, depth), r.expr(x.Inner, depth))
	case *NewKey:
		parts := make([]string, len(x.Parts))
		for i, p := range x.Parts {
			parts[i] = r.expr(p, depth)
		}
		return fmt.Sprintf("key(%s)", strings.Join(parts, ", "))
	case *Constant:
		if s, ok := x.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", x.Value)
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", r.expr(x.Left, depth), x.Op, r.expr(x.Right, depth))
	case *Convert:
		return fmt.Sprintf("cast(%s, %s)", r.expr(x.Expr, depth), x.To)
	case *BoundNav:
		return fmt.Sprintf("bound(%s)", x.Mapping.Tree.PathString(x.Node))
	case *Subquery:
		var b strings.Builder
		r.node(&b, x.Node, depth+1)
		inner := strings.TrimRight(b.String(), "\n")
		return "subquery[\n" + inner + "\n" + strings.Repeat("  ", depth) + "]"
	}
	return fmt.Sprintf("<unknown %T>", e)
}

func descSuffix(desc bool) string {
	if desc {
		return " desc"
	}
	return ""
}

func orDefaultSuffix(orDefault bool) string {
	if orDefault {
		return "-or-default"
	}
	return ""
}
