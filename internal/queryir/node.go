package queryir

import (
	"github.com/kestrel-orm/kestrel/internal/model"
)

// Node represents one query operator.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and
// enables exhaustive type switches in the expansion pass and backends.
//
// ElemType is the element type of the operator's output sequence (for
// value-producing terminals such as First or Any it is the type of the
// produced value).
type Node interface {
	opNode() // Marker method - seals interface to this package
	ElemType() Type
}

// EntitySource is the leaf operator: scan one entity's source.
type EntitySource struct {
	Entity *model.EntityType
}

func (*EntitySource) opNode()          {}
func (n *EntitySource) ElemType() Type { return &EntityRef{Entity: n.Entity} }

// Where filters the source by a one-parameter predicate lambda.
type Where struct {
	Source    Node
	Predicate *Lambda
}

func (*Where) opNode()          {}
func (n *Where) ElemType() Type { return n.Source.ElemType() }

// Select projects each element through a one-parameter selector lambda.
type Select struct {
	Source   Node
	Selector *Lambda
}

func (*Select) opNode()          {}
func (n *Select) ElemType() Type { return n.Selector.Body.ExprType() }

// OrderBy sorts the source by a key selector.
type OrderBy struct {
	Source     Node
	Key        *Lambda
	Descending bool
}

func (*OrderBy) opNode()          {}
func (n *OrderBy) ElemType() Type { return n.Source.ElemType() }

// ThenBy appends a subsequent sort key to an OrderBy/ThenBy source.
type ThenBy struct {
	Source     Node
	Key        *Lambda
	Descending bool
}

func (*ThenBy) opNode()          {}
func (n *ThenBy) ElemType() Type { return n.Source.ElemType() }

// Join is an inner equi-join of two sources. Result is a two-parameter
// combinator producing the output element.
type Join struct {
	Outer    Node
	Inner    Node
	OuterKey *Lambda
	InnerKey *Lambda
	Result   *Lambda
}

func (*Join) opNode()          {}
func (n *Join) ElemType() Type { return n.Result.Body.ExprType() }

// GroupJoin pairs each outer element with the sequence of matching
// inner elements. The expansion pass emits GroupJoin (followed by a
// flattening SelectMany) for optional navigations; a GroupJoin arriving
// as input is passed through untouched.
type GroupJoin struct {
	Outer    Node
	Inner    Node
	OuterKey *Lambda
	InnerKey *Lambda
	Result   *Lambda
}

func (*GroupJoin) opNode()          {}
func (n *GroupJoin) ElemType() Type { return n.Result.Body.ExprType() }

// SelectMany flattens a collection selected per source element.
// Collection is a one-parameter lambda whose body is sequence-valued
// (a Subquery). Result is the two-parameter combinator; it is always
// present in expanded output (processors synthesize the pair-inner
// combinator when the input had none).
type SelectMany struct {
	Source     Node
	Collection *Lambda
	Result     *Lambda
}

func (*SelectMany) opNode() {}
func (n *SelectMany) ElemType() Type {
	if n.Result != nil {
		return n.Result.Body.ExprType()
	}
	if seq, ok := n.Collection.Body.ExprType().(*SequenceType); ok {
		return seq.Elem
	}
	return n.Collection.Body.ExprType()
}

// DefaultIfEmpty yields the source sequence, or a single null
// placeholder when the source is empty. Paired with GroupJoin and
// SelectMany it emulates a left outer join for optional navigations.
type DefaultIfEmpty struct {
	Source Node
}

func (*DefaultIfEmpty) opNode()          {}
func (n *DefaultIfEmpty) ElemType() Type { return n.Source.ElemType() }

// ExprSource adapts a sequence-valued expression (such as a group-join
// group) into an operator source.
type ExprSource struct {
	Expr Expr
}

func (*ExprSource) opNode() {}
func (n *ExprSource) ElemType() Type {
	if seq, ok := n.Expr.ExprType().(*SequenceType); ok {
		return seq.Elem
	}
	return n.Expr.ExprType()
}

// Distinct removes duplicate elements.
type Distinct struct {
	Source Node
}

func (*Distinct) opNode()          {}
func (n *Distinct) ElemType() Type { return n.Source.ElemType() }

// Skip drops the first Count elements. Count is a plain value
// sub-expression, never a navigation path.
type Skip struct {
	Source Node
	Count  Expr
}

func (*Skip) opNode()          {}
func (n *Skip) ElemType() Type { return n.Source.ElemType() }

// Take keeps the first Count elements.
type Take struct {
	Source Node
	Count  Expr
}

func (*Take) opNode()          {}
func (n *Take) ElemType() Type { return n.Source.ElemType() }

// First yields the first element; OrDefault tolerates an empty source.
type First struct {
	Source    Node
	OrDefault bool
}

func (*First) opNode()          {}
func (n *First) ElemType() Type { return n.Source.ElemType() }

// Single yields the only element; OrDefault tolerates an empty source.
type Single struct {
	Source    Node
	OrDefault bool
}

func (*Single) opNode()          {}
func (n *Single) ElemType() Type { return n.Source.ElemType() }

// Any reports whether the source has at least one element.
type Any struct {
	Source Node
}

func (*Any) opNode()          {}
func (n *Any) ElemType() Type { return Bool() }

// OfType filters the source to elements of the target type.
type OfType struct {
	Source Node
	Target Type
}

func (*OfType) opNode()          {}
func (n *OfType) ElemType() Type { return n.Target }

// Tracking toggles change tracking on the results. It has no effect on
// the expansion itself and passes through like other terminals.
type Tracking struct {
	Source  Node
	Enabled bool
}

func (*Tracking) opNode()          {}
func (n *Tracking) ElemType() Type { return n.Source.ElemType() }

// MaterializeCollection marks a sub-source produced for a collection
// navigation by an earlier pipeline stage. At this layer collections
// are still fully queryable sources; the wrapper only records that a
// later stage must finalize them into their external collection type.
// The join builder unwraps it before joining.
type MaterializeCollection struct {
	Source Node
}

func (*MaterializeCollection) opNode()          {}
func (n *MaterializeCollection) ElemType() Type { return n.Source.ElemType() }
