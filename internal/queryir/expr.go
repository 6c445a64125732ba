package queryir

import (
	"github.com/kestrel-orm/kestrel/internal/navtree"
)

// Expr represents an expression inside an operator lambda.
//
// This is a sealed interface - only types in this package implement it.
// Every expression knows its static type via ExprType.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
	ExprType() Type
}

// Parameter is a lambda-bound variable.
//
// Identity is the opaque generated ID, never the display Name and never
// Go pointer identity: two Parameter values with the same ID denote the
// same variable. Name is cosmetic and may be empty (anonymous).
type Parameter struct {
	ID   string
	Name string
	Type Type
}

func (*Parameter) exprNode()        {}
func (p *Parameter) ExprType() Type { return p.Type }

// Member is a named member access on an entity-typed (or otherwise
// structured) operand: o.CustomerId, c.Name.
type Member struct {
	Expr Expr
	Name string
	Type Type
}

func (*Member) exprNode()        {}
func (m *Member) ExprType() Type { return m.Type }

// TupleField reads one side of a composite tuple value.
type TupleField struct {
	Expr Expr
	Side navtree.Side
	Type Type
}

func (*TupleField) exprNode()        {}
func (f *TupleField) ExprType() Type { return f.Type }

// NewTuple constructs a composite tuple from two operands.
type NewTuple struct {
	Outer Expr
	Inner Expr
}

func (*NewTuple) exprNode() {}
func (t *NewTuple) ExprType() Type {
	return &TupleType{Outer: t.Outer.ExprType(), Inner: t.Inner.ExprType()}
}

// NewKey builds an anonymous multi-column key for composite-key join
// comparisons. Single-column keys never use NewKey.
type NewKey struct {
	Parts []Expr
}

func (*NewKey) exprNode() {}
func (k *NewKey) ExprType() Type {
	// Keys only flow into join key comparison positions; a dedicated
	// scalar spelling keeps rendering and equality simple.
	return &Scalar{Name: "key"}
}

// Constant is a literal value.
type Constant struct {
	Value any
	Type  Type
}

func (*Constant) exprNode()        {}
func (c *Constant) ExprType() Type { return c.Type }

// BinaryOp enumerates binary operators.
type BinaryOp string

const (
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
)

// Binary is a binary operation; comparisons and conjunctions type as bool.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*Binary) exprNode()        {}
func (b *Binary) ExprType() Type { return Bool() }

// Convert converts an operand to another type. The expansion pass emits
// it to lift a non-nullable join key to the nullable equivalent when
// the opposite key side is nullable.
type Convert struct {
	Expr Expr
	To   Type
}

func (*Convert) exprNode()        {}
func (c *Convert) ExprType() Type { return c.To }

// BoundNav is a bound reference into a navigation tree, produced by the
// binding visitor in place of a raw member-access chain. It disappears
// again when a pending projection is materialized (unbound back into
// literal tuple-field/member chains).
type BoundNav struct {
	Mapping *navtree.SourceMapping
	Node    navtree.NodeID
	Type    Type
}

func (*BoundNav) exprNode()        {}
func (b *BoundNav) ExprType() Type { return b.Type }

// Subquery embeds an operator tree as a sequence-valued expression.
// SelectMany collection selectors produce these.
type Subquery struct {
	Node Node
}

func (*Subquery) exprNode() {}
func (s *Subquery) ExprType() Type {
	return &SequenceType{Elem: s.Node.ElemType()}
}

// Lambda is a function literal taking one or two parameters. Lambdas
// are operator arguments, not expressions: they never nest inside Expr
// positions directly.
type Lambda struct {
	Params []*Parameter
	Body   Expr
}

// Param returns the single parameter of a one-parameter lambda.
func (l *Lambda) Param() *Parameter { return l.Params[0] }
