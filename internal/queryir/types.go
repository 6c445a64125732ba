package queryir

import (
	"fmt"

	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/navtree"
)

// Type represents the static type of an expression or the element type
// of an operator's output sequence.
//
// This is a sealed interface - only types in this package implement it.
type Type interface {
	typeNode() // Marker method - seals interface to this package
	String() string
}

// EntityRef is the type of a tracked entity row.
type EntityRef struct {
	Entity *model.EntityType
}

func (*EntityRef) typeNode()        {}
func (t *EntityRef) String() string { return t.Entity.Name }

// Scalar is a primitive value type ("int", "string", "bool", "float").
// Nullable scalars carry a "?" suffix in their rendering.
type Scalar struct {
	Name     string
	Nullable bool
}

func (*Scalar) typeNode() {}
func (t *Scalar) String() string {
	if t.Nullable {
		return t.Name + "?"
	}
	return t.Name
}

// TupleType is the composite ("transparent") tuple synthesized by a
// join or flatten: exactly two fields, outer and inner, nesting
// arbitrarily deep as more joins are layered.
type TupleType struct {
	Outer Type
	Inner Type
}

func (*TupleType) typeNode()        {}
func (t *TupleType) String() string { return fmt.Sprintf("(%s, %s)", t.Outer, t.Inner) }

// SequenceType is a stream of elements: the type of every operator
// node's output and of group-join groups.
type SequenceType struct {
	Elem Type
}

func (*SequenceType) typeNode()        {}
func (t *SequenceType) String() string { return fmt.Sprintf("seq<%s>", t.Elem) }

// Bool is the type of predicates and comparisons.
func Bool() Type { return &Scalar{Name: "bool"} }

// TypeEqual reports structural equality. Entity references compare by
// entity name; nullability is significant for scalars.
func TypeEqual(a, b Type) bool {
	switch at := a.(type) {
	case *EntityRef:
		bt, ok := b.(*EntityRef)
		return ok && at.Entity.Name == bt.Entity.Name
	case *Scalar:
		bt, ok := b.(*Scalar)
		return ok && at.Name == bt.Name && at.Nullable == bt.Nullable
	case *TupleType:
		bt, ok := b.(*TupleType)
		return ok && TypeEqual(at.Outer, bt.Outer) && TypeEqual(at.Inner, bt.Inner)
	case *SequenceType:
		bt, ok := b.(*SequenceType)
		return ok && TypeEqual(at.Elem, bt.Elem)
	}
	return false
}

// AsNullable lifts a scalar to its nullable equivalent. Non-scalar
// types are returned unchanged (entity and tuple values are already
// reference-shaped).
func AsNullable(t Type) Type {
	if s, ok := t.(*Scalar); ok && !s.Nullable {
		return &Scalar{Name: s.Name, Nullable: true}
	}
	return t
}

// TupleSide projects one side of a tuple type.
func TupleSide(t Type, side navtree.Side) (Type, error) {
	tt, ok := t.(*TupleType)
	if !ok {
		return nil, fmt.Errorf("queryir: %s side of non-tuple type %s", side, t)
	}
	if side == navtree.SideInner {
		return tt.Inner, nil
	}
	return tt.Outer, nil
}

// PropertyType resolves a property's declared type to an IR type.
func PropertyType(p *model.Property) Type {
	return &Scalar{Name: p.Type, Nullable: p.Nullable}
}
