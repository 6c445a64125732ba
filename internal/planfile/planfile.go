// Package planfile parses declarative YAML query plans into typed
// operator trees ready for expansion.
//
// A plan names a root entity and a pipeline of operations. Paths in
// the pipeline are member chains rooted at the current element and may
// traverse navigation properties; the expansion pass turns those
// traversals into joins.
//
//	source: Order
//	pipeline:
//	  - where: {path: Customer.Name, op: eq, value: Ada}
//	  - select: {path: Customer}
//	  - first: {}
package planfile

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// Plan is a parsed query plan, not yet resolved against a model.
type Plan struct {
	Source   string `yaml:"source"`
	Pipeline []Step `yaml:"pipeline"`
}

// Step is one pipeline operation: a single-key mapping whose key names
// the operation and whose value is the operation's payload.
type Step struct {
	Op string

	body yaml.Node
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return &PlanError{Message: "pipeline step must be a single-operation mapping"}
	}
	s.Op = value.Content[0].Value
	s.body = *value.Content[1]
	return nil
}

// PlanError reports a problem in a plan document.
type PlanError struct {
	Op      string
	Message string
}

func (e *PlanError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("planfile: %s: %s", e.Op, e.Message)
	}
	return "planfile: " + e.Message
}

// Condition is a comparison, or a conjunction of comparisons via All.
type Condition struct {
	Path  string      `yaml:"path"`
	Op    string      `yaml:"op"` // eq, ne, lt, le, gt, ge; defaults to eq
	Value any         `yaml:"value"`
	All   []Condition `yaml:"all"`
}

type selector struct {
	Path string `yaml:"path"`
}

type sortKey struct {
	Path string `yaml:"path"`
	Desc bool   `yaml:"desc"`
}

type flatten struct {
	Path string `yaml:"path"`
	Pair bool   `yaml:"pair"`
}

type terminal struct {
	OrDefault bool `yaml:"orDefault"`
}

var comparisonOps = map[string]queryir.BinaryOp{
	"":   queryir.OpEq,
	"eq": queryir.OpEq,
	"ne": queryir.OpNe,
	"lt": queryir.OpLt,
	"le": queryir.OpLe,
	"gt": queryir.OpGt,
	"ge": queryir.OpGe,
}

// Parse decodes a plan document.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &PlanError{Message: err.Error()}
	}
	if p.Source == "" {
		return nil, &PlanError{Message: "plan must name a source entity"}
	}
	return &p, nil
}

// Build resolves a plan against a model and produces the operator
// tree. Paths are type-checked as they are resolved: unknown members
// and traversals through non-entity values are errors.
func Build(m *model.Model, p *Plan) (queryir.Node, error) {
	b := &builder{model: m}
	return b.build(p)
}

type builder struct {
	model *model.Model
	next  int
}

func (b *builder) param(name string, t queryir.Type) *queryir.Parameter {
	b.next++
	return &queryir.Parameter{ID: fmt.Sprintf("q%d", b.next), Name: name, Type: t}
}

func (b *builder) build(p *Plan) (queryir.Node, error) {
	ent := b.model.Entity(p.Source)
	if ent == nil {
		return nil, &PlanError{Message: fmt.Sprintf("unknown source entity %q", p.Source)}
	}
	var node queryir.Node = &queryir.EntitySource{Entity: ent}

	for _, step := range p.Pipeline {
		var err error
		node, err = b.apply(node, step)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (b *builder) apply(node queryir.Node, step Step) (queryir.Node, error) {
	switch step.Op {
	case "where":
		var cond Condition
		if err := decode(step, &cond); err != nil {
			return nil, err
		}
		pred, err := b.predicate(node.ElemType(), &cond)
		if err != nil {
			return nil, err
		}
		return &queryir.Where{Source: node, Predicate: pred}, nil

	case "select":
		var sel selector
		if err := decode(step, &sel); err != nil {
			return nil, err
		}
		p := b.param("x", node.ElemType())
		body, err := b.path(p, sel.Path)
		if err != nil {
			return nil, &PlanError{Op: step.Op, Message: err.Error()}
		}
		return &queryir.Select{Source: node, Selector: lambda1(p, body)}, nil

	case "orderBy", "thenBy":
		var key sortKey
		if err := decode(step, &key); err != nil {
			return nil, err
		}
		p := b.param("x", node.ElemType())
		body, err := b.path(p, key.Path)
		if err != nil {
			return nil, &PlanError{Op: step.Op, Message: err.Error()}
		}
		if step.Op == "orderBy" {
			return &queryir.OrderBy{Source: node, Key: lambda1(p, body), Descending: key.Desc}, nil
		}
		switch node.(type) {
		case *queryir.OrderBy, *queryir.ThenBy:
			return &queryir.ThenBy{Source: node, Key: lambda1(p, body), Descending: key.Desc}, nil
		}
		return nil, &PlanError{Op: step.Op, Message: "thenBy must follow orderBy"}

	case "flatten":
		return b.flattenStep(node, step)

	case "skip", "take":
		var count int
		if err := decode(step, &count); err != nil {
			return nil, err
		}
		c := &queryir.Constant{Value: count, Type: &queryir.Scalar{Name: "int"}}
		if step.Op == "skip" {
			return &queryir.Skip{Source: node, Count: c}, nil
		}
		return &queryir.Take{Source: node, Count: c}, nil

	case "distinct":
		return &queryir.Distinct{Source: node}, nil

	case "first", "single":
		var t terminal
		if err := decode(step, &t); err != nil {
			return nil, err
		}
		if step.Op == "first" {
			return &queryir.First{Source: node, OrDefault: t.OrDefault}, nil
		}
		return &queryir.Single{Source: node, OrDefault: t.OrDefault}, nil

	case "any":
		return &queryir.Any{Source: node}, nil

	default:
		return nil, &PlanError{Op: step.Op, Message: "unknown operation"}
	}
}

func (b *builder) flattenStep(node queryir.Node, step Step) (queryir.Node, error) {
	var f flatten
	if err := decode(step, &f); err != nil {
		return nil, err
	}
	p := b.param("x", node.ElemType())
	coll, err := b.path(p, f.Path)
	if err != nil {
		return nil, &PlanError{Op: step.Op, Message: err.Error()}
	}
	seq, ok := coll.ExprType().(*queryir.SequenceType)
	if !ok {
		return nil, &PlanError{Op: step.Op, Message: fmt.Sprintf("%s is not a collection navigation", f.Path)}
	}
	sm := &queryir.SelectMany{Source: node, Collection: lambda1(p, coll)}
	if f.Pair {
		po := b.param("x", node.ElemType())
		pi := b.param("y", seq.Elem)
		sm.Result = &queryir.Lambda{
			Params: []*queryir.Parameter{po, pi},
			Body:   &queryir.NewTuple{Outer: po, Inner: pi},
		}
	}
	return sm, nil
}

func (b *builder) predicate(elem queryir.Type, cond *Condition) (*queryir.Lambda, error) {
	p := b.param("x", elem)
	body, err := b.condition(p, cond)
	if err != nil {
		return nil, err
	}
	return lambda1(p, body), nil
}

func (b *builder) condition(p *queryir.Parameter, cond *Condition) (queryir.Expr, error) {
	if len(cond.All) > 0 {
		if cond.Path != "" {
			return nil, &PlanError{Op: "where", Message: "a condition is either a comparison or an all-of group, not both"}
		}
		var expr queryir.Expr
		for i := range cond.All {
			part, err := b.condition(p, &cond.All[i])
			if err != nil {
				return nil, err
			}
			if expr == nil {
				expr = part
			} else {
				expr = &queryir.Binary{Op: queryir.OpAnd, Left: expr, Right: part}
			}
		}
		return expr, nil
	}

	op, ok := comparisonOps[cond.Op]
	if !ok {
		return nil, &PlanError{Op: "where", Message: fmt.Sprintf("unknown comparison operator %q", cond.Op)}
	}
	left, err := b.path(p, cond.Path)
	if err != nil {
		return nil, &PlanError{Op: "where", Message: err.Error()}
	}
	constType := left.ExprType()
	if s, ok := constType.(*queryir.Scalar); ok && s.Nullable {
		constType = &queryir.Scalar{Name: s.Name}
	}
	return &queryir.Binary{
		Op:    op,
		Left:  left,
		Right: &queryir.Constant{Value: cond.Value, Type: constType},
	}, nil
}

// path resolves a dotted member chain from a base expression, checking
// each segment against the model. Navigation segments type as entity
// references (or sequences for collections); property segments type as
// scalars and must terminate the chain.
func (b *builder) path(base queryir.Expr, path string) (queryir.Expr, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	expr := base
	for _, seg := range strings.Split(path, ".") {
		ref, ok := expr.ExprType().(*queryir.EntityRef)
		if !ok {
			return nil, fmt.Errorf("cannot access %q on non-entity value of type %s", seg, expr.ExprType())
		}
		ent := ref.Entity
		if nav := ent.Navigation(seg); nav != nil {
			var t queryir.Type = &queryir.EntityRef{Entity: b.model.Entity(nav.Target)}
			if nav.Collection {
				t = &queryir.SequenceType{Elem: t}
			}
			expr = &queryir.Member{Expr: expr, Name: seg, Type: t}
			continue
		}
		if prop := ent.Property(seg); prop != nil {
			expr = &queryir.Member{Expr: expr, Name: seg, Type: queryir.PropertyType(prop)}
			continue
		}
		return nil, fmt.Errorf("entity %s has no member %q", ent.Name, seg)
	}
	return expr, nil
}

func lambda1(p *queryir.Parameter, body queryir.Expr) *queryir.Lambda {
	return &queryir.Lambda{Params: []*queryir.Parameter{p}, Body: body}
}

func decode(step Step, out any) error {
	if err := step.body.Decode(out); err != nil {
		return &PlanError{Op: step.Op, Message: err.Error()}
	}
	return nil
}
