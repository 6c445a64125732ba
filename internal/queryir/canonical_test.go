package queryir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-orm/kestrel/internal/model"
)

func testEntity(name string) *model.EntityType {
	return &model.EntityType{
		Name:  name,
		Table: strings.ToLower(name) + "s",
		Properties: []*model.Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "Name", Column: "name", Type: "string"},
		},
		Key: []string{"Id"},
	}
}

func TestRenderExprBasic(t *testing.T) {
	p := &Parameter{ID: "a", Name: "x", Type: &Scalar{Name: "int"}}
	tests := []struct {
		name     string
		expr     Expr
		expected string
	}{
		{"parameter", p, "p0"},
		{"member", &Member{Expr: p, Name: "Id", Type: &Scalar{Name: "int"}}, "p0.Id"},
		{"string constant", &Constant{Value: "a\"b", Type: &Scalar{Name: "string"}}, `"a\"b"`},
		{"int constant", &Constant{Value: 42, Type: &Scalar{Name: "int"}}, "42"},
		{"binary", &Binary{Op: OpLe, Left: p, Right: p}, "(p0 <= p0)"},
		{"convert", &Convert{Expr: p, To: &Scalar{Name: "int", Nullable: true}}, "cast(p0, int?)"},
		{"tuple", &NewTuple{Outer: p, Inner: p}, "tuple(p0, p0)"},
		{"key", &NewKey{Parts: []Expr{p, p}}, "key(p0, p0)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RenderExpr(tt.expr))
		})
	}
}

func TestRenderParameterLabelsFirstUseOrder(t *testing.T) {
	a := &Parameter{ID: "id-a", Name: "alpha", Type: &Scalar{Name: "int"}}
	b := &Parameter{ID: "id-b", Name: "beta", Type: &Scalar{Name: "int"}}
	out := RenderExpr(&Binary{Op: OpEq, Left: b, Right: &Binary{Op: OpEq, Left: a, Right: b}})
	assert.Equal(t, "(p0 == (p1 == p0))", out)
}

func TestRenderIndependentOfNames(t *testing.T) {
	ent := testEntity("Customer")
	build := func(id, name string) Node {
		p := &Parameter{ID: id, Name: name, Type: &EntityRef{Entity: ent}}
		return &Where{
			Source: &EntitySource{Entity: ent},
			Predicate: &Lambda{Params: []*Parameter{p}, Body: &Binary{
				Op:    OpEq,
				Left:  &Member{Expr: p, Name: "Name", Type: &Scalar{Name: "string"}},
				Right: &Constant{Value: "Ada", Type: &Scalar{Name: "string"}},
			}},
		}
	}
	assert.Equal(t, Render(build("u1", "customer")), Render(build("u2", "c")))
}

func TestRenderNodeTree(t *testing.T) {
	ent := testEntity("Order")
	p := &Parameter{ID: "o", Name: "o", Type: &EntityRef{Entity: ent}}
	n := &Take{
		Source: &Where{
			Source: &EntitySource{Entity: ent},
			Predicate: &Lambda{Params: []*Parameter{p}, Body: &Binary{
				Op:    OpGt,
				Left:  &Member{Expr: p, Name: "Id", Type: &Scalar{Name: "int"}},
				Right: &Constant{Value: 5, Type: &Scalar{Name: "int"}},
			}},
		},
		Count: &Constant{Value: 10, Type: &Scalar{Name: "int"}},
	}
	expected := "take 10\n" +
		"from:\n" +
		"  where (p0) => (p0.Id > 5)\n" +
		"  from:\n" +
		"    source Order\n"
	assert.Equal(t, expected, Render(n))
}

func TestFingerprintStability(t *testing.T) {
	ent := testEntity("Order")
	n := &First{Source: &EntitySource{Entity: ent}}
	a := Fingerprint(n)
	b := Fingerprint(&First{Source: &EntitySource{Entity: ent}})
	require.Equal(t, a, b)
	assert.Len(t, a, 64, "hex-encoded sha256")

	other := Fingerprint(&Single{Source: &EntitySource{Entity: ent}})
	assert.NotEqual(t, a, other)
}
