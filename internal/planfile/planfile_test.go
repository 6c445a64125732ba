package planfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-orm/kestrel/internal/expand"
	"github.com/kestrel-orm/kestrel/internal/queryir"
	"github.com/kestrel-orm/kestrel/internal/testutil"
)

func build(t *testing.T, src string) queryir.Node {
	t.Helper()
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	n, err := Build(testutil.SalesModel(), p)
	require.NoError(t, err)
	return n
}

func TestParsePlan(t *testing.T) {
	p, err := Parse([]byte(`
source: Order
pipeline:
  - where: {path: Customer.Name, value: Ada}
  - first: {}
`))
	require.NoError(t, err)
	assert.Equal(t, "Order", p.Source)
	require.Len(t, p.Pipeline, 2)
	assert.Equal(t, "where", p.Pipeline[0].Op)
	assert.Equal(t, "first", p.Pipeline[1].Op)
}

func TestParseRejectsMissingSource(t *testing.T) {
	_, err := Parse([]byte("pipeline: []"))
	assert.ErrorContains(t, err, "must name a source entity")
}

func TestBuildWherePath(t *testing.T) {
	n := build(t, `
source: Order
pipeline:
  - where: {path: Customer.Name, value: Ada}
`)
	assert.Equal(t,
		"where (p0) => (p0.Customer.Name == \"Ada\")\n"+
			"from:\n"+
			"  source Order\n",
		queryir.Render(n))
}

func TestBuildConjunction(t *testing.T) {
	n := build(t, `
source: Order
pipeline:
  - where:
      all:
        - {path: Customer.Name, value: Ada}
        - {path: Total, op: gt, value: 10.5}
`)
	w, ok := n.(*queryir.Where)
	require.True(t, ok)
	and, ok := w.Predicate.Body.(*queryir.Binary)
	require.True(t, ok)
	assert.Equal(t, queryir.OpAnd, and.Op)
}

func TestBuildPipelineOperators(t *testing.T) {
	n := build(t, `
source: Customer
pipeline:
  - orderBy: {path: Name, desc: true}
  - thenBy: {path: Id}
  - skip: 2
  - take: 5
  - distinct: {}
`)
	d, ok := n.(*queryir.Distinct)
	require.True(t, ok)
	take, ok := d.Source.(*queryir.Take)
	require.True(t, ok)
	skip, ok := take.Source.(*queryir.Skip)
	require.True(t, ok)
	then, ok := skip.Source.(*queryir.ThenBy)
	require.True(t, ok)
	order, ok := then.Source.(*queryir.OrderBy)
	require.True(t, ok)
	assert.True(t, order.Descending)
	assert.False(t, then.Descending)
}

func TestBuildSelectAndTerminals(t *testing.T) {
	n := build(t, `
source: Order
pipeline:
  - select: {path: Customer}
  - first: {orDefault: true}
`)
	first, ok := n.(*queryir.First)
	require.True(t, ok)
	assert.True(t, first.OrDefault)
	sel, ok := first.Source.(*queryir.Select)
	require.True(t, ok)
	ref, ok := sel.Selector.Body.ExprType().(*queryir.EntityRef)
	require.True(t, ok)
	assert.Equal(t, "Customer", ref.Entity.Name)
}

func TestBuildFlatten(t *testing.T) {
	n := build(t, `
source: Customer
pipeline:
  - flatten: {path: Orders, pair: true}
`)
	sm, ok := n.(*queryir.SelectMany)
	require.True(t, ok)
	require.NotNil(t, sm.Result)
	_, ok = sm.Result.Body.(*queryir.NewTuple)
	assert.True(t, ok)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown source",
			src:  "source: Account\npipeline: []",
			want: `unknown source entity "Account"`,
		},
		{
			name: "unknown member",
			src: `
source: Order
pipeline:
  - where: {path: Shipper.Name, value: x}
`,
			want: `entity Order has no member "Shipper"`,
		},
		{
			name: "traversal through scalar",
			src: `
source: Order
pipeline:
  - where: {path: Total.Amount, value: 1}
`,
			want: `cannot access "Amount" on non-entity value`,
		},
		{
			name: "unknown comparison operator",
			src: `
source: Order
pipeline:
  - where: {path: Total, op: like, value: 1}
`,
			want: `unknown comparison operator "like"`,
		},
		{
			name: "thenBy without orderBy",
			src: `
source: Customer
pipeline:
  - thenBy: {path: Name}
`,
			want: "thenBy must follow orderBy",
		},
		{
			name: "flatten over non-collection",
			src: `
source: Order
pipeline:
  - flatten: {path: Customer}
`,
			want: "Customer is not a collection navigation",
		},
		{
			name: "unknown operation",
			src: `
source: Customer
pipeline:
  - groupBy: {path: City}
`,
			want: "unknown operation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.src))
			require.NoError(t, err)
			_, err = Build(testutil.SalesModel(), p)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestBuiltPlansExpand(t *testing.T) {
	m := testutil.SalesModel()
	n := build(t, `
source: OrderItem
pipeline:
  - where: {path: Order.Customer.Name, value: Ada}
`)
	ex := &expand.Expander{Model: m, Gen: &expand.SeqGenerator{}}
	expanded, err := ex.Expand(n)
	require.NoError(t, err)
	assert.NotEqual(t, queryir.Fingerprint(n), queryir.Fingerprint(expanded))
}
