package navtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-orm/kestrel/internal/model"
)

func testOrderModel() *model.Model {
	customer := &model.EntityType{
		Name: "Customer",
		Properties: []*model.Property{
			{Name: "Id", Column: "id", Type: "int"},
		},
		Key: []string{"Id"},
	}
	order := &model.EntityType{
		Name: "Order",
		Properties: []*model.Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "CustomerId", Column: "customer_id", Type: "int"},
		},
		Key: []string{"Id"},
		Navigations: []*model.Navigation{
			{Name: "Customer", Target: "Customer", ForeignKey: []string{"CustomerId"}, DependentToPrincipal: true},
		},
	}
	return model.NewModel(customer, order)
}

func TestTreeRootState(t *testing.T) {
	m := testOrderModel()
	tr := NewTree(m.Entity("Order"))

	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Expanded(RootID))
	assert.Equal(t, 0, tr.ExpandedCount())
	assert.Equal(t, RootID, tr.Parent(RootID))
	assert.Equal(t, "Order", tr.EntityFor(RootID, m).Name)
	assert.Equal(t, ".", tr.ToPath(RootID).String())
}

func TestAddChildDeduplicates(t *testing.T) {
	m := testOrderModel()
	tr := NewTree(m.Entity("Order"))
	nav := m.Entity("Order").Navigation("Customer")

	a := tr.AddChild(RootID, nav)
	b := tr.AddChild(RootID, nav)
	assert.Equal(t, a, b, "one node per navigation per parent")
	assert.Equal(t, 2, tr.Len())
	assert.False(t, tr.Expanded(a))
	assert.Equal(t, "Order.Customer", tr.PathString(a))
	assert.Equal(t, a, tr.Child(RootID, "Customer"))
	assert.Equal(t, NodeID(-1), tr.Child(RootID, "Items"))
}

func TestMarkExpandedOnce(t *testing.T) {
	m := testOrderModel()
	tr := NewTree(m.Entity("Order"))
	nav := m.Entity("Order").Navigation("Customer")
	id := tr.AddChild(RootID, nav)

	require.NoError(t, tr.MarkExpanded(id))
	assert.Equal(t, 1, tr.ExpandedCount())
	err := tr.MarkExpanded(id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already expanded")
}

func TestMarkExpandedRequiresExpandedParent(t *testing.T) {
	// Self-referencing chain to get a grandchild without expanding the child.
	emp := &model.EntityType{
		Name:       "Employee",
		Properties: []*model.Property{{Name: "Id", Type: "int"}, {Name: "ManagerId", Type: "int", Nullable: true}},
		Key:        []string{"Id"},
		Navigations: []*model.Navigation{
			{Name: "Manager", Target: "Employee", ForeignKey: []string{"ManagerId"}, DependentToPrincipal: true, Optional: true},
		},
	}
	tr := NewTree(emp)
	nav := emp.Navigation("Manager")
	child := tr.AddChild(RootID, nav)
	grand := tr.AddChild(child, nav)

	err := tr.MarkExpanded(grand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before its parent")
}

func TestPrependToExpanded(t *testing.T) {
	m := testOrderModel()
	tr := NewTree(m.Entity("Order"))
	nav := m.Entity("Order").Navigation("Customer")
	id := tr.AddChild(RootID, nav)

	// Widening before the child expands must not touch its path.
	tr.PrependToExpanded([]Side{SideOuter})
	assert.Equal(t, "outer", tr.ToPath(RootID).String())
	assert.Empty(t, tr.ToPath(id))

	tr.SetToPath(id, Path{SideInner})
	require.NoError(t, tr.MarkExpanded(id))
	tr.PrependToExpanded([]Side{SideOuter, SideOuter}, id)
	assert.Equal(t, "outer.outer.outer", tr.ToPath(RootID).String())
	assert.Equal(t, "inner", tr.ToPath(id).String(), "skipped nodes keep their path")
}

func TestPathOps(t *testing.T) {
	p := Path{SideOuter, SideInner}
	q := p.Prepend(SideInner)
	assert.Equal(t, "inner.outer.inner", q.String())
	assert.Equal(t, "outer.inner", p.String(), "prepend does not mutate")

	c := p.Clone()
	c[0] = SideInner
	assert.Equal(t, "outer.inner", p.String(), "clone is independent")
}

func TestSourceMappingPaths(t *testing.T) {
	m := testOrderModel()
	sm := NewSourceMapping(m.Entity("Order"))
	assert.Empty(t, sm.RootPath())
	assert.Equal(t, "Order", sm.Entity.Name)

	sm.PrependPaths(SideOuter)
	assert.Equal(t, "outer", sm.RootPath().String(), "the root path is the tree root's to-path")
}
