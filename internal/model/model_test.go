package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModel() *Model {
	customer := &EntityType{
		Name:  "Customer",
		Table: "customers",
		Properties: []*Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "Name", Column: "name", Type: "string"},
		},
		Key: []string{"Id"},
		Navigations: []*Navigation{
			{Name: "Orders", Target: "Order", ForeignKey: []string{"CustomerId"}, Collection: true},
		},
	}
	order := &EntityType{
		Name:  "Order",
		Table: "orders",
		Properties: []*Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "CustomerId", Column: "customer_id", Type: "int"},
		},
		Key: []string{"Id"},
		Navigations: []*Navigation{
			{Name: "Customer", Target: "Customer", ForeignKey: []string{"CustomerId"}, DependentToPrincipal: true},
		},
	}
	return NewModel(customer, order)
}

func TestValidateAcceptsConsistentModel(t *testing.T) {
	require.NoError(t, validModel().Validate())
}

func TestEntityLookup(t *testing.T) {
	m := validModel()
	require.NotNil(t, m.Entity("Order"))
	assert.Nil(t, m.Entity("Invoice"))

	e := m.Entity("Order")
	assert.NotNil(t, e.Property("CustomerId"))
	assert.Nil(t, e.Property("customer_id"), "lookup is by property name, not column")
	assert.Nil(t, e.Navigation("Items"))

	keys := e.KeyProperties()
	require.Len(t, keys, 1)
	assert.Equal(t, "Id", keys[0].Name)
}

func TestPrincipalResolution(t *testing.T) {
	m := validModel()
	order := m.Entity("Order")
	customer := m.Entity("Customer")

	toPrincipal := order.Navigation("Customer")
	assert.Equal(t, customer, m.PrincipalEntity(toPrincipal, order))
	assert.Equal(t, order, m.DependentEntity(toPrincipal, order))
	keys, err := m.PrincipalKeyFor(toPrincipal, order)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id"}, keys)

	collection := customer.Navigation("Orders")
	assert.Equal(t, customer, m.PrincipalEntity(collection, customer))
	assert.Equal(t, order, m.DependentEntity(collection, customer))
	keys, err = m.PrincipalKeyFor(collection, customer)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id"}, keys, "the collection's principal key lives on the declaring side")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Model)
		message string
	}{
		{
			"missing key",
			func(m *Model) { m.Entity("Order").Key = nil },
			"missing key",
		},
		{
			"undeclared key property",
			func(m *Model) { m.Entity("Order").Key = []string{"Uuid"} },
			`key property "Uuid" not declared`,
		},
		{
			"unknown navigation target",
			func(m *Model) { m.Entity("Order").Navigations[0].Target = "Account" },
			`targets unknown entity "Account"`,
		},
		{
			"foreign key arity mismatch",
			func(m *Model) {
				m.Entity("Order").Navigations[0].ForeignKey = []string{"CustomerId", "Region"}
			},
			"2 foreign-key properties against 1 principal-key properties",
		},
		{
			"undeclared foreign key",
			func(m *Model) { m.Entity("Order").Navigations[0].ForeignKey = []string{"AccountId"} },
			"undeclared foreign-key property Order.AccountId",
		},
		{
			"optional navigation over non-nullable foreign key",
			func(m *Model) { m.Entity("Order").Navigations[0].Optional = true },
			"is optional but foreign-key property CustomerId is non-nullable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel()
			tt.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
