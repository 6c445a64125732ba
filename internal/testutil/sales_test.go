package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesModelValidates(t *testing.T) {
	m := SalesModel()
	require.NoError(t, m.Validate())

	order := m.Entity("Order")
	require.NotNil(t, order)
	assert.NotNil(t, order.Navigation("Customer"))
	assert.NotNil(t, order.Navigation("Items"))

	manager := m.Entity("Employee").Navigation("Manager")
	require.NotNil(t, manager)
	assert.True(t, manager.Optional)
	assert.True(t, m.Entity("Employee").Property("ManagerId").Nullable)
}
