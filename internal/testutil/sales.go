// Package testutil provides shared fixtures for query-compilation
// tests: a small sales entity model exercising every relationship kind
// the expansion pass distinguishes.
package testutil

import "github.com/kestrel-orm/kestrel/internal/model"

// SalesModel builds the canonical test model.
//
// Customer 1-* Order (required reference Order.Customer, collection
// Customer.Orders), Order 1-* OrderItem (required reference
// OrderItem.Order, collection Order.Items), and a self-referencing
// optional Employee.Manager. The shapes cover required and optional
// reference navigations, collection navigations, multi-hop chains, and
// a nullable foreign key.
func SalesModel() *model.Model {
	customer := &model.EntityType{
		Name:  "Customer",
		Table: "customers",
		Properties: []*model.Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "Name", Column: "name", Type: "string"},
			{Name: "City", Column: "city", Type: "string", Nullable: true},
		},
		Key: []string{"Id"},
		Navigations: []*model.Navigation{
			{Name: "Orders", Target: "Order", ForeignKey: []string{"CustomerId"}, Collection: true},
		},
	}
	order := &model.EntityType{
		Name:  "Order",
		Table: "orders",
		Properties: []*model.Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "CustomerId", Column: "customer_id", Type: "int"},
			{Name: "Total", Column: "total", Type: "float"},
		},
		Key: []string{"Id"},
		Navigations: []*model.Navigation{
			{Name: "Customer", Target: "Customer", ForeignKey: []string{"CustomerId"}, DependentToPrincipal: true},
			{Name: "Items", Target: "OrderItem", ForeignKey: []string{"OrderId"}, Collection: true},
		},
	}
	item := &model.EntityType{
		Name:  "OrderItem",
		Table: "order_items",
		Properties: []*model.Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "OrderId", Column: "order_id", Type: "int"},
			{Name: "Product", Column: "product", Type: "string"},
			{Name: "Quantity", Column: "quantity", Type: "int"},
		},
		Key: []string{"Id"},
		Navigations: []*model.Navigation{
			{Name: "Order", Target: "Order", ForeignKey: []string{"OrderId"}, DependentToPrincipal: true},
		},
	}
	employee := &model.EntityType{
		Name:  "Employee",
		Table: "employees",
		Properties: []*model.Property{
			{Name: "Id", Column: "id", Type: "int"},
			{Name: "Name", Column: "name", Type: "string"},
			{Name: "ManagerId", Column: "manager_id", Type: "int", Nullable: true},
		},
		Key: []string{"Id"},
		Navigations: []*model.Navigation{
			{Name: "Manager", Target: "Employee", ForeignKey: []string{"ManagerId"}, DependentToPrincipal: true, Optional: true},
		},
	}
	return model.NewModel(customer, order, item, employee)
}
