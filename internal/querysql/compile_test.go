package querysql

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-orm/kestrel/internal/expand"
	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/queryir"
	"github.com/kestrel-orm/kestrel/internal/testutil"
)

func compileExpanded(t *testing.T, m *model.Model, n queryir.Node) (string, []any) {
	t.Helper()
	ex := &expand.Expander{Model: m, Gen: &expand.SeqGenerator{}}
	expanded, err := ex.Expand(n)
	require.NoError(t, err)
	sqlText, params, err := NewSQLCompiler(m).Compile(expanded)
	require.NoError(t, err)
	return sqlText, params
}

func entityRef(m *model.Model, name string) *queryir.EntityRef {
	return &queryir.EntityRef{Entity: m.Entity(name)}
}

func str() *queryir.Scalar { return &queryir.Scalar{Name: "string"} }

func intType() *queryir.Scalar { return &queryir.Scalar{Name: "int"} }

func strConst(v string) *queryir.Constant {
	return &queryir.Constant{Value: v, Type: str()}
}

// orders.Where(o => o.Customer.Name == name)
func whereCustomerName(m *model.Model, name string) queryir.Node {
	o := &queryir.Parameter{ID: "o", Name: "o", Type: entityRef(m, "Order")}
	body := &queryir.Binary{
		Op: queryir.OpEq,
		Left: &queryir.Member{
			Expr: &queryir.Member{Expr: o, Name: "Customer", Type: entityRef(m, "Customer")},
			Name: "Name", Type: str(),
		},
		Right: strConst(name),
	}
	return &queryir.Where{
		Source:    &queryir.EntitySource{Entity: m.Entity("Order")},
		Predicate: &queryir.Lambda{Params: []*queryir.Parameter{o}, Body: body},
	}
}

// employees.Where(e => e.Manager.Name == name)
func whereManagerName(m *model.Model, name string) queryir.Node {
	p := &queryir.Parameter{ID: "e", Name: "e", Type: entityRef(m, "Employee")}
	body := &queryir.Binary{
		Op: queryir.OpEq,
		Left: &queryir.Member{
			Expr: &queryir.Member{Expr: p, Name: "Manager", Type: entityRef(m, "Employee")},
			Name: "Name", Type: str(),
		},
		Right: strConst(name),
	}
	return &queryir.Where{
		Source:    &queryir.EntitySource{Entity: m.Entity("Employee")},
		Predicate: &queryir.Lambda{Params: []*queryir.Parameter{p}, Body: body},
	}
}

// customers.SelectMany(c => c.Orders)
func flattenOrders(m *model.Model) queryir.Node {
	c := &queryir.Parameter{ID: "c", Name: "c", Type: entityRef(m, "Customer")}
	coll := &queryir.Lambda{
		Params: []*queryir.Parameter{c},
		Body: &queryir.Member{Expr: c, Name: "Orders",
			Type: &queryir.SequenceType{Elem: entityRef(m, "Order")}},
	}
	return &queryir.SelectMany{Source: &queryir.EntitySource{Entity: m.Entity("Customer")}, Collection: coll}
}

// orders.Select(o => o.Customer).First()
func firstCustomer(m *model.Model) queryir.Node {
	o := &queryir.Parameter{ID: "o", Name: "o", Type: entityRef(m, "Order")}
	sel := &queryir.Lambda{
		Params: []*queryir.Parameter{o},
		Body:   &queryir.Member{Expr: o, Name: "Customer", Type: entityRef(m, "Customer")},
	}
	return &queryir.First{Source: &queryir.Select{
		Source:   &queryir.EntitySource{Entity: m.Entity("Order")},
		Selector: sel,
	}}
}

func TestCompileRequiredReference(t *testing.T) {
	m := testutil.SalesModel()
	sqlText, params := compileExpanded(t, m, whereCustomerName(m, "Ada"))

	assert.Equal(t,
		"SELECT t0.id, t0.customer_id, t0.total"+
			" FROM orders AS t0"+
			" INNER JOIN customers AS t1 ON t0.customer_id = t1.id"+
			" WHERE (t1.name = ?)"+
			" ORDER BY t0.id COLLATE BINARY",
		sqlText)
	assert.Equal(t, []any{"Ada"}, params)
}

func TestCompileOptionalReferenceLeftJoin(t *testing.T) {
	m := testutil.SalesModel()
	sqlText, params := compileExpanded(t, m, whereManagerName(m, "Boss"))

	assert.Equal(t,
		"SELECT t0.id, t0.name, t0.manager_id"+
			" FROM employees AS t0"+
			" LEFT JOIN employees AS t1 ON t0.manager_id = t1.id"+
			" WHERE (t1.name = ?)"+
			" ORDER BY t0.id COLLATE BINARY",
		sqlText)
	assert.Equal(t, []any{"Boss"}, params)
}

func TestCompileCollectionFlatten(t *testing.T) {
	m := testutil.SalesModel()
	sqlText, params := compileExpanded(t, m, flattenOrders(m))

	assert.Equal(t,
		"SELECT t1.id, t1.customer_id, t1.total"+
			" FROM customers AS t0"+
			" INNER JOIN orders AS t1 ON (t1.customer_id = t0.id)"+
			" ORDER BY t1.id COLLATE BINARY",
		sqlText)
	assert.Empty(t, params)
}

func TestCompileProjectionFirst(t *testing.T) {
	m := testutil.SalesModel()
	sqlText, params := compileExpanded(t, m, firstCustomer(m))

	assert.Equal(t,
		"SELECT t1.id, t1.name, t1.city"+
			" FROM orders AS t0"+
			" INNER JOIN customers AS t1 ON t0.customer_id = t1.id"+
			" ORDER BY t1.id COLLATE BINARY"+
			" LIMIT 1",
		sqlText)
	assert.Empty(t, params)
}

func TestCompileTerminalOperators(t *testing.T) {
	m := testutil.SalesModel()
	customers := func() queryir.Node {
		return &queryir.EntitySource{Entity: m.Entity("Customer")}
	}
	cityOf := func() *queryir.Lambda {
		c := &queryir.Parameter{ID: "c", Name: "c", Type: entityRef(m, "Customer")}
		return &queryir.Lambda{
			Params: []*queryir.Parameter{c},
			Body:   &queryir.Member{Expr: c, Name: "City", Type: queryir.AsNullable(str())},
		}
	}
	nameEq := func(v string) *queryir.Lambda {
		c := &queryir.Parameter{ID: "c", Name: "c", Type: entityRef(m, "Customer")}
		return &queryir.Lambda{
			Params: []*queryir.Parameter{c},
			Body: &queryir.Binary{
				Op:    queryir.OpEq,
				Left:  &queryir.Member{Expr: c, Name: "Name", Type: str()},
				Right: strConst(v),
			},
		}
	}
	intConst := func(v int) *queryir.Constant {
		return &queryir.Constant{Value: v, Type: intType()}
	}

	tests := []struct {
		name    string
		node    queryir.Node
		wantSQL string
		params  []any
	}{
		{
			name:    "distinct scalar projection",
			node:    &queryir.Distinct{Source: &queryir.Select{Source: customers(), Selector: cityOf()}},
			wantSQL: "SELECT DISTINCT t0.city FROM customers AS t0",
		},
		{
			name: "skip and take paginate",
			node: &queryir.Take{
				Source: &queryir.Skip{Source: customers(), Count: intConst(10)},
				Count:  intConst(5),
			},
			wantSQL: "SELECT t0.id, t0.name, t0.city FROM customers AS t0" +
				" ORDER BY t0.id COLLATE BINARY LIMIT ? OFFSET ?",
			params: []any{10, 5},
		},
		{
			name:    "single over-fetches one row",
			node:    &queryir.Single{Source: customers()},
			wantSQL: "SELECT t0.id, t0.name, t0.city FROM customers AS t0 ORDER BY t0.id COLLATE BINARY LIMIT 2",
		},
		{
			name:    "any wraps in exists",
			node:    &queryir.Any{Source: &queryir.Where{Source: customers(), Predicate: nameEq("Ada")}},
			wantSQL: "SELECT EXISTS(SELECT 1 FROM customers AS t0 WHERE (t0.name = ?) LIMIT 1)",
			params:  []any{"Ada"},
		},
		{
			name: "sort keys precede the tiebreaker",
			node: &queryir.OrderBy{Source: customers(), Key: cityOf(), Descending: true},
			wantSQL: "SELECT t0.id, t0.name, t0.city FROM customers AS t0" +
				" ORDER BY t0.city DESC, t0.id COLLATE BINARY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlText, params, err := NewSQLCompiler(m).Compile(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sqlText)
			if tt.params == nil {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	m := testutil.SalesModel()
	c := NewSQLCompiler(m)

	_, _, err := c.Compile(nil)
	assert.ErrorContains(t, err, "cannot compile nil query")

	_, _, err = c.Compile(&queryir.OfType{
		Source: &queryir.EntitySource{Entity: m.Entity("Customer")},
		Target: entityRef(m, "Customer"),
	})
	assert.ErrorContains(t, err, "unsupported operator")
}

func openSalesDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, city TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, total REAL NOT NULL)`,
		`CREATE TABLE order_items (id INTEGER PRIMARY KEY, order_id INTEGER NOT NULL, product TEXT NOT NULL, quantity INTEGER NOT NULL)`,
		`CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT NOT NULL, manager_id INTEGER)`,
		`INSERT INTO customers VALUES (1, 'Ada', 'Paris'), (2, 'Grace', NULL)`,
		`INSERT INTO orders VALUES (10, 1, 99.5), (11, 2, 15.0), (12, 1, 42.0)`,
		`INSERT INTO order_items VALUES (100, 10, 'Widget', 3), (101, 11, 'Gadget', 1)`,
		`INSERT INTO employees VALUES (1, 'Boss', NULL), (2, 'Dev', 1), (3, 'Intern', 2)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return db
}

func TestExecuteAgainstSQLite(t *testing.T) {
	m := testutil.SalesModel()
	db := openSalesDB(t)

	t.Run("orders filtered through required reference", func(t *testing.T) {
		sqlText, params := compileExpanded(t, m, whereCustomerName(m, "Ada"))
		rows, err := db.Query(sqlText, params...)
		require.NoError(t, err)
		defer rows.Close()

		var ids []int
		for rows.Next() {
			var id, custID int
			var total float64
			require.NoError(t, rows.Scan(&id, &custID, &total))
			assert.Equal(t, 1, custID)
			ids = append(ids, id)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, []int{10, 12}, ids)
	})

	t.Run("employees filtered through optional reference", func(t *testing.T) {
		sqlText, params := compileExpanded(t, m, whereManagerName(m, "Boss"))
		rows, err := db.Query(sqlText, params...)
		require.NoError(t, err)
		defer rows.Close()

		var names []string
		for rows.Next() {
			var id int
			var name string
			var managerID sql.NullInt64
			require.NoError(t, rows.Scan(&id, &name, &managerID))
			names = append(names, name)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, []string{"Dev"}, names)
	})

	t.Run("collection flatten yields every order", func(t *testing.T) {
		sqlText, params := compileExpanded(t, m, flattenOrders(m))
		rows, err := db.Query(sqlText, params...)
		require.NoError(t, err)
		defer rows.Close()

		var ids []int
		for rows.Next() {
			var id, custID int
			var total float64
			require.NoError(t, rows.Scan(&id, &custID, &total))
			ids = append(ids, id)
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, []int{10, 11, 12}, ids)
	})

	t.Run("projection to related entity", func(t *testing.T) {
		sqlText, params := compileExpanded(t, m, firstCustomer(m))
		var id int
		var name string
		var city sql.NullString
		require.NoError(t, db.QueryRow(sqlText, params...).Scan(&id, &name, &city))
		assert.Equal(t, "Ada", name)
	})
}
