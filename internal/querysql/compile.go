// Package querysql compiles expanded operator trees to parameterized
// SQL for SQLite.
//
// The input is the physical output of the expansion pass: navigation
// accesses are already joins and every expression is a literal
// member-access chain through composite tuples. The compiler maps each
// entity source to a table alias, tuple shapes to alias environments,
// and the group-join/flatten/default-if-empty pattern back to a LEFT
// JOIN.
package querysql

import (
	"fmt"
	"strings"

	"github.com/kestrel-orm/kestrel/internal/model"
	"github.com/kestrel-orm/kestrel/internal/navtree"
	"github.com/kestrel-orm/kestrel/internal/queryir"
)

// SQLCompiler compiles expanded operator trees to parameterized SQL.
//
// All queries include ORDER BY with a deterministic key-column
// tiebreaker, and all constants are parameterized (never interpolated).
type SQLCompiler struct {
	Model *model.Model

	aliases int
}

// NewSQLCompiler creates a compiler over the given model.
func NewSQLCompiler(m *model.Model) *SQLCompiler {
	return &SQLCompiler{Model: m}
}

// Compile converts an expanded operator tree to a SQL statement and
// its positional parameters.
func (c *SQLCompiler) Compile(n queryir.Node) (string, []any, error) {
	if n == nil {
		return "", nil, fmt.Errorf("querysql: cannot compile nil query")
	}
	st, err := c.walk(n)
	if err != nil {
		return "", nil, err
	}
	if !st.exists {
		// Row order is otherwise unspecified; key columns break ties so
		// results are reproducible across runs.
		st.orderBy = append(st.orderBy, stableOrderKeys(st.shape)...)
	}
	return st.render(), st.params, nil
}

// stableOrderKeys lists the key columns of every table in the output
// shape as tiebreaker ordering terms. Scalar projections have no shape
// and get no tiebreaker.
func stableOrderKeys(sh shape) []string {
	switch x := sh.(type) {
	case *tableShape:
		keys := x.entity.KeyProperties()
		terms := make([]string, len(keys))
		for i, p := range keys {
			terms[i] = x.alias + "." + p.Column + " COLLATE BINARY"
		}
		return terms
	case *tupleShape:
		return append(stableOrderKeys(x.outer), stableOrderKeys(x.inner)...)
	}
	return nil
}

// shape locates table aliases inside the current bound variable's
// composite tuple structure.
type shape interface{ isShape() }

type tableShape struct {
	alias  string
	entity *model.EntityType
}

type tupleShape struct {
	outer shape
	inner shape
}

func (*tableShape) isShape() {}
func (*tupleShape) isShape() {}

// stmt is one SELECT statement under construction.
type stmt struct {
	columns  []string
	distinct bool
	from     string
	joins    []string
	where    []string
	orderBy  []string
	limit    string
	offset   string
	params   []any
	exists   bool

	// shape of the statement's row variable; env maps free parameter
	// IDs (subquery correlation) to their shapes.
	shape shape
	env   map[string]shape
}

func (s *stmt) render() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	cols := s.columns
	if len(cols) == 0 {
		cols = shapeColumns(s.shape)
	}
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.from)
	for _, j := range s.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.where, " AND "))
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.orderBy, ", "))
	}
	if s.limit != "" {
		b.WriteString(" LIMIT ")
		b.WriteString(s.limit)
	}
	if s.offset != "" {
		if s.limit == "" {
			// SQLite requires LIMIT before OFFSET.
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET ")
		b.WriteString(s.offset)
	}
	sql := b.String()
	if s.exists {
		sql = "SELECT EXISTS(" + sql + ")"
	}
	return sql
}

func (c *SQLCompiler) nextAlias() string {
	a := fmt.Sprintf("t%d", c.aliases)
	c.aliases++
	return a
}

func (c *SQLCompiler) walk(n queryir.Node) (*stmt, error) {
	switch x := n.(type) {
	case *queryir.EntitySource:
		alias := c.nextAlias()
		return &stmt{
			from:  fmt.Sprintf("%s AS %s", x.Entity.Table, alias),
			shape: &tableShape{alias: alias, entity: x.Entity},
			env:   map[string]shape{},
		}, nil

	case *queryir.MaterializeCollection:
		return c.walk(x.Source)

	case *queryir.Where:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		cond, err := c.expr(x.Predicate.Body, lambdaEnv(st, x.Predicate), &st.params)
		if err != nil {
			return nil, err
		}
		st.where = append(st.where, cond)
		return st, nil

	case *queryir.Select:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		cols, sh, err := c.projection(x.Selector.Body, lambdaEnv(st, x.Selector), &st.params)
		if err != nil {
			return nil, err
		}
		st.columns = cols
		st.shape = sh
		return st, nil

	case *queryir.OrderBy:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		key, err := c.expr(x.Key.Body, lambdaEnv(st, x.Key), &st.params)
		if err != nil {
			return nil, err
		}
		st.orderBy = []string{key + direction(x.Descending)}
		return st, nil

	case *queryir.ThenBy:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		key, err := c.expr(x.Key.Body, lambdaEnv(st, x.Key), &st.params)
		if err != nil {
			return nil, err
		}
		st.orderBy = append(st.orderBy, key+direction(x.Descending))
		return st, nil

	case *queryir.Join:
		return c.walkJoin(x)

	case *queryir.SelectMany:
		return c.walkSelectMany(x)

	case *queryir.Distinct:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		st.distinct = true
		return st, nil

	case *queryir.Skip:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		off, err := c.countExpr(x.Count, st)
		if err != nil {
			return nil, err
		}
		st.offset = off
		return st, nil

	case *queryir.Take:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		lim, err := c.countExpr(x.Count, st)
		if err != nil {
			return nil, err
		}
		st.limit = lim
		return st, nil

	case *queryir.First:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		st.limit = "1"
		return st, nil

	case *queryir.Single:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		// Two rows are enough to prove non-uniqueness to the caller.
		st.limit = "2"
		return st, nil

	case *queryir.Any:
		st, err := c.walk(x.Source)
		if err != nil {
			return nil, err
		}
		st.columns = []string{"1"}
		st.limit = "1"
		st.exists = true
		return st, nil

	case *queryir.Tracking:
		// Change tracking has no SQL surface.
		return c.walk(x.Source)

	default:
		return nil, fmt.Errorf("querysql: unsupported operator %T", n)
	}
}

// walkJoin compiles an inner equi-join whose inner side is a plain
// entity source and whose result combinator pairs the two variables,
// which is the shape the expansion pass emits.
func (c *SQLCompiler) walkJoin(x *queryir.Join) (*stmt, error) {
	st, err := c.walk(x.Outer)
	if err != nil {
		return nil, err
	}
	src, ok := innerEntity(x.Inner)
	if !ok {
		return nil, fmt.Errorf("querysql: join inner side must be an entity source, got %T", x.Inner)
	}
	alias := c.nextAlias()
	inner := &tableShape{alias: alias, entity: src.Entity}

	lhs, err := c.keyExpr(x.OuterKey, st.shape, st)
	if err != nil {
		return nil, err
	}
	rhs, err := c.keyExpr(x.InnerKey, inner, st)
	if err != nil {
		return nil, err
	}
	st.joins = append(st.joins, fmt.Sprintf("INNER JOIN %s AS %s ON %s = %s", src.Entity.Table, alias, lhs, rhs))

	sh, err := combinatorShape(x.Result, st.shape, inner)
	if err != nil {
		return nil, err
	}
	st.shape = sh
	return st, nil
}

// walkSelectMany handles the two flatten shapes the expansion pass
// produces: the left-outer-join emulation over a group join, and the
// correlated-subquery collection flatten.
func (c *SQLCompiler) walkSelectMany(x *queryir.SelectMany) (*stmt, error) {
	if gj, ok := x.Source.(*queryir.GroupJoin); ok && isGroupFlatten(x.Collection) {
		return c.walkLeftJoin(x, gj)
	}

	st, err := c.walk(x.Source)
	if err != nil {
		return nil, err
	}
	sub, ok := x.Collection.Body.(*queryir.Subquery)
	if !ok {
		return nil, fmt.Errorf("querysql: unsupported flatten collection %T", x.Collection.Body)
	}
	where, ok := sub.Node.(*queryir.Where)
	if !ok {
		return nil, fmt.Errorf("querysql: flatten subquery must be a filtered entity source, got %T", sub.Node)
	}
	src, ok := innerEntity(where.Source)
	if !ok {
		return nil, fmt.Errorf("querysql: flatten subquery source must be an entity source, got %T", where.Source)
	}

	alias := c.nextAlias()
	inner := &tableShape{alias: alias, entity: src.Entity}

	env := map[string]shape{
		x.Collection.Params[0].ID:    st.shape,
		where.Predicate.Params[0].ID: inner,
	}
	for id, sh := range st.env {
		env[id] = sh
	}
	on, err := c.expr(where.Predicate.Body, env, &st.params)
	if err != nil {
		return nil, err
	}
	st.joins = append(st.joins, fmt.Sprintf("INNER JOIN %s AS %s ON %s", src.Entity.Table, alias, on))

	sh, err := combinatorShape(x.Result, st.shape, inner)
	if err != nil {
		return nil, err
	}
	st.shape = sh
	return st, nil
}

// walkLeftJoin lowers group-join + flatten + default-if-empty back to
// a LEFT JOIN.
func (c *SQLCompiler) walkLeftJoin(x *queryir.SelectMany, gj *queryir.GroupJoin) (*stmt, error) {
	st, err := c.walk(gj.Outer)
	if err != nil {
		return nil, err
	}
	src, ok := innerEntity(gj.Inner)
	if !ok {
		return nil, fmt.Errorf("querysql: group join inner side must be an entity source, got %T", gj.Inner)
	}
	alias := c.nextAlias()
	inner := &tableShape{alias: alias, entity: src.Entity}

	lhs, err := c.keyExpr(gj.OuterKey, st.shape, st)
	if err != nil {
		return nil, err
	}
	rhs, err := c.keyExpr(gj.InnerKey, inner, st)
	if err != nil {
		return nil, err
	}
	st.joins = append(st.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s", src.Entity.Table, alias, lhs, rhs))

	// The flattened variable is tuple((outer, group), row). The group
	// itself is never read after the flatten, so its slot maps to the
	// joined table.
	st.shape = &tupleShape{
		outer: &tupleShape{outer: st.shape, inner: inner},
		inner: inner,
	}
	return st, nil
}

// isGroupFlatten recognizes the collection selector the expansion pass
// emits for optional navigations: pt => subquery(defaultifempty(
// exprsource(pt.inner))).
func isGroupFlatten(coll *queryir.Lambda) bool {
	sub, ok := coll.Body.(*queryir.Subquery)
	if !ok {
		return false
	}
	die, ok := sub.Node.(*queryir.DefaultIfEmpty)
	if !ok {
		return false
	}
	es, ok := die.Source.(*queryir.ExprSource)
	if !ok {
		return false
	}
	tf, ok := es.Expr.(*queryir.TupleField)
	if !ok || tf.Side != navtree.SideInner {
		return false
	}
	p, ok := tf.Expr.(*queryir.Parameter)
	return ok && p.ID == coll.Params[0].ID
}

func innerEntity(n queryir.Node) (*queryir.EntitySource, bool) {
	for {
		switch x := n.(type) {
		case *queryir.EntitySource:
			return x, true
		case *queryir.MaterializeCollection:
			n = x.Source
		default:
			return nil, false
		}
	}
}

// combinatorShape derives the post-join variable shape from the result
// combinator. The expansion pass emits pair combinators or the bare
// inner variable.
func combinatorShape(result *queryir.Lambda, outer, inner shape) (shape, error) {
	if result == nil {
		return inner, nil
	}
	switch body := result.Body.(type) {
	case *queryir.NewTuple:
		return &tupleShape{outer: outer, inner: inner}, nil
	case *queryir.Parameter:
		switch body.ID {
		case result.Params[0].ID:
			return outer, nil
		case result.Params[1].ID:
			return inner, nil
		}
	}
	return nil, fmt.Errorf("querysql: unsupported join combinator %s", queryir.RenderExpr(result.Body))
}

func lambdaEnv(st *stmt, l *queryir.Lambda) map[string]shape {
	env := make(map[string]shape, len(st.env)+1)
	for id, sh := range st.env {
		env[id] = sh
	}
	env[l.Params[0].ID] = st.shape
	return env
}

func (c *SQLCompiler) countExpr(e queryir.Expr, st *stmt) (string, error) {
	con, ok := e.(*queryir.Constant)
	if !ok {
		return "", fmt.Errorf("querysql: unsupported count expression %T", e)
	}
	st.params = append(st.params, con.Value)
	return "?", nil
}

// keyExpr compiles a join key selector against the given side's shape.
func (c *SQLCompiler) keyExpr(l *queryir.Lambda, sh shape, st *stmt) (string, error) {
	env := make(map[string]shape, len(st.env)+1)
	for id, s := range st.env {
		env[id] = s
	}
	env[l.Params[0].ID] = sh
	return c.expr(l.Body, env, &st.params)
}

// expr compiles a physical expression to a SQL fragment. Values are
// always parameterized.
func (c *SQLCompiler) expr(e queryir.Expr, env map[string]shape, params *[]any) (string, error) {
	switch x := e.(type) {
	case *queryir.Member:
		base, err := resolveShape(x.Expr, env)
		if err != nil {
			return "", err
		}
		tbl, ok := base.(*tableShape)
		if !ok {
			return "", fmt.Errorf("querysql: member access %s on non-entity shape", x.Name)
		}
		p := tbl.entity.Property(x.Name)
		if p == nil {
			return "", fmt.Errorf("querysql: entity %s has no property %s", tbl.entity.Name, x.Name)
		}
		return tbl.alias + "." + p.Column, nil

	case *queryir.Constant:
		*params = append(*params, x.Value)
		return "?", nil

	case *queryir.Binary:
		l, err := c.expr(x.Left, env, params)
		if err != nil {
			return "", err
		}
		r, err := c.expr(x.Right, env, params)
		if err != nil {
			return "", err
		}
		op, err := sqlOp(x.Op)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, op, r), nil

	case *queryir.Convert:
		// SQLite's dynamic typing makes the nullable lift a no-op.
		return c.expr(x.Expr, env, params)

	case *queryir.NewKey:
		parts := make([]string, len(x.Parts))
		for i, p := range x.Parts {
			s, err := c.expr(p, env, params)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ", ") + ")", nil

	default:
		return "", fmt.Errorf("querysql: unsupported expression %T", e)
	}
}

// resolveShape walks a parameter/tuple-field chain down to its shape.
func resolveShape(e queryir.Expr, env map[string]shape) (shape, error) {
	switch x := e.(type) {
	case *queryir.Parameter:
		sh, ok := env[x.ID]
		if !ok {
			return nil, fmt.Errorf("querysql: unbound variable %s", x.ID)
		}
		return sh, nil
	case *queryir.TupleField:
		base, err := resolveShape(x.Expr, env)
		if err != nil {
			return nil, err
		}
		tt, ok := base.(*tupleShape)
		if !ok {
			return nil, fmt.Errorf("querysql: tuple access on non-tuple shape")
		}
		if x.Side == navtree.SideInner {
			return tt.inner, nil
		}
		return tt.outer, nil
	}
	return nil, fmt.Errorf("querysql: unsupported shape expression %T", e)
}

// projection compiles a select body to its column list and output
// shape. Entity-valued projections expand to the entity's columns.
func (c *SQLCompiler) projection(body queryir.Expr, env map[string]shape, params *[]any) ([]string, shape, error) {
	switch body.(type) {
	case *queryir.Parameter, *queryir.TupleField:
		sh, err := resolveShape(body, env)
		if err == nil {
			return shapeColumns(sh), sh, nil
		}
	}
	if nt, ok := body.(*queryir.NewTuple); ok {
		oCols, oSh, err := c.projection(nt.Outer, env, params)
		if err != nil {
			return nil, nil, err
		}
		iCols, iSh, err := c.projection(nt.Inner, env, params)
		if err != nil {
			return nil, nil, err
		}
		return append(oCols, iCols...), &tupleShape{outer: oSh, inner: iSh}, nil
	}
	col, err := c.expr(body, env, params)
	if err != nil {
		return nil, nil, err
	}
	return []string{col}, nil, nil
}

// shapeColumns lists the output columns of a shape: every property of
// every table, in shape order.
func shapeColumns(sh shape) []string {
	switch x := sh.(type) {
	case *tableShape:
		cols := make([]string, len(x.entity.Properties))
		for i, p := range x.entity.Properties {
			cols[i] = x.alias + "." + p.Column
		}
		return cols
	case *tupleShape:
		return append(shapeColumns(x.outer), shapeColumns(x.inner)...)
	}
	return nil
}

func sqlOp(op queryir.BinaryOp) (string, error) {
	switch op {
	case queryir.OpEq:
		return "=", nil
	case queryir.OpNe:
		return "<>", nil
	case queryir.OpLt:
		return "<", nil
	case queryir.OpLe:
		return "<=", nil
	case queryir.OpGt:
		return ">", nil
	case queryir.OpGe:
		return ">=", nil
	case queryir.OpAnd:
		return "AND", nil
	case queryir.OpOr:
		return "OR", nil
	}
	return "", fmt.Errorf("querysql: unsupported operator %q", op)
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return ""
}
