package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nStangl/tabledb/ast"
	"github.com/nStangl/tabledb/server/catalog"
	"github.com/nStangl/tabledb/server/store"
)

func openEngine(t *testing.T, dir string) (*Engine, *catalog.Catalog) {
	t.Helper()

	c, err := catalog.Open(dir, store.Options{})
	if err != nil {
		t.Fatalf("catalog.Open(%s) failed: %v", dir, err)
	}

	t.Cleanup(func() { _ = c.Close() })

	return New(c), c
}

func mustExec(t *testing.T, e *Engine, s ast.Statement) string {
	t.Helper()

	res, err := e.Execute(s)
	if err != nil {
		t.Fatalf("Execute(%T %s) failed: %v", s, s.Target(), err)
	}

	return res
}

func mustQuery(t *testing.T, e *Engine, s *ast.Select) *ResultSet {
	t.Helper()

	rs, err := e.Query(s)
	if err != nil {
		t.Fatalf("Query(%s) failed: %v", s.Table, err)
	}

	return rs
}

func texts(rs *ResultSet) [][]string {
	out := make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = v.String()
		}
	}

	return out
}

func create(name string, columns ...string) *ast.CreateTable {
	defs := make([]ast.ColumnDef, len(columns))
	for i, c := range columns {
		defs[i] = ast.ColumnDef{Name: c, Type: "TEXT"}
	}

	return &ast.CreateTable{Table: name, Columns: defs}
}

func seedJoinTables(t *testing.T, e *Engine) {
	t.Helper()

	mustExec(t, e, create("users", "id", "name"))
	mustExec(t, e, create("orders", "id", "user_id", "total"))

	mustExec(t, e, &ast.Insert{Table: "users", Columns: []string{"id", "name"}, Values: [][]string{
		{"1", "alice"}, {"2", "bob"}, {"3", "carol"},
	}})
	mustExec(t, e, &ast.Insert{Table: "orders", Columns: []string{"id", "user_id", "total"}, Values: [][]string{
		{"1", "1", "10"}, {"2", "1", "20"}, {"3", "2", "5"}, {"4", "9", "7"},
	}})
}

func TestSelectWhereNumeric(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())

	mustExec(t, e, create("users", "name", "age"))
	mustExec(t, e, &ast.Insert{Table: "users", Columns: []string{"name", "age"}, Values: [][]string{{"Alice", "30"}}})

	rs := mustQuery(t, e, &ast.Select{
		Columns: []ast.ColumnExpr{ast.Col("name")},
		Table:   "users",
		Where:   &ast.WhereClause{Column: "age", Operator: ast.Gt, Value: "21"},
	})

	if got, expected := texts(rs), [][]string{{"Alice"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("rows = %v but expected %v", got, expected)
	}

	if got, expected := rs.String(), "name\n----\nAlice\n"; got != expected {
		t.Errorf("String() = %q but expected %q", got, expected)
	}
}

func TestSumOverImplicitlyCreatedTable(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())

	res := mustExec(t, e, &ast.Insert{Table: "orders", Columns: []string{"id", "total"}, Values: [][]string{{"1", "100"}, {"2", "50"}}})
	if expected := "2 row(s) inserted successfully"; res != expected {
		t.Errorf("Execute(insert) = %q but expected %q", res, expected)
	}

	rs := mustQuery(t, e, &ast.Select{Columns: []ast.ColumnExpr{ast.Agg(ast.Sum, "total")}, Table: "orders"})

	if got, expected := texts(rs), [][]string{{"150"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("rows = %v but expected %v", got, expected)
	}

	if expected := []string{"SUM(total)"}; !reflect.DeepEqual(rs.Columns, expected) {
		t.Errorf("columns = %v but expected %v", rs.Columns, expected)
	}
}

func TestInsertUpdateDeleteSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	e, c := openEngine(t, dir)

	mustExec(t, e, create("users", "name", "age"))
	mustExec(t, e, &ast.Insert{Table: "users", Columns: []string{"name", "age"}, Values: [][]string{{"Alice", "30"}}})

	if res, expected := mustExec(t, e, &ast.Update{
		Table:       "users",
		Assignments: []ast.Assignment{{Column: "age", Value: "31"}},
		Where:       &ast.WhereClause{Column: "name", Operator: ast.Eq, Value: "Alice"},
	}), "Updated 1 rows"; res != expected {
		t.Errorf("Execute(update) = %q but expected %q", res, expected)
	}

	if res, expected := mustExec(t, e, &ast.Delete{Table: "users"}), "Deleted 1 rows"; res != expected {
		t.Errorf("Execute(delete) = %q but expected %q", res, expected)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	s, err := store.Open(dir, "users", store.Options{})
	if err != nil {
		t.Fatal(err)
	}

	kvs, err := s.All()
	if err != nil {
		t.Fatal(err)
	}

	if len(kvs) != 0 {
		t.Errorf("All() = %v but expected no rows", kvs)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	e, _ = openEngine(t, dir)

	if res := mustExec(t, e, &ast.Select{Columns: []ast.ColumnExpr{ast.Star()}, Table: "users"}); res != noRows {
		t.Errorf("Execute(select) = %q but expected %q", res, noRows)
	}
}

func TestRowsRecoveredAfterRestart(t *testing.T) {
	dir := t.TempDir()
	e, c := openEngine(t, dir)

	mustExec(t, e, create("users", "name", "age"))
	mustExec(t, e, &ast.Insert{Table: "users", Columns: []string{"name", "age"}, Values: [][]string{{"Alice", "30"}, {"Bob", "25"}}})

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	e, _ = openEngine(t, dir)

	rs := mustQuery(t, e, &ast.Select{Columns: []ast.ColumnExpr{ast.Star()}, Table: "users"})

	if expected := []string{"name", "age"}; !reflect.DeepEqual(rs.Columns, expected) {
		t.Errorf("columns = %v but expected %v", rs.Columns, expected)
	}

	if got, expected := texts(rs), [][]string{{"Alice", "30"}, {"Bob", "25"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("rows = %v but expected %v", got, expected)
	}
}

func TestJoinRowCounts(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())
	seedJoinTables(t, e)

	tests := []struct {
		kind     ast.JoinKind
		expected int
	}{
		{ast.Inner, 3},
		{ast.Left, 4},
		{ast.Right, 4},
		{ast.Full, 5},
		{ast.Cross, 12},
	}

	for _, test := range tests {
		join := &ast.JoinClause{Kind: test.kind, Table: "orders"}
		if test.kind != ast.Cross {
			join.LeftKey, join.RightKey = "users.id", "orders.user_id"
		}

		rs := mustQuery(t, e, &ast.Select{Columns: []ast.ColumnExpr{ast.Star()}, Table: "users", Join: join})

		if len(rs.Rows) != test.expected {
			t.Errorf("%s JOIN returned %d rows but expected %d", test.kind, len(rs.Rows), test.expected)
		}
	}
}

func TestLeftJoinPadsUnmatchedRows(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())
	seedJoinTables(t, e)

	rs := mustQuery(t, e, &ast.Select{
		Columns: []ast.ColumnExpr{ast.Col("name"), ast.Col("orders.total")},
		Table:   "users",
		Join:    &ast.JoinClause{Kind: ast.Left, Table: "orders", LeftKey: "users.id", RightKey: "orders.user_id"},
		OrderBy: &ast.OrderByClause{Column: "name"},
	})

	expected := [][]string{{"alice", "10"}, {"alice", "20"}, {"bob", "5"}, {"carol", "NULL"}}
	if got := texts(rs); !reflect.DeepEqual(got, expected) {
		t.Errorf("rows = %v but expected %v", got, expected)
	}

	if !rs.Rows[3][1].IsNull() {
		t.Errorf("padded column = %v but expected NULL", rs.Rows[3][1])
	}
}

func TestJoinStarColumns(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())
	seedJoinTables(t, e)

	rs := mustQuery(t, e, &ast.Select{
		Columns: []ast.ColumnExpr{ast.Star()},
		Table:   "users",
		Join:    &ast.JoinClause{Kind: ast.Inner, Table: "orders", LeftKey: "users.id", RightKey: "orders.user_id"},
	})

	expected := []string{"id", "name", "orders.id", "orders.user_id", "orders.total"}
	if !reflect.DeepEqual(rs.Columns, expected) {
		t.Errorf("columns = %v but expected %v", rs.Columns, expected)
	}
}

func TestGroupByAndHaving(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())
	seedJoinTables(t, e)

	sel := &ast.Select{
		Columns: []ast.ColumnExpr{ast.Col("user_id"), ast.Agg(ast.Count, "*"), ast.Agg(ast.Sum, "total")},
		Table:   "orders",
		GroupBy: []string{"user_id"},
	}

	rs := mustQuery(t, e, sel)

	expected := [][]string{{"1", "2", "30"}, {"2", "1", "5"}, {"9", "1", "7"}}
	if got := texts(rs); !reflect.DeepEqual(got, expected) {
		t.Errorf("grouped rows = %v but expected %v", got, expected)
	}

	sel.Having = &ast.HavingClause{Expr: ast.Agg(ast.Count, "*"), Operator: ast.Gt, Value: "1"}

	rs = mustQuery(t, e, sel)

	if got, expected := texts(rs), [][]string{{"1", "2", "30"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("rows after HAVING = %v but expected %v", got, expected)
	}
}

func TestHavingOnUnprojectedAggregate(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())
	seedJoinTables(t, e)

	rs := mustQuery(t, e, &ast.Select{
		Columns: []ast.ColumnExpr{ast.Col("user_id")},
		Table:   "orders",
		GroupBy: []string{"user_id"},
		Having:  &ast.HavingClause{Expr: ast.Agg(ast.Max, "total"), Operator: ast.Lt, Value: "10"},
	})

	if got, expected := texts(rs), [][]string{{"2"}, {"9"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("rows = %v but expected %v", got, expected)
	}
}

func TestAggregates(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())

	mustExec(t, e, create("scores", "name", "score"))
	mustExec(t, e, &ast.Insert{Table: "scores", Columns: []string{"name", "score"}, Values: [][]string{
		{"a", "4"}, {"b", "x"}, {"c", "1.5"}, {"d", "10"},
	}})

	tests := []struct {
		expr     ast.ColumnExpr
		expected string
	}{
		{ast.Agg(ast.Count, "*"), "4"},
		{ast.Agg(ast.Count, "score"), "4"},
		{ast.Agg(ast.Count, "missing"), "0"},
		{ast.Agg(ast.Sum, "score"), "15.5"},
		{ast.Agg(ast.Avg, "score"), "5.166666666666667"},
		{ast.Agg(ast.Min, "score"), "1.5"},
		{ast.Agg(ast.Max, "score"), "10"},
		{ast.Agg(ast.Sum, "name"), "NULL"},
	}

	for _, test := range tests {
		rs := mustQuery(t, e, &ast.Select{Columns: []ast.ColumnExpr{test.expr}, Table: "scores"})

		if len(rs.Rows) != 1 {
			t.Fatalf("%s returned %d rows but expected 1", test.expr, len(rs.Rows))
		}

		if got := rs.Rows[0][0].String(); got != test.expected {
			t.Errorf("%s = %s but expected %s", test.expr, got, test.expected)
		}
	}
}

func TestCountOverEmptyTable(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())

	mustExec(t, e, create("empty", "a"))

	rs := mustQuery(t, e, &ast.Select{Columns: []ast.ColumnExpr{ast.Agg(ast.Count, "*")}, Table: "empty"})

	if got, expected := texts(rs), [][]string{{"0"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("rows = %v but expected %v", got, expected)
	}
}

func TestOrderByIsStable(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())

	mustExec(t, e, create("people", "name", "city"))
	mustExec(t, e, &ast.Insert{Table: "people", Columns: []string{"name", "city"}, Values: [][]string{
		{"a", "rome"}, {"b", "oslo"}, {"c", "rome"}, {"d", "bern"},
	}})
	mustExec(t, e, &ast.Insert{Table: "people", Columns: []string{"name"}, Values: [][]string{{"e"}}})

	tests := []struct {
		descending bool
		expected   []string
	}{
		{false, []string{"e", "d", "b", "a", "c"}},
		{true, []string{"a", "c", "b", "d", "e"}},
	}

	for _, test := range tests {
		rs := mustQuery(t, e, &ast.Select{
			Columns: []ast.ColumnExpr{ast.Col("name")},
			Table:   "people",
			OrderBy: &ast.OrderByClause{Column: "city", Descending: test.descending},
		})

		got := make([]string, len(rs.Rows))
		for i, row := range rs.Rows {
			got[i] = row[0].String()
		}

		if !reflect.DeepEqual(got, test.expected) {
			t.Errorf("ORDER BY city (desc=%v) = %v but expected %v", test.descending, got, test.expected)
		}
	}
}

func TestMissingColumnRendersNull(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())

	mustExec(t, e, create("people", "name", "city"))
	mustExec(t, e, &ast.Insert{Table: "people", Columns: []string{"name"}, Values: [][]string{{"a"}}})

	rs := mustQuery(t, e, &ast.Select{Columns: []ast.ColumnExpr{ast.Col("name"), ast.Col("city"), ast.Col("nope")}, Table: "people"})

	if got, expected := texts(rs), [][]string{{"a", "NULL", "NULL"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("rows = %v but expected %v", got, expected)
	}
}

func TestErrors(t *testing.T) {
	e, _ := openEngine(t, t.TempDir())

	mustExec(t, e, create("users", "name", "age"))
	mustExec(t, e, &ast.Insert{Table: "users", Columns: []string{"name", "age"}, Values: [][]string{{"Alice", "thirty"}}})

	tests := []struct {
		name     string
		stmt     ast.Statement
		expected error
	}{
		{"non-numeric literal", &ast.Select{Table: "users", Where: &ast.WhereClause{Column: "name", Operator: ast.Gt, Value: "abc"}}, ErrParse},
		{"non-numeric row value", &ast.Select{Table: "users", Where: &ast.WhereClause{Column: "age", Operator: ast.Lt, Value: "10"}}, ErrParse},
		{"unknown operator", &ast.Select{Table: "users", Where: &ast.WhereClause{Column: "age", Operator: "~", Value: "10"}}, ErrParse},
		{"unknown where column", &ast.Delete{Table: "users", Where: &ast.WhereClause{Column: "email", Operator: ast.Eq, Value: "x"}}, ErrNotFound},
		{"unknown table", &ast.Select{Table: "ghosts"}, ErrNotFound},
		{"unknown join table", &ast.Select{Table: "users", Join: &ast.JoinClause{Kind: ast.Cross, Table: "ghosts"}}, ErrNotFound},
		{"update unknown table", &ast.Update{Table: "ghosts"}, ErrNotFound},
		{"drop unknown table", &ast.DropTable{Table: "ghosts"}, ErrNotFound},
		{"alter unknown table", &ast.AlterTable{Table: "ghosts", Action: ast.AlterAction{Kind: ast.AddColumn, Column: "c"}}, ErrNotFound},
		{"tuple length", &ast.Insert{Table: "users", Columns: []string{"name", "age"}, Values: [][]string{{"Bob", "1"}, {"Carol"}}}, ErrSchemaViolation},
		{"duplicate table", create("users", "a"), ErrTableExists},
		{"duplicate column", create("pets", "a", "a"), ErrSchemaViolation},
		{"having on absent column", &ast.Select{Table: "users", GroupBy: []string{"name"}, Having: &ast.HavingClause{Expr: ast.Col("email"), Operator: ast.Gt, Value: "1"}}, ErrNotFound},
		{"having threshold", &ast.Select{Table: "users", Having: &ast.HavingClause{Expr: ast.Agg(ast.Count, "*"), Operator: ast.Gt, Value: "many"}}, ErrParse},
	}

	for _, test := range tests {
		if _, err := e.Execute(test.stmt); !errors.Is(err, test.expected) {
			t.Errorf("%s: Execute() = %v but expected %v", test.name, err, test.expected)
		}
	}

	rs := mustQuery(t, e, &ast.Select{Columns: []ast.ColumnExpr{ast.Agg(ast.Count, "*")}, Table: "users"})
	if got := rs.Rows[0][0].String(); got != "1" {
		t.Errorf("rows after rejected INSERT = %s but expected 1", got)
	}
}

func TestDDLStatusMessages(t *testing.T) {
	dir := t.TempDir()
	e, c := openEngine(t, dir)

	tests := []struct {
		stmt     ast.Statement
		expected string
	}{
		{create("users", "name"), "Created table 'users'"},
		{&ast.AlterTable{Table: "users", Action: ast.AlterAction{Kind: ast.AddColumn, Column: "age", Type: "TEXT"}}, "Added column 'age' to table 'users'"},
		{&ast.AlterTable{Table: "users", Action: ast.AlterAction{Kind: ast.ModifyColumn, Column: "age", Type: "TEXT"}}, "Modified column 'age' in table 'users'"},
		{&ast.AlterTable{Table: "users", Action: ast.AlterAction{Kind: ast.DropColumn, Column: "age"}}, "Dropped column 'age' from table 'users'"},
		{&ast.DropTable{Table: "users"}, "Dropped table 'users'"},
	}

	for _, test := range tests {
		if res := mustExec(t, e, test.stmt); res != test.expected {
			t.Errorf("Execute(%T) = %q but expected %q", test.stmt, res, test.expected)
		}
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	e, _ = openEngine(t, dir)

	if _, err := e.Execute(&ast.Select{Table: "users"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Execute(select) after drop = %v but expected %v", err, ErrNotFound)
	}
}

func TestValueJSON(t *testing.T) {
	row := Row{"a": Text("1"), "b": Null}

	s, err := encodeRow(row)
	if err != nil {
		t.Fatal(err)
	}

	if expected := `{"a":"1","b":null}`; s != expected {
		t.Errorf("encodeRow() = %s but expected %s", s, expected)
	}

	got, err := decodeRow("k", s)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(got, row) {
		t.Errorf("decodeRow(%s) = %v but expected %v", s, got, row)
	}

	if _, err := decodeRow("k", `{"a":1}`); !errors.Is(err, ErrSerialization) {
		t.Errorf("decodeRow() = %v but expected %v", err, ErrSerialization)
	}
}
