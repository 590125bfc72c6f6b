package engine

import (
	"sort"
	"strings"

	"github.com/nStangl/tabledb/ast"
	"github.com/nStangl/tabledb/server/catalog"
	"github.com/nStangl/tabledb/server/store"
)

// ResultSet is the projected output of a SELECT
type ResultSet struct {
	Columns []string
	Rows    [][]Value
}

const noRows = "No matching rows found"

// Query runs a SELECT: join, where, aggregate, having, order, project
func (e *Engine) Query(s *ast.Select) (*ResultSet, error) {
	left, st, err := e.open(s.Table)
	if err != nil {
		return nil, err
	}

	rows, err := load(st)
	if err != nil {
		return nil, err
	}

	var right *catalog.Table

	if s.Join != nil {
		var rst store.Store

		right, rst, err = e.open(s.Join.Table)
		if err != nil {
			return nil, err
		}

		rightRows, err := load(rst)
		if err != nil {
			return nil, err
		}

		if rows, err = join(rows, rightRows, s.Join, newScope(left, right)); err != nil {
			return nil, err
		}
	}

	sc := newScope(left, right)

	idx, err := filter(rows, s.Where, sc)
	if err != nil {
		return nil, err
	}

	filtered := make([]Row, 0, len(idx))
	for _, i := range idx {
		filtered = append(filtered, rows[i])
	}
	rows = filtered

	if needsAggregation(s) {
		rows = aggregate(rows, s, sc)
	}

	if rows, err = having(rows, s.Having, sc); err != nil {
		return nil, err
	}

	if s.OrderBy != nil {
		order(rows, s.OrderBy, sc)
	}

	return project(rows, s.Columns, sc), nil
}

func load(st store.Store) ([]Row, error) {
	stored, err := scan(st)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(stored))
	for i, r := range stored {
		rows[i] = r.row
	}

	return rows, nil
}

// order sorts rows by the text of one column, keeping ties in place
func order(rows []Row, o *ast.OrderByClause, sc scope) {
	keys := make([]string, len(rows))

	for i, r := range rows {
		if v, ok := sc.resolve(r, o.Column); ok && !v.IsNull() {
			keys[i] = v.text
		}
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		if o.Descending {
			return keys[idx[a]] > keys[idx[b]]
		}
		return keys[idx[a]] < keys[idx[b]]
	})

	sorted := make([]Row, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}

	copy(rows, sorted)
}

func project(rows []Row, exprs []ast.ColumnExpr, sc scope) *ResultSet {
	if len(exprs) == 0 {
		exprs = []ast.ColumnExpr{ast.Star()}
	}

	type column struct {
		name string
		expr ast.ColumnExpr
	}

	var columns []column

	for _, e := range exprs {
		if e.Kind == ast.All {
			for _, c := range sc.star(rows) {
				columns = append(columns, column{name: c, expr: ast.Col(c)})
			}
			continue
		}

		columns = append(columns, column{name: e.String(), expr: e})
	}

	rs := &ResultSet{Columns: make([]string, len(columns)), Rows: make([][]Value, 0, len(rows))}

	for i, c := range columns {
		rs.Columns[i] = c.name
	}

	for _, r := range rows {
		values := make([]Value, len(columns))

		for i, c := range columns {
			if v, ok := evaluate(r, c.expr, sc); ok {
				values[i] = v
			} else {
				values[i] = Null
			}
		}

		rs.Rows = append(rs.Rows, values)
	}

	return rs
}

// String renders a header, a dash line and one line per row
func (rs *ResultSet) String() string {
	if len(rs.Rows) == 0 {
		return noRows
	}

	var b strings.Builder

	header := strings.Join(rs.Columns, " | ")

	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", len(header)))
	b.WriteByte('\n')

	for _, row := range rs.Rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = v.String()
		}

		b.WriteString(strings.Join(values, " | "))
		b.WriteByte('\n')
	}

	return b.String()
}
