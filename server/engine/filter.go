package engine

import (
	"fmt"

	"github.com/nStangl/tabledb/ast"
)

// filter returns the indices of the rows satisfying the WHERE clause.
// Rows where the column is absent or NULL never match.
func filter(rows []Row, w *ast.WhereClause, sc scope) ([]int, error) {
	matched := make([]int, 0, len(rows))

	if w == nil {
		for i := range rows {
			matched = append(matched, i)
		}

		return matched, nil
	}

	cmp, err := comparator(w.Operator, w.Value)
	if err != nil {
		return nil, err
	}

	if !sc.known(w.Column, rows) {
		return nil, columnNotFound(w.Column)
	}

	for i, r := range rows {
		v, ok := sc.resolve(r, w.Column)
		if !ok || v.IsNull() {
			continue
		}

		keep, err := cmp(v)
		if err != nil {
			return nil, err
		}

		if keep {
			matched = append(matched, i)
		}
	}

	return matched, nil
}

// where applies the WHERE clause to stored rows
func where(rows []storedRow, w *ast.WhereClause, sc scope) ([]storedRow, error) {
	plain := make([]Row, len(rows))
	for i, r := range rows {
		plain[i] = r.row
	}

	idx, err := filter(plain, w, sc)
	if err != nil {
		return nil, err
	}

	matched := make([]storedRow, 0, len(idx))
	for _, i := range idx {
		matched = append(matched, rows[i])
	}

	return matched, nil
}

// comparator compares text for = and != and numbers for < and >
func comparator(op, operand string) (func(Value) (bool, error), error) {
	switch op {
	case ast.Eq:
		return func(v Value) (bool, error) { return v.text == operand, nil }, nil
	case ast.Ne:
		return func(v Value) (bool, error) { return v.text != operand, nil }, nil
	case ast.Lt, ast.Gt:
		threshold, err := Text(operand).Float()
		if err != nil {
			return nil, err
		}

		return func(v Value) (bool, error) {
			f, err := v.Float()
			if err != nil {
				return false, err
			}

			if op == ast.Lt {
				return f < threshold, nil
			}
			return f > threshold, nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrParse, op)
	}
}

// having keeps the groups whose expression compares true against a numeric threshold
func having(rows []Row, h *ast.HavingClause, sc scope) ([]Row, error) {
	if h == nil {
		return rows, nil
	}

	threshold, err := Text(h.Value).Float()
	if err != nil {
		return nil, err
	}

	var cmp func(float64) bool

	switch h.Operator {
	case ast.Eq:
		cmp = func(f float64) bool { return f == threshold }
	case ast.Ne:
		cmp = func(f float64) bool { return f != threshold }
	case ast.Lt:
		cmp = func(f float64) bool { return f < threshold }
	case ast.Gt:
		cmp = func(f float64) bool { return f > threshold }
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrParse, h.Operator)
	}

	kept := make([]Row, 0, len(rows))

	for _, r := range rows {
		v, ok := evaluate(r, h.Expr, sc)
		if !ok {
			return nil, columnNotFound(h.Expr.String())
		}

		if v.IsNull() {
			continue
		}

		f, err := v.Float()
		if err != nil {
			return nil, err
		}

		if cmp(f) {
			kept = append(kept, r)
		}
	}

	return kept, nil
}

// evaluate reads an expression from a row; aggregates are stored under their display name
func evaluate(r Row, e ast.ColumnExpr, sc scope) (Value, bool) {
	if e.IsAggregate() {
		v, ok := r[e.String()]
		return v, ok
	}

	return sc.resolve(r, e.Column)
}
