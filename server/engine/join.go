package engine

import (
	"fmt"
	"strings"

	"github.com/nStangl/tabledb/ast"
)

// join combines left and right rows. Left columns keep their names, right
// columns are prefixed with the right table name. Unmatched rows of a
// preserved side are padded with NULL for every column of the other side.
func join(left, right []Row, j *ast.JoinClause, sc scope) ([]Row, error) {
	if j.Kind == ast.Cross {
		out := make([]Row, 0, len(left)*len(right))
		for _, l := range left {
			for _, r := range right {
				out = append(out, merge(l, r, sc.right))
			}
		}
		return out, nil
	}

	switch j.Kind {
	case ast.Inner, ast.Left, ast.Right, ast.Full:
	default:
		return nil, fmt.Errorf("%w: unsupported join %q", ErrParse, j.Kind)
	}

	if j.LeftKey == "" || j.RightKey == "" {
		return nil, fmt.Errorf("%w: %s join needs an ON condition", ErrParse, j.Kind)
	}

	lk, rk := lastSegment(j.LeftKey), lastSegment(j.RightKey)

	var (
		out          []Row
		rightMatched = make([]bool, len(right))
		leftPad      = padding(sc.leftCols, left)
		rightPad     = padding(sc.rightCols, right)
	)

	for _, l := range left {
		matched := false

		for i, r := range right {
			if !matches(l, lk, r, rk) {
				continue
			}

			matched = true
			rightMatched[i] = true
			out = append(out, merge(l, r, sc.right))
		}

		if !matched && (j.Kind == ast.Left || j.Kind == ast.Full) {
			out = append(out, merge(l, nulls(rightPad), sc.right))
		}
	}

	if j.Kind == ast.Right || j.Kind == ast.Full {
		for i, r := range right {
			if !rightMatched[i] {
				out = append(out, merge(nulls(leftPad), r, sc.right))
			}
		}
	}

	return out, nil
}

func matches(l Row, lk string, r Row, rk string) bool {
	lv, ok := l[lk]
	if !ok || lv.IsNull() {
		return false
	}

	rv, ok := r[rk]
	if !ok || rv.IsNull() {
		return false
	}

	return lv.text == rv.text
}

func merge(l, r Row, right string) Row {
	out := make(Row, len(l)+len(r))

	for k, v := range l {
		out[k] = v
	}

	for k, v := range r {
		out[right+"."+k] = v
	}

	return out
}

// padding names the columns of a side: its schema, else its first row's keys
func padding(schema []string, rows []Row) []string {
	if len(schema) > 0 || len(rows) == 0 {
		return schema
	}

	return rows[0].columns()
}

func nulls(columns []string) Row {
	r := make(Row, len(columns))
	for _, c := range columns {
		r[c] = Null
	}

	return r
}

func lastSegment(s string) string {
	return s[strings.LastIndexByte(s, '.')+1:]
}
