package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/nStangl/tabledb/ast"
)

const groupSeparator = "\x1f"

type bucket struct {
	rows []Row
}

func needsAggregation(s *ast.Select) bool {
	if len(s.GroupBy) > 0 {
		return true
	}

	for _, c := range s.Columns {
		if c.IsAggregate() {
			return true
		}
	}

	return s.Having != nil && s.Having.Expr.IsAggregate()
}

// aggregate folds rows into one representative row per group, in the order
// groups are first seen. Without GROUP BY everything forms a single group,
// even when there are no rows.
func aggregate(rows []Row, s *ast.Select, sc scope) []Row {
	exprs := aggregates(s)
	groups := linkedhashmap.New()

	for _, r := range rows {
		key := groupKey(r, s.GroupBy, sc)

		b, ok := groups.Get(key)
		if !ok {
			b = &bucket{}
			groups.Put(key, b)
		}

		b.(*bucket).rows = append(b.(*bucket).rows, r)
	}

	if len(s.GroupBy) == 0 && groups.Empty() {
		groups.Put("", &bucket{})
	}

	out := make([]Row, 0, groups.Size())

	it := groups.Iterator()
	for it.Next() {
		b := it.Value().(*bucket)

		rep := Row{}
		if len(b.rows) > 0 {
			rep = b.rows[0].clone()
		}

		for _, e := range exprs {
			rep[e.String()] = fold(e, b.rows, sc)
		}

		out = append(out, rep)
	}

	return out
}

func aggregates(s *ast.Select) []ast.ColumnExpr {
	var (
		exprs []ast.ColumnExpr
		seen  = make(map[string]struct{})
	)

	add := func(e ast.ColumnExpr) {
		if !e.IsAggregate() {
			return
		}

		if _, ok := seen[e.String()]; ok {
			return
		}

		seen[e.String()] = struct{}{}
		exprs = append(exprs, e)
	}

	for _, c := range s.Columns {
		add(c)
	}

	if s.Having != nil {
		add(s.Having.Expr)
	}

	return exprs
}

func groupKey(r Row, columns []string, sc scope) string {
	parts := make([]string, len(columns))

	for i, c := range columns {
		if v, ok := sc.resolve(r, c); ok {
			parts[i] = v.String()
		}
	}

	return strings.Join(parts, groupSeparator)
}

func fold(e ast.ColumnExpr, rows []Row, sc scope) Value {
	switch e.Kind {
	case ast.CountAll:
		return Text(strconv.Itoa(len(rows)))
	case ast.Count:
		n := 0
		for _, r := range rows {
			if v, ok := sc.resolve(r, e.Column); ok && !v.IsNull() {
				n++
			}
		}
		return Text(strconv.Itoa(n))
	}

	nums := numbers(rows, e.Column, sc)
	if len(nums) == 0 {
		return Null
	}

	switch e.Kind {
	case ast.Sum, ast.Avg:
		sum := 0.0
		for _, f := range nums {
			sum += f
		}

		if e.Kind == ast.Avg {
			sum /= float64(len(nums))
		}

		return Text(formatNumber(sum))
	case ast.Min:
		m := math.Inf(1)
		for _, f := range nums {
			m = math.Min(m, f)
		}
		return Text(formatNumber(m))
	case ast.Max:
		m := math.Inf(-1)
		for _, f := range nums {
			m = math.Max(m, f)
		}
		return Text(formatNumber(m))
	}

	return Null
}

// numbers collects the numeric values of a column, skipping everything else
func numbers(rows []Row, column string, sc scope) []float64 {
	nums := make([]float64, 0, len(rows))

	for _, r := range rows {
		v, ok := sc.resolve(r, column)
		if !ok {
			continue
		}

		if f, err := v.Float(); err == nil {
			nums = append(nums, f)
		}
	}

	return nums
}
