package engine

import (
	"strings"

	"github.com/nStangl/tabledb/server/catalog"
	"golang.org/x/exp/slices"
)

// scope resolves column references against rows of the left table and,
// when joined, the right table whose columns carry a "<right>." prefix
type scope struct {
	left      string
	right     string
	leftCols  []string
	rightCols []string
}

func newScope(left, right *catalog.Table) scope {
	sc := scope{left: left.Name, leftCols: left.Columns}

	if right != nil {
		sc.right = right.Name
		sc.rightCols = right.Columns
	}

	return sc
}

func (sc scope) joined() bool { return sc.right != "" }

func (sc scope) resolve(r Row, name string) (Value, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}

	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if name[:i] == sc.left {
			v, ok := r[name[i+1:]]
			return v, ok
		}

		return Null, false
	}

	if sc.joined() {
		if v, ok := r[sc.right+"."+name]; ok {
			return v, true
		}
	}

	return Null, false
}

// declared reports whether a persisted schema lists the column
func (sc scope) declared(name string) bool {
	table, column := "", name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		table, column = name[:i], name[i+1:]
	}

	switch table {
	case "":
		return slices.Contains(sc.leftCols, column) || (sc.joined() && slices.Contains(sc.rightCols, column))
	case sc.left:
		return slices.Contains(sc.leftCols, column)
	case sc.right:
		return sc.joined() && slices.Contains(sc.rightCols, column)
	}

	return false
}

// known reports whether the column is declared or stored in any row
func (sc scope) known(name string, rows []Row) bool {
	if sc.declared(name) {
		return true
	}

	for _, r := range rows {
		if _, ok := sc.resolve(r, name); ok {
			return true
		}
	}

	return false
}

// star lists the columns selected by '*'
func (sc scope) star(rows []Row) []string {
	if len(sc.leftCols) == 0 {
		if len(rows) == 0 {
			return nil
		}

		return rows[0].columns()
	}

	cols := slices.Clone(sc.leftCols)

	if !sc.joined() {
		return cols
	}

	if len(sc.rightCols) > 0 {
		for _, c := range sc.rightCols {
			cols = append(cols, sc.right+"."+c)
		}

		return cols
	}

	if len(rows) > 0 {
		for _, c := range rows[0].columns() {
			if strings.HasPrefix(c, sc.right+".") {
				cols = append(cols, c)
			}
		}
	}

	return cols
}
