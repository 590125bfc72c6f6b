package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/nStangl/tabledb/ast"
	"github.com/nStangl/tabledb/server/catalog"
	"github.com/nStangl/tabledb/server/data"
	"github.com/nStangl/tabledb/server/store"
	log "github.com/sirupsen/logrus"
)

// Engine executes statements against the tables of a catalog
type Engine struct {
	catalog *catalog.Catalog
	clock   *data.Clock
}

func New(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c, clock: data.NewClock()}
}

// Execute runs one statement and returns its textual result
func (e *Engine) Execute(s ast.Statement) (string, error) {
	start := time.Now()

	res, err := e.execute(s)

	log.Debugf("executed %T on table %q in %s (err: %v)", s, s.Target(), time.Since(start), err)

	return res, err
}

func (e *Engine) execute(s ast.Statement) (string, error) {
	switch s := s.(type) {
	case *ast.Select:
		rs, err := e.Query(s)
		if err != nil {
			return "", err
		}
		return rs.String(), nil
	case *ast.Insert:
		return e.insert(s)
	case *ast.Update:
		return e.update(s)
	case *ast.Delete:
		return e.delete(s)
	case *ast.CreateTable:
		return e.createTable(s)
	case *ast.AlterTable:
		return e.alterTable(s)
	case *ast.DropTable:
		return e.dropTable(s)
	default:
		return "", fmt.Errorf("%w: unsupported statement %T", ErrParse, s)
	}
}

func (e *Engine) insert(s *ast.Insert) (string, error) {
	if err := e.ensureTable(s.Table, s.Columns); err != nil {
		return "", err
	}

	t, st, err := e.open(s.Table)
	if err != nil {
		return "", err
	}

	columns := s.Columns
	if len(columns) == 0 {
		columns = t.Columns
	}

	for i, tuple := range s.Values {
		if len(tuple) != len(columns) {
			return "", fmt.Errorf("%w: tuple %d has %d values for %d columns", ErrSchemaViolation, i+1, len(tuple), len(columns))
		}
	}

	ms := e.clock.Now()

	for i, tuple := range s.Values {
		row := make(Row, len(columns))
		for j, c := range columns {
			row[c] = Text(tuple[j])
		}

		v, err := encodeRow(row)
		if err != nil {
			return "", err
		}

		if err := st.Set(rowKey(ms, i), v); err != nil {
			return "", storageError(err)
		}
	}

	return fmt.Sprintf("%d row(s) inserted successfully", len(s.Values)), nil
}

func (e *Engine) update(s *ast.Update) (string, error) {
	t, st, err := e.open(s.Table)
	if err != nil {
		return "", err
	}

	rows, err := scan(st)
	if err != nil {
		return "", err
	}

	matched, err := where(rows, s.Where, newScope(t, nil))
	if err != nil {
		return "", err
	}

	for _, r := range matched {
		row := r.row.clone()
		for _, a := range s.Assignments {
			row[a.Column] = Text(a.Value)
		}

		v, err := encodeRow(row)
		if err != nil {
			return "", err
		}

		if err := st.Upsert(r.key, v); err != nil {
			return "", storageError(err)
		}
	}

	return fmt.Sprintf("Updated %d rows", len(matched)), nil
}

func (e *Engine) delete(s *ast.Delete) (string, error) {
	t, st, err := e.open(s.Table)
	if err != nil {
		return "", err
	}

	rows, err := scan(st)
	if err != nil {
		return "", err
	}

	matched, err := where(rows, s.Where, newScope(t, nil))
	if err != nil {
		return "", err
	}

	for _, r := range matched {
		if err := st.Del(r.key); err != nil {
			return "", storageError(err)
		}
	}

	return fmt.Sprintf("Deleted %d rows", len(matched)), nil
}

func (e *Engine) createTable(s *ast.CreateTable) (string, error) {
	columns := make([]string, 0, len(s.Columns))
	seen := make(map[string]struct{}, len(s.Columns))

	for _, c := range s.Columns {
		if _, ok := seen[c.Name]; ok {
			return "", fmt.Errorf("%w: duplicate column '%s'", ErrSchemaViolation, c.Name)
		}

		seen[c.Name] = struct{}{}
		columns = append(columns, c.Name)
	}

	if _, err := e.catalog.Create(s.Table, columns); err != nil {
		return "", catalogError(err)
	}

	return fmt.Sprintf("Created table '%s'", s.Table), nil
}

// alterTable acknowledges the change; rows are schemaless so nothing is rewritten
func (e *Engine) alterTable(s *ast.AlterTable) (string, error) {
	if _, err := e.catalog.Lookup(s.Table); err != nil {
		return "", catalogError(err)
	}

	switch s.Action.Kind {
	case ast.AddColumn:
		return fmt.Sprintf("Added column '%s' to table '%s'", s.Action.Column, s.Table), nil
	case ast.DropColumn:
		return fmt.Sprintf("Dropped column '%s' from table '%s'", s.Action.Column, s.Table), nil
	case ast.ModifyColumn:
		return fmt.Sprintf("Modified column '%s' in table '%s'", s.Action.Column, s.Table), nil
	default:
		return "", fmt.Errorf("%w: unknown alter action %q", ErrParse, s.Action.Kind)
	}
}

func (e *Engine) dropTable(s *ast.DropTable) (string, error) {
	if err := e.catalog.Drop(s.Table); err != nil {
		return "", catalogError(err)
	}

	return fmt.Sprintf("Dropped table '%s'", s.Table), nil
}

// ensureTable creates a table on first INSERT, taking the statement's column list as its schema
func (e *Engine) ensureTable(name string, columns []string) error {
	if _, err := e.catalog.Lookup(name); !errors.Is(err, catalog.ErrNoSuchTable) || len(columns) == 0 {
		return nil
	}

	if _, err := e.catalog.Create(name, columns); err != nil {
		return catalogError(err)
	}

	log.Infof("created table %q on first insert", name)

	return nil
}

func (e *Engine) open(name string) (*catalog.Table, store.Store, error) {
	t, err := e.catalog.Lookup(name)
	if err != nil {
		return nil, nil, catalogError(err)
	}

	st, err := t.Store()
	if err != nil {
		return nil, nil, storageError(err)
	}

	return t, st, nil
}

// scan decodes every live row of a table in key order
func scan(st store.Store) ([]storedRow, error) {
	kvs, err := st.All()
	if err != nil {
		return nil, storageError(err)
	}

	rows := make([]storedRow, 0, len(kvs))

	for _, kv := range kvs {
		r, err := decodeRow(kv.Key, kv.Value)
		if err != nil {
			return nil, err
		}

		rows = append(rows, storedRow{key: kv.Key, row: r})
	}

	return rows, nil
}

func rowKey(ms int64, seq int) string {
	return fmt.Sprintf("row_%013d_%06d", ms, seq)
}
