package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nStangl/tabledb/server/data"
	"github.com/nStangl/tabledb/server/store"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// Catalog maps table names to their storage and persisted schema.
	// It is owned by the caller; nothing in it is global.
	Catalog struct {
		mu     sync.Mutex
		root   string
		opts   store.Options
		tables map[string]*Table
	}

	Table struct {
		Name    string
		Columns []string

		catalog *Catalog
		store   *store.StoreImpl
	}
)

const (
	schemaSuffix = "_schema"
	schemaKey    = "schema"
)

var (
	ErrNoSuchTable = errors.New("no such table")
	ErrTableExists = errors.New("table already exists")
	ErrInvalidName = errors.New("invalid table name")
)

// Open loads every table whose schema was persisted under root.
// Table stores are opened on first use.
func Open(root string, opts store.Options) (*Catalog, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", root, err)
	}

	c := &Catalog{root: root, opts: opts, tables: make(map[string]*Table)}

	if err := c.load(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Catalog) Root() string { return c.root }

// Create registers a new table, opens its store and persists its columns
func (c *Catalog) Create(name string, columns []string) (*Table, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tables[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
	}

	s, err := store.Open(c.root, name, c.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create table storage: %w", err)
	}

	if err := c.writeSchema(name, columns); err != nil {
		return nil, multierr.Append(err, s.Close())
	}

	t := &Table{Name: name, Columns: slices.Clone(columns), catalog: c, store: s}
	c.tables[name] = t

	log.Infof("created table %s %v", name, columns)

	return t, nil
}

func (c *Catalog) Lookup(name string) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchTable, name)
	}

	return t, nil
}

// Drop forgets the table and deletes its data and schema from disk
func (c *Catalog) Drop(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchTable, name)
	}

	var result error

	if t.store != nil {
		if err := t.store.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
			result = multierr.Append(result, err)
		}
	}

	delete(c.tables, name)

	for _, dir := range []string{name, name + schemaSuffix} {
		if err := os.RemoveAll(filepath.Join(c.root, dir)); err != nil {
			result = multierr.Append(result, fmt.Errorf("failed to remove table directory: %w", err))
		}
	}

	log.Infof("dropped table %s", name)

	return result
}

// Names returns the registered tables in lexical order
func (c *Catalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := maps.Keys(c.tables)
	slices.Sort(names)

	return names
}

func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result error

	for _, t := range c.tables {
		if t.store == nil {
			continue
		}

		if err := t.store.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
			result = multierr.Append(result, fmt.Errorf("failed to close table %s: %w", t.Name, err))
		}

		t.store = nil
	}

	return result
}

// Store returns the storage engine of the table, opening it if needed
func (t *Table) Store() (store.Store, error) {
	c := t.catalog

	c.mu.Lock()
	defer c.mu.Unlock()

	if t.store == nil {
		s, err := store.Open(c.root, t.Name, c.opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open table storage: %w", err)
		}

		t.store = s
	}

	return t.store, nil
}

func (c *Catalog) load() error {
	d, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}

	for _, f := range d {
		if !f.IsDir() || !strings.HasSuffix(f.Name(), schemaSuffix) {
			continue
		}

		name := strings.TrimSuffix(f.Name(), schemaSuffix)
		if validateName(name) != nil {
			log.Warnf("skipping schema directory %s", f.Name())
			continue
		}

		columns, ok, err := c.readSchema(name)
		if err != nil {
			return fmt.Errorf("failed to load schema of %s: %w", name, err)
		}

		if !ok {
			log.Warnf("schema directory of %s holds no schema, skipping", name)
			continue
		}

		c.tables[name] = &Table{Name: name, Columns: columns, catalog: c}
	}

	if len(c.tables) > 0 {
		log.Infof("loaded %d tables from %s", len(c.tables), c.root)
	}

	return nil
}

func (c *Catalog) writeSchema(name string, columns []string) error {
	p, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to serialize schema: %w", err)
	}

	s, err := store.Open(c.root, name+schemaSuffix, c.opts)
	if err != nil {
		return fmt.Errorf("failed to create schema storage: %w", err)
	}

	if err := s.Set(schemaKey, string(p)); err != nil {
		return multierr.Append(fmt.Errorf("failed to store schema: %w", err), s.Close())
	}

	return s.Close()
}

func (c *Catalog) readSchema(name string) ([]string, bool, error) {
	s, err := store.Open(c.root, name+schemaSuffix, c.opts)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open schema storage: %w", err)
	}

	defer s.Close()

	r, err := s.Get(schemaKey)
	if err != nil {
		return nil, false, err
	}

	if !r.Found() {
		return nil, false, nil
	}

	var columns []string
	if err := json.Unmarshal([]byte(r.Value), &columns); err != nil {
		return nil, false, fmt.Errorf("%w: schema of %s: %v", data.ErrMalformedEntry, name, err)
	}

	return columns, true, nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasSuffix(name, schemaSuffix):
		return fmt.Errorf("%w: %q ends in %s", ErrInvalidName, name, schemaSuffix)
	}

	return nil
}
