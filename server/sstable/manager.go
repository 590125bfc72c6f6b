package sstable

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nStangl/tabledb/server/data"
	"github.com/nStangl/tabledb/server/memtable"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/exp/mmap"
)

// Manager owns the ordered list of sstables of one storage root,
// oldest first
type Manager struct {
	mu     sync.RWMutex
	root   string
	seq    int
	tables []*Table
}

const (
	compactedName = "sstable_compacted.log"
	tempSuffix    = ".tmp"
)

var tableNameRe = regexp.MustCompile(`^sstable_(\d+)\.log$`)

func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create sstable directory %q: %w", root, err)
	}

	return &Manager{root: root}, nil
}

// Startup deals with sstable files left behind by a previous process.
// With keep set they are loaded in creation order, otherwise they are removed.
func (m *Manager) Startup(keep bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := os.ReadDir(m.root)
	if err != nil {
		return fmt.Errorf("failed to read directory %q: %w", m.root, err)
	}

	var (
		found     []*Table
		compacted *Table
	)

	for _, f := range d {
		if f.IsDir() {
			continue
		}

		name := f.Name()

		if strings.HasSuffix(name, tempSuffix) && strings.HasPrefix(name, "sstable_") {
			if err := os.Remove(filepath.Join(m.root, name)); err != nil {
				return fmt.Errorf("failed to remove leftover file %s: %w", name, err)
			}

			continue
		}

		switch n := tableNameRe.FindStringSubmatch(name); {
		case len(n) == 2:
			seq, err := strconv.Atoi(n[1])
			if err != nil {
				return fmt.Errorf("failed to parse table sequence of %s: %w", name, err)
			}

			found = append(found, &Table{name: name, seq: seq})
		case name == compactedName:
			compacted = &Table{name: name, seq: -1}
		}
	}

	if compacted != nil {
		found = append(found, compacted)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })

	if !keep {
		for _, t := range found {
			if err := os.Remove(filepath.Join(m.root, t.name)); err != nil {
				return fmt.Errorf("failed to discard stale table %s: %w", t.name, err)
			}
		}

		if len(found) > 0 {
			log.Debugf("discarded %d stale sstables in %s", len(found), m.root)
		}

		return nil
	}

	for _, t := range found {
		if err := m.loadTable(t); err != nil {
			return fmt.Errorf("failed to load table: %w", err)
		}

		if t.seq >= m.seq {
			m.seq = t.seq + 1
		}
	}

	m.tables = found

	log.Debugf("loaded %d sstables from %s", len(found), m.root)

	return nil
}

// Add writes the contents of the memtable to a new table
func (m *Manager) Add(table memtable.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := fmt.Sprintf("sstable_%d.log", m.seq)

	t, err := m.newTable(name, table.Iterator())
	if err != nil {
		return fmt.Errorf("failed to create new table: %w", err)
	}

	t.seq = m.seq
	m.seq++
	m.tables = append(m.tables, t)

	return nil
}

// Lookup searches the tables from newest to oldest
func (m *Manager) Lookup(key string) (data.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.tables) - 1; i >= 0; i-- {
		e, ok, err := m.tables[i].Lookup(key)
		if err != nil {
			return data.Result{}, fmt.Errorf("failed to lookup key in table: %w", err)
		}

		if ok {
			return e.Result, nil
		}
	}

	return data.Result{Kind: data.Missing}, nil
}

// Each calls fn with every entry of every table,
// newest table first and each table in key order
func (m *Manager) Each(fn func(data.Entry)) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.tables) - 1; i >= 0; i-- {
		entries, err := m.tables[i].Entries()
		if err != nil {
			return err
		}

		for _, e := range entries {
			fn(e)
		}
	}

	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tables)
}

// Tables returns a snapshot of the tables, oldest first
func (m *Manager) Tables() []Table {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ts := make([]Table, len(m.tables))
	for i := range m.tables {
		ts[i] = *m.tables[i]
		ts[i].file = nil
	}

	return ts
}

// Compact merges all tables into one, keeping only the newest
// entry of every key. Tombstones survive so that older data stays hidden.
func (m *Manager) Compact() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tables) < 2 {
		return nil
	}

	var all []data.Entry

	for i := len(m.tables) - 1; i >= 0; i-- {
		entries, err := m.tables[i].Entries()
		if err != nil {
			return fmt.Errorf("failed to read table for compaction: %w", err)
		}

		all = append(all, entries...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Key != all[j].Key {
			return all[i].Key < all[j].Key
		}

		return all[i].Timestamp > all[j].Timestamp
	})

	unique := all[:0]

	for i := range all {
		if len(unique) > 0 && unique[len(unique)-1].Key == all[i].Key {
			continue
		}

		unique = append(unique, all[i])
	}

	tmpName := fmt.Sprintf("sstable_compacted-%s%s", uuid.NewString(), tempSuffix)

	t, err := m.newTable(tmpName, newSliceIterator(unique))
	if err != nil {
		return fmt.Errorf("failed to write compacted table: %w", err)
	}

	if err := os.Rename(filepath.Join(m.root, tmpName), filepath.Join(m.root, compactedName)); err != nil {
		return multierr.Combine(
			fmt.Errorf("failed to install compacted table: %w", err),
			t.Close(),
			os.Remove(filepath.Join(m.root, tmpName)),
		)
	}

	var result error

	for _, old := range m.tables {
		if err := old.Close(); err != nil {
			result = multierr.Append(result, err)
		}

		// already replaced by the rename above
		if old.name == compactedName {
			continue
		}

		if err := os.Remove(filepath.Join(m.root, old.name)); err != nil {
			result = multierr.Append(result, fmt.Errorf("failed to remove table %s: %w", old.name, err))
		}
	}

	log.Debugf("compacted %d sstables into %d entries in %s", len(m.tables), t.Count, m.root)

	t.name = compactedName
	t.seq = -1
	m.tables = []*Table{t}

	return result
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result error

	for i := range m.tables {
		if err := m.tables[i].Close(); err != nil {
			result = multierr.Append(result, err)
		}
	}

	m.tables = nil

	return result
}

func (m *Manager) newTable(name string, iterator Iterator) (*Table, error) {
	tablePath := filepath.Join(m.root, name)

	table, err := os.Create(tablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create table file: %w", err)
	}

	tableBuf := bufio.NewWriter(table)

	s, err := writeTable(iterator, tableBuf)
	if err != nil {
		_ = table.Close()
		return nil, fmt.Errorf("failed to write entries to table: %w", err)
	}

	if err := tableBuf.Flush(); err != nil {
		_ = table.Close()
		return nil, fmt.Errorf("failed to flush table file: %w", err)
	}

	if err := table.Sync(); err != nil {
		_ = table.Close()
		return nil, fmt.Errorf("failed to sync table file: %w", err)
	}

	if err := table.Close(); err != nil {
		return nil, fmt.Errorf("failed to close table file: %w", err)
	}

	t := Table{
		name:   name,
		MinKey: s.minKey,
		MaxKey: s.maxKey,
		Size:   s.size,
		Count:  s.count,
	}

	if err := m.openTable(&t); err != nil {
		return nil, err
	}

	return &t, nil
}

// loadTable opens a table written by a previous process and
// recovers its summary
func (m *Manager) loadTable(table *Table) error {
	if err := m.openTable(table); err != nil {
		return err
	}

	entries, err := table.Entries()
	if err != nil {
		return err
	}

	table.Count = len(entries)
	table.Size = int64(table.file.Len())

	if len(entries) > 0 {
		table.MinKey = entries[0].Key
		table.MaxKey = entries[len(entries)-1].Key
	}

	return nil
}

func (m *Manager) openTable(table *Table) error {
	tablePath := filepath.Join(m.root, table.name)

	openTable, err := mmap.Open(tablePath)
	if err != nil {
		return fmt.Errorf("failed to mmap table file: %w", err)
	}

	table.file = openTable

	return nil
}
