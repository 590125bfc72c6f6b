package sstable

import (
	"fmt"
	"io"

	"github.com/nStangl/tabledb/server/data"
	"golang.org/x/exp/mmap"
)

// Table is an immutable, key sorted run of entries on disk.
// Lookups scan the whole run; there is no index.
type Table struct {
	// Name of the table file inside the manager root
	name string
	// Sequence number, compacted tables use -1
	seq int
	// Smallest and largest key in the run
	MinKey string
	MaxKey string
	// Size of the file in bytes
	Size int64
	// Number of entries
	Count int
	// mmap'ed table file
	file *mmap.ReaderAt
}

func (t *Table) Name() string { return t.name }

// Entries returns the whole run in key order
func (t *Table) Entries() ([]data.Entry, error) {
	var (
		entries = make([]data.Entry, 0, t.Count)
		scanner = data.NewScanner(io.NewSectionReader(t.file, 0, int64(t.file.Len())))
	)

	for scanner.Scan() {
		entries = append(entries, scanner.Entry())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", t.name, err)
	}

	return entries, nil
}

func (t *Table) Lookup(key string) (data.Entry, bool, error) {
	if t.Count == 0 || key < t.MinKey || key > t.MaxKey {
		return data.Entry{}, false, nil
	}

	entries, err := t.Entries()
	if err != nil {
		return data.Entry{}, false, err
	}

	for i := range entries {
		if entries[i].Key == key {
			return entries[i], true, nil
		}
	}

	return data.Entry{}, false, nil
}

func (t *Table) Close() error {
	if t.file == nil {
		return nil
	}

	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close mmap'ed file: %w", err)
	}

	t.file = nil

	return nil
}
