package sstable

import (
	"fmt"
	"io"

	"github.com/nStangl/tabledb/server/data"
	"github.com/nStangl/tabledb/server/memtable"
)

type (
	Iterator interface {
		Next() bool
		Value() data.Entry
	}

	sliceIterator struct {
		entries []data.Entry
		pos     int
	}

	summary struct {
		minKey, maxKey string
		size           int64
		count          int
	}
)

var (
	_ Iterator = (memtable.Iterator)(nil)
	_ Iterator = (*sliceIterator)(nil)
)

// writeTable expects the iterator to yield entries in ascending key order
func writeTable(iterator Iterator, table io.Writer) (summary, error) {
	var s summary

	for iterator.Next() {
		e := iterator.Value()

		p, err := data.EncodeLine(e)
		if err != nil {
			return s, fmt.Errorf("failed to encode entry %s: %w", e, err)
		}

		if _, err := table.Write(p); err != nil {
			return s, fmt.Errorf("failed to write entry to table: %w", err)
		}

		if s.count == 0 {
			s.minKey = e.Key
		}

		s.maxKey = e.Key
		s.size += int64(len(p))
		s.count++
	}

	return s, nil
}

func newSliceIterator(entries []data.Entry) *sliceIterator {
	return &sliceIterator{entries: entries, pos: -1}
}

func (i *sliceIterator) Next() bool {
	i.pos++
	return i.pos < len(i.entries)
}

func (i *sliceIterator) Value() data.Entry { return i.entries[i.pos] }
