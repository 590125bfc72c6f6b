package memtable

import "github.com/nStangl/tabledb/server/data"

// This package defines the memtable,
// the in-memory data structure buffering
// the most recent writes of a table

type (
	Table interface {
		Sizable
		Iterable

		Get(string) (data.Entry, bool)
		Set(key, value string, ts int64)
		Del(key string, ts int64)
		Apply(data.Entry)
		IsFull() bool
		Clear()
	}

	Sizable interface {
		// Size is the number of distinct keys
		Size() int
		// Bytes is the accumulated key and value length
		Bytes() int
	}

	Iterable interface {
		Iterator() Iterator
	}

	Iterator interface {
		Next() bool
		Value() data.Entry
	}
)

// MaxSize is the default byte threshold after which a memtable is flushed
const MaxSize = 1 << 20
