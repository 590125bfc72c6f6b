package store

import "github.com/nStangl/tabledb/server/memtable"

type Options struct {
	// MemtableSize is the byte threshold that triggers a flush
	MemtableSize int
	// MaxTables is the sstable count above which a flush compacts
	MaxTables int
	// TruncateLogOnFlush empties the write-ahead log once its contents
	// are in an sstable. Off by default: the log then holds the full
	// history and sstables from earlier runs are discarded on open.
	TruncateLogOnFlush bool
}

const (
	DefaultMaxTables = 3

	logFile = "wal.log"
)

func DefaultOptions() Options {
	return Options{MemtableSize: memtable.MaxSize, MaxTables: DefaultMaxTables}
}

func (o Options) withDefaults() Options {
	if o.MemtableSize <= 0 {
		o.MemtableSize = memtable.MaxSize
	}

	if o.MaxTables <= 0 {
		o.MaxTables = DefaultMaxTables
	}

	return o
}
