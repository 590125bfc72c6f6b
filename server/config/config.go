package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/nStangl/tabledb/server/memtable"
	"github.com/nStangl/tabledb/server/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

type Config struct {
	Directory    string
	Loglevel     string
	MemtableSize int
	MaxTables    int
	TruncateLog  bool
}

// Register binds the configuration to persistent command line flags
func (c *Config) Register(flags *pflag.FlagSet) {
	flags.StringVarP(&c.Directory, "directory", "d", "db-data", "Directory holding one subdirectory per table")
	flags.StringVarP(&c.Loglevel, "loglevel", "o", "INFO", "Loglevel, e.g., INFO, ALL, . . .")
	flags.StringVar(&c.Loglevel, "ll", "INFO", "Loglevel, e.g., INFO, ALL, . . .")
	flags.IntVarP(&c.MemtableSize, "memtable-size", "m", memtable.MaxSize, "Bytes buffered in a memtable before it is flushed")
	flags.IntVar(&c.MaxTables, "max-tables", store.DefaultMaxTables, "Number of sstables per table that triggers a compaction")
	flags.BoolVar(&c.TruncateLog, "truncate-log", false, "Truncate the write-ahead log after every flush and keep sstables across restarts")
}

func (c *Config) Validate() error {
	if c.Directory == "" {
		return fmt.Errorf("directory must not be empty")
	}

	if c.MemtableSize <= 0 {
		return fmt.Errorf("memtable size must be positive, got %d", c.MemtableSize)
	}

	if c.MaxTables <= 0 {
		return fmt.Errorf("max tables must be positive, got %d", c.MaxTables)
	}

	return nil
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{
		MemtableSize:       c.MemtableSize,
		MaxTables:          c.MaxTables,
		TruncateLogOnFlush: c.TruncateLog,
	}
}

func SetLogLevel(level string) {
	switch strings.ToLower(level) {
	case "all":
		log.SetLevel(log.DebugLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
		fmt.Printf("Invalid log level '%s'. Setting log level to 'info'\n", level)
	}

	log.SetOutput(os.Stderr)
}
