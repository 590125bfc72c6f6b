package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/looplab/fsm"
	"github.com/nStangl/tabledb/server/data"
	dbLog "github.com/nStangl/tabledb/server/log"
	"github.com/nStangl/tabledb/server/memtable"
	"github.com/nStangl/tabledb/server/sstable"
	log "github.com/sirupsen/logrus"
)

type (
	Store interface {
		Get(string) (data.Result, error)
		Set(string, string) error
		Upsert(string, string) error
		Del(string) error
		All() ([]data.KV, error)

		Flush() error
		Compact() error
		Stats() Stats
		Close() error
	}

	// StoreImpl is the storage engine of a single table: a write-ahead log,
	// one memtable and an ordered list of sstables
	StoreImpl struct {
		mu       sync.RWMutex
		name     string
		dir      string
		opts     Options
		clock    *data.Clock
		log      dbLog.Log
		manager  *sstable.Manager
		memtable memtable.Table
		machine  *fsm.FSM
	}

	Stats struct {
		Name          string
		MemtableKeys  int
		MemtableBytes int
		Tables        []sstable.Table
	}
)

const (
	keySz   = 2 << 8
	valueSz = 2 << 20
)

var _ Store = (*StoreImpl)(nil)

var (
	ErrKeyInvalid   = errors.New("key invalid")
	ErrValueTooLong = errors.New("value too long")
	ErrClosed       = errors.New("store closed")
)

// Open creates or reopens the store of table name under dataDir.
// Writes that were logged but never flushed are replayed into the memtable.
func Open(dataDir, name string, opts Options) (*StoreImpl, error) {
	opts = opts.withDefaults()

	dir := filepath.Join(dataDir, name)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create table directory %q: %w", dir, err)
	}

	lg, err := dbLog.New(filepath.Join(dir, logFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initiate write-ahead log: %w", err)
	}

	manager, err := sstable.NewManager(dir)
	if err != nil {
		_ = lg.Close()
		return nil, fmt.Errorf("failed to initiate sstable manager: %w", err)
	}

	if err := manager.Startup(opts.TruncateLogOnFlush); err != nil {
		_ = lg.Close()
		return nil, fmt.Errorf("failed to start sstable manager up: %w", err)
	}

	s := &StoreImpl{
		name:     name,
		dir:      dir,
		opts:     opts,
		clock:    data.NewClock(),
		log:      lg,
		manager:  manager,
		memtable: memtable.NewRedBlackTreeWithLimit(opts.MemtableSize),
		machine:  newLifecycle(name),
	}

	if err := s.recover(); err != nil {
		_ = manager.Close()
		_ = lg.Close()
		return nil, err
	}

	return s, nil
}

func (s *StoreImpl) Name() string { return s.name }

func (s *StoreImpl) Dir() string { return s.dir }

func (s *StoreImpl) Get(key string) (data.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return data.Result{}, err
	}

	if e, ok := s.memtable.Get(key); ok {
		return e.Result, nil
	}

	return s.manager.Lookup(key)
}

func (s *StoreImpl) Set(key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(dbLog.NewSet(key, value, s.clock.Now()))
}

// Upsert replaces the value of key with a single log record,
// whether or not the key exists
func (s *StoreImpl) Upsert(key, value string) error {
	return s.Set(key, value)
}

func (s *StoreImpl) Del(key string) error {
	if err := validate(key, ""); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(dbLog.NewTombstone(key, s.clock.Now()))
}

// All returns every live key in ascending order. The memtable shadows
// the sstables and newer sstables shadow older ones.
func (s *StoreImpl) All() ([]data.KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var (
		seen = hashset.New()
		kvs  []data.KV
	)

	collect := func(e data.Entry) {
		if seen.Contains(e.Key) {
			return
		}

		seen.Add(e.Key)

		if !e.IsTombstone() {
			kvs = append(kvs, data.KV{Key: e.Key, Value: e.Result.Value})
		}
	}

	for it := s.memtable.Iterator(); it.Next(); {
		collect(it.Value())
	}

	if err := s.manager.Each(collect); err != nil {
		return nil, fmt.Errorf("failed to scan sstables: %w", err)
	}

	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })

	return kvs, nil
}

func (s *StoreImpl) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.flushMemtable()
}

func (s *StoreImpl) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.manager.Compact()
}

func (s *StoreImpl) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Name:          s.name,
		MemtableKeys:  s.memtable.Size(),
		MemtableBytes: s.memtable.Bytes(),
		Tables:        s.manager.Tables(),
	}
}

// Close flushes the memtable and releases the files of the store
func (s *StoreImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.machine.Can(eventClose) {
		return ErrClosed
	}

	if err := s.flushMemtable(); err != nil {
		return fmt.Errorf("failed to flush memtable: %w", err)
	}

	if err := s.log.Close(); err != nil {
		return fmt.Errorf("failed to close the log: %w", err)
	}

	if err := s.manager.Close(); err != nil {
		return fmt.Errorf("failed to close the manager: %w", err)
	}

	return s.machine.Event(context.Background(), eventClose)
}

func (s *StoreImpl) write(r dbLog.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.log.Append(r); err != nil {
		return fmt.Errorf("failed to append %s record: %w", r.Result.Kind, err)
	}

	s.memtable.Apply(r)

	if s.memtable.IsFull() {
		if err := s.flushMemtable(); err != nil {
			return fmt.Errorf("failed to flush memtable: %w", err)
		}
	}

	return nil
}

func (s *StoreImpl) recover() error {
	records, err := s.log.Replay()
	if err != nil {
		return fmt.Errorf("failed to replay write-ahead log: %w", err)
	}

	for _, r := range records {
		s.memtable.Apply(r)
		s.clock.Observe(r.Timestamp)
	}

	if len(records) > 0 {
		log.Infof("recovered %d log records of %s (%d keys)", len(records), s.name, s.memtable.Size())
	}

	return nil
}

func (s *StoreImpl) flushMemtable() error {
	if s.memtable.Size() == 0 {
		return nil
	}

	if err := s.manager.Add(s.memtable); err != nil {
		return fmt.Errorf("failed to add new sstable: %w", err)
	}

	log.Debugf("flushed %d keys of %s", s.memtable.Size(), s.name)

	s.memtable.Clear()

	if err := s.checkpoint(); err != nil {
		return err
	}

	if s.manager.Len() > s.opts.MaxTables {
		if err := s.manager.Compact(); err != nil {
			return fmt.Errorf("failed to compact sstables: %w", err)
		}
	}

	return nil
}

// checkpoint is the only place the write-ahead log is ever truncated
func (s *StoreImpl) checkpoint() error {
	if !s.opts.TruncateLogOnFlush {
		return nil
	}

	if err := s.log.Clear(); err != nil {
		return fmt.Errorf("failed to truncate write-ahead log: %w", err)
	}

	return nil
}

func (s *StoreImpl) checkOpen() error {
	if s.machine.Is(stateClosed) {
		return ErrClosed
	}

	return nil
}

func validate(key, value string) error {
	if len(key) == 0 || len(key) > keySz {
		return ErrKeyInvalid
	}

	if len(value) > valueSz {
		return ErrValueTooLong
	}

	return nil
}
