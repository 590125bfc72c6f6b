package log

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nStangl/tabledb/server/data"
)

type (
	Log interface {
		Append(Record) error
		Replay() ([]Record, error)
		Clear() error
		Close() error
	}

	// LogImpl is an append-only file of records.
	// Every Append reaches stable storage before it returns.
	LogImpl struct {
		mu       sync.Mutex
		location string
		file     *os.File
		buff     *bufio.Writer
	}
)

var _ Log = (*LogImpl)(nil)

func New(location string) (*LogImpl, error) {
	if err := touch(location); err != nil {
		return nil, fmt.Errorf("failed to touch log file at %s: %w", location, err)
	}

	f, err := open(location)
	if err != nil {
		return nil, err
	}

	return &LogImpl{location: location, file: f, buff: bufio.NewWriter(f)}, nil
}

func (l *LogImpl) Append(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := data.EncodeLine(r)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", r, err)
	}

	if _, err := l.buff.Write(p); err != nil {
		return fmt.Errorf("failed to write record to file: %w", err)
	}

	if err := l.buff.Flush(); err != nil {
		return fmt.Errorf("failed to flush log buffer: %w", err)
	}

	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}

	return nil
}

// Replay returns every record in the order it was appended
func (l *LogImpl) Replay() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.location)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	defer f.Close()

	var (
		records []Record
		scanner = data.NewScanner(bufio.NewReader(f))
	)

	for scanner.Scan() {
		records = append(records, scanner.Entry())
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to replay log %s: %w", l.location, err)
	}

	return records, nil
}

// Clear truncates the log
func (l *LogImpl) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.buff.Flush(); err != nil {
		return fmt.Errorf("failed to flush log buffer: %w", err)
	}

	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate log file: %w", err)
	}

	return l.file.Sync()
}

func (l *LogImpl) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.buff.Flush(); err != nil {
		return fmt.Errorf("failed to flush log buffer: %w", err)
	}

	return l.file.Close()
}

func open(location string) (*os.File, error) {
	f, err := os.OpenFile(location, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file at %s: %w", location, err)
	}

	return f, nil
}

func touch(fileName string) error {
	d := filepath.Dir(fileName)

	if _, err := os.Stat(d); os.IsNotExist(err) {
		if err := os.MkdirAll(d, os.ModePerm); err != nil {
			return err
		}
	}

	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		f, err := os.OpenFile(fileName, os.O_RDONLY|os.O_CREATE, 0o644)
		if err != nil {
			return err
		}

		return f.Close()
	}

	return nil
}
