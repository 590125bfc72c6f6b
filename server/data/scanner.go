package data

import (
	"bufio"
	"fmt"
	"io"
)

// Scanner reads newline delimited entries
type Scanner struct {
	scanner *bufio.Scanner
	entry   Entry
	line    int
	err     error
}

const (
	bufSz   = 2 << 11
	maxLine = 2 << 24
)

func NewScanner(r io.Reader) *Scanner {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, bufSz), maxLine)

	return &Scanner{scanner: scan}
}

// Scan advances to the next entry, skipping blank lines.
// It stops at the first undecodable line; see Err.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}

	for s.scanner.Scan() {
		s.line++

		e, ok, err := DecodeLine(s.scanner.Bytes())
		if err != nil {
			s.err = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}

		if !ok {
			continue
		}

		s.entry = e

		return true
	}

	return false
}

func (s *Scanner) Entry() Entry {
	return s.entry
}

func (s *Scanner) Err() error {
	if s.err != nil {
		return s.err
	}

	return s.scanner.Err()
}
