package ast

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// envelope names the statement variant carried by one JSON document,
// e.g. {"select": {"columns": [{"kind": "ALL"}], "table": "users"}}
type envelope struct {
	Select      *Select      `json:"select,omitempty"`
	Insert      *Insert      `json:"insert,omitempty"`
	Update      *Update      `json:"update,omitempty"`
	Delete      *Delete      `json:"delete,omitempty"`
	CreateTable *CreateTable `json:"create_table,omitempty"`
	AlterTable  *AlterTable  `json:"alter_table,omitempty"`
	DropTable   *DropTable   `json:"drop_table,omitempty"`
}

var (
	ErrBadEnvelope = errors.New("statement envelope must hold exactly one statement")
	// ErrMalformedStatement marks a line the Decoder could not turn into a statement.
	// Decoding may continue with the next line.
	ErrMalformedStatement = errors.New("malformed statement")
)

// Unmarshal decodes a single statement envelope
func Unmarshal(p []byte) (Statement, error) {
	var e envelope

	if err := json.Unmarshal(p, &e); err != nil {
		return nil, fmt.Errorf("failed to decode statement: %w", err)
	}

	var found []Statement

	for _, s := range []Statement{e.Select, e.Insert, e.Update, e.Delete, e.CreateTable, e.AlterTable, e.DropTable} {
		if !isNil(s) {
			found = append(found, s)
		}
	}

	if len(found) != 1 {
		return nil, ErrBadEnvelope
	}

	return found[0], nil
}

// Marshal wraps the statement in its envelope
func Marshal(s Statement) ([]byte, error) {
	var e envelope

	switch v := s.(type) {
	case *Select:
		e.Select = v
	case *Insert:
		e.Insert = v
	case *Update:
		e.Update = v
	case *Delete:
		e.Delete = v
	case *CreateTable:
		e.CreateTable = v
	case *AlterTable:
		e.AlterTable = v
	case *DropTable:
		e.DropTable = v
	default:
		return nil, fmt.Errorf("unknown statement %T", s)
	}

	return json.Marshal(e)
}

// Decoder reads a stream of envelopes, one per line
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

func NewDecoder(r io.Reader) *Decoder {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 2<<11), 2<<22)

	return &Decoder{scanner: scan}
}

// Next returns io.EOF once the stream is exhausted. Blank lines and lines
// starting with # are skipped.
func (d *Decoder) Next() (Statement, error) {
	for d.scanner.Scan() {
		d.line++

		p := bytes.TrimSpace(d.scanner.Bytes())
		if len(p) == 0 || p[0] == '#' {
			continue
		}

		s, err := Unmarshal(p)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %w", d.line, ErrMalformedStatement, err)
		}

		return s, nil
	}

	if err := d.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}

func isNil(s Statement) bool {
	switch v := s.(type) {
	case *Select:
		return v == nil
	case *Insert:
		return v == nil
	case *Update:
		return v == nil
	case *Delete:
		return v == nil
	case *CreateTable:
		return v == nil
	case *AlterTable:
		return v == nil
	case *DropTable:
		return v == nil
	}

	return s == nil
}
