package engine

import (
	"errors"
	"fmt"

	"github.com/nStangl/tabledb/server/catalog"
	"github.com/nStangl/tabledb/server/data"
)

var (
	// ErrNotFound is returned for unknown tables and columns
	ErrNotFound = errors.New("not found")
	// ErrSchemaViolation is returned when a statement does not fit the table shape
	ErrSchemaViolation = errors.New("schema violation")
	// ErrParse is returned for operands and operators that cannot be evaluated
	ErrParse = errors.New("parse error")
	// ErrIO wraps storage failures
	ErrIO = errors.New("i/o error")
	// ErrSerialization wraps stored data that cannot be decoded
	ErrSerialization = errors.New("serialization error")

	ErrTableExists = catalog.ErrTableExists
)

func storageError(err error) error {
	if errors.Is(err, data.ErrMalformedEntry) {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}

func catalogError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrNoSuchTable):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, catalog.ErrTableExists), errors.Is(err, catalog.ErrInvalidName):
		return err
	default:
		return storageError(err)
	}
}

func tableNotFound(name string) error {
	return fmt.Errorf("%w: table '%s'", ErrNotFound, name)
}

func columnNotFound(name string) error {
	return fmt.Errorf("%w: column '%s'", ErrNotFound, name)
}
