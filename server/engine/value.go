package engine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// Value is either a piece of text or NULL
	Value struct {
		text  string
		valid bool
	}

	// Row maps column names to values. A missing column is not the same
	// as a column holding NULL.
	Row map[string]Value

	// storedRow is a row together with its storage key
	storedRow struct {
		key string
		row Row
	}
)

var Null = Value{}

const nullText = "NULL"

func Text(s string) Value { return Value{text: s, valid: true} }

func (v Value) IsNull() bool { return !v.valid }

// String renders the value for display
func (v Value) String() string {
	if !v.valid {
		return nullText
	}

	return v.text
}

// Float parses the value as a number
func (v Value) Float() (float64, error) {
	if !v.valid {
		return 0, fmt.Errorf("%w: NULL is not a number", ErrParse)
	}

	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrParse, v.text)
	}

	return f, nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.valid {
		return []byte("null"), nil
	}

	return json.Marshal(v.text)
}

func (v *Value) UnmarshalJSON(p []byte) error {
	if string(p) == "null" {
		*v = Null
		return nil
	}

	var s string
	if err := json.Unmarshal(p, &s); err != nil {
		return err
	}

	*v = Text(s)

	return nil
}

func (r Row) clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}

	return c
}

// columns lists the row's column names in lexical order
func (r Row) columns() []string {
	names := maps.Keys(r)
	slices.Sort(names)

	return names
}

func encodeRow(r Row) (string, error) {
	p, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to serialize row: %v", ErrSerialization, err)
	}

	return string(p), nil
}

func decodeRow(key, s string) (Row, error) {
	var r Row

	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("%w: failed to deserialize row %s: %v", ErrSerialization, key, err)
	}

	if r == nil {
		r = Row{}
	}

	return r, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
