package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Entry is the unit written to the write-ahead log and to sstables.
// For a given key the entry with the greatest timestamp wins.
type Entry struct {
	Key       string
	Result    Result
	Timestamp int64
}

type wireEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
}

type wirePresent struct {
	Present *string `json:"Present"`
}

const deletedTag = "Deleted"

var ErrMalformedEntry = errors.New("malformed entry")

func NewSet(key, value string, ts int64) Entry {
	return Entry{Key: key, Result: Result{Kind: Present, Value: value}, Timestamp: ts}
}

func NewTombstone(key string, ts int64) Entry {
	return Entry{Key: key, Result: Result{Kind: Deleted}, Timestamp: ts}
}

func (e Entry) IsTombstone() bool { return e.Result.Kind == Deleted }

func (e Entry) String() string {
	return fmt.Sprintf("(%q, %s, %d)", e.Key, e.Result, e.Timestamp)
}

// Size is the contribution of the entry to a memtable size estimate
func (e Entry) Size() int {
	return len(e.Key) + len(e.Result.Value)
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var (
		v   []byte
		err error
	)

	switch e.Result.Kind {
	case Present:
		val := e.Result.Value
		v, err = json.Marshal(wirePresent{Present: &val})
	case Deleted:
		v, err = json.Marshal(deletedTag)
	default:
		return nil, fmt.Errorf("%w: cannot encode %s entry for key %q", ErrMalformedEntry, e.Result.Kind, e.Key)
	}

	if err != nil {
		return nil, err
	}

	return json.Marshal(wireEntry{Key: e.Key, Value: v, Timestamp: e.Timestamp})
}

func (e *Entry) UnmarshalJSON(p []byte) error {
	var w wireEntry
	if err := json.Unmarshal(p, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}

	if len(w.Value) == 0 {
		return fmt.Errorf("%w: missing value for key %q", ErrMalformedEntry, w.Key)
	}

	switch w.Value[0] {
	case '"':
		var tag string
		if err := json.Unmarshal(w.Value, &tag); err != nil || tag != deletedTag {
			return fmt.Errorf("%w: unknown value tag %s", ErrMalformedEntry, w.Value)
		}

		*e = NewTombstone(w.Key, w.Timestamp)
	case '{':
		var pr wirePresent
		if err := json.Unmarshal(w.Value, &pr); err != nil || pr.Present == nil {
			return fmt.Errorf("%w: bad present value %s", ErrMalformedEntry, w.Value)
		}

		*e = NewSet(w.Key, *pr.Present, w.Timestamp)
	default:
		return fmt.Errorf("%w: unexpected value %s", ErrMalformedEntry, w.Value)
	}

	return nil
}

// EncodeLine renders the entry as a single newline terminated line
func EncodeLine(e Entry) ([]byte, error) {
	p, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	return append(p, '\n'), nil
}

// DecodeLine parses one line produced by EncodeLine.
// Blank lines are reported with ok == false.
func DecodeLine(line []byte) (e Entry, ok bool, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Entry{}, false, nil
	}

	if err := json.Unmarshal(line, &e); err != nil {
		if !errors.Is(err, ErrMalformedEntry) {
			err = fmt.Errorf("%w: %v", ErrMalformedEntry, err)
		}

		return Entry{}, false, err
	}

	return e, true, nil
}
