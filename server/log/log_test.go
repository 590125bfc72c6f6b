package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nStangl/tabledb/server/data"
)

func TestLogAppendReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tbl", "wal.log")

	l, err := New(path)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", path, err)
	}

	records := []Record{
		NewSet("k1", "v1", 1),
		NewSet("k2", "", 2),
		NewTombstone("k1", 3),
		NewSet("k3", "line\nbreak \"quoted\"", 4),
	}

	for _, r := range records {
		if err := l.Append(r); err != nil {
			t.Fatalf("Append(%s) failed: %v", r, err)
		}
	}

	got, err := l.Replay()
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}

	if len(got) != len(records) {
		t.Fatalf("Replay() returned %d records but expected %d", len(got), len(records))
	}

	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d = %s but expected %s", i, got[i], records[i])
		}
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// reopening appends after what is there
	l, err = New(path)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", path, err)
	}
	defer l.Close()

	if err := l.Append(NewSet("k4", "v4", 5)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err = l.Replay()
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}

	if len(got) != len(records)+1 {
		t.Errorf("Replay() after reopen returned %d records but expected %d", len(got), len(records)+1)
	}
}

func TestLogWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	l, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if err := l.Append(NewSet("a", "1", 7)); err != nil {
		t.Fatal(err)
	}

	if err := l.Append(NewTombstone("a", 8)); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	expected := `{"key":"a","value":{"Present":"1"},"timestamp":7}` + "\n" +
		`{"key":"a","value":"Deleted","timestamp":8}` + "\n"

	if string(raw) != expected {
		t.Errorf("log contents = %q but expected %q", raw, expected)
	}
}

func TestLogClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	l, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := 0; i < 3; i++ {
		if err := l.Append(NewSet("k", "v", int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}

	if err := l.Append(NewSet("after", "v", 10)); err != nil {
		t.Fatal(err)
	}

	got, err := l.Replay()
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0].Key != "after" {
		t.Errorf("Replay() after Clear() = %v but expected only the later record", got)
	}
}

func TestLogReplayMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	content := strings.Join([]string{
		`{"key":"a","value":{"Present":"1"},"timestamp":1}`,
		``,
		`{"key":"b","value":"Gone","timestamp":2}`,
	}, "\n")

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if _, err := l.Replay(); !errors.Is(err, data.ErrMalformedEntry) {
		t.Errorf("Replay() error = %v but expected %v", err, data.ErrMalformedEntry)
	}
}
