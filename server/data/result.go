package data

import "fmt"

type (
	Result struct {
		Kind  ResultKind
		Value string
	}

	ResultKind uint8

	// KV is a live key value pair as returned by full scans
	KV struct {
		Key   string
		Value string
	}
)

const (
	Present ResultKind = iota + 1
	Deleted
	Missing
)

var (
	resultKindStr = []string{"present", "deleted", "missing"}
)

func (k ResultKind) String() string {
	if k == 0 || int(k) > len(resultKindStr) {
		return "unknown"
	}

	return resultKindStr[k-1]
}

func (r Result) String() string {
	switch r.Kind {
	case Missing, Deleted:
		return fmt.Sprintf("(%s)", r.Kind)
	case Present:
		return fmt.Sprintf("(%s, %q)", r.Kind, r.Value)
	default:
		return ""
	}
}

// Found reports whether the result carries a live value
func (r Result) Found() bool { return r.Kind == Present }
