package log

import "github.com/nStangl/tabledb/server/data"

// Record is one logged mutation
type Record = data.Entry

func NewSet(key, val string, ts int64) Record {
	return data.NewSet(key, val, ts)
}

func NewTombstone(key string, ts int64) Record {
	return data.NewTombstone(key, ts)
}
