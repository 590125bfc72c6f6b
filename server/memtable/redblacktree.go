package memtable

import (
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/nStangl/tabledb/server/data"
)

type (
	RedBlackTree struct {
		tree  *redblacktree.Tree
		bytes int
		limit int
	}

	RedBlackTreeIterator struct {
		iter redblacktree.Iterator
	}
)

var (
	_ Table    = (*RedBlackTree)(nil)
	_ Iterator = (*RedBlackTreeIterator)(nil)
)

func NewRedBlackTree() *RedBlackTree {
	return NewRedBlackTreeWithLimit(MaxSize)
}

func NewRedBlackTreeWithLimit(limit int) *RedBlackTree {
	if limit <= 0 {
		limit = MaxSize
	}

	return &RedBlackTree{tree: redblacktree.NewWithStringComparator(), limit: limit}
}

func (t *RedBlackTree) Get(key string) (data.Entry, bool) {
	v, ok := t.tree.Get(key)
	if !ok {
		return data.Entry{}, false
	}

	return v.(data.Entry), true
}

func (t *RedBlackTree) Set(key, value string, ts int64) {
	t.Apply(data.NewSet(key, value, ts))
}

func (t *RedBlackTree) Del(key string, ts int64) {
	t.Apply(data.NewTombstone(key, ts))
}

// Apply stores e as is, keeping its timestamp. Used for log replay.
func (t *RedBlackTree) Apply(e data.Entry) {
	t.tree.Put(e.Key, e)
	t.bytes += e.Size()
}

func (t *RedBlackTree) IsFull() bool { return t.bytes >= t.limit }

func (t *RedBlackTree) Clear() {
	t.tree.Clear()
	t.bytes = 0
}

func (t *RedBlackTree) Size() int { return t.tree.Size() }

func (t *RedBlackTree) Bytes() int { return t.bytes }

func (t *RedBlackTree) Iterator() Iterator {
	return &RedBlackTreeIterator{iter: t.tree.Iterator()}
}

func (t *RedBlackTreeIterator) Next() bool { return t.iter.Next() }

func (t *RedBlackTreeIterator) Value() data.Entry {
	return t.iter.Value().(data.Entry)
}
