// Package store provides the ordered key-value collections that hold engine state.
package store

import (
	"cmp"

	"github.com/google/btree"
)

// OrderedMap is a sorted key-value collection.
type OrderedMap[K any, V any] interface {
	// Namespace identifies the collection in persistent storage.
	Namespace() string
	Len() int
	Get(key K) (V, bool)
	Contains(key K) bool
	// Insert stores value and returns the replaced one, if any.
	Insert(key K, value V) (V, bool)
	Remove(key K) (V, bool)
	Min() (K, V, bool)
	Max() (K, V, bool)
	// Above returns the first entry with a key strictly greater than key.
	Above(key K) (K, V, bool)
	// Below returns the last entry with a key strictly less than key.
	Below(key K) (K, V, bool)
	// Ascend visits entries with keys >= from until fn returns false.
	Ascend(from K, fn func(K, V) bool)
	// Descend visits entries with keys <= from until fn returns false.
	Descend(from K, fn func(K, V) bool)
	// Each visits all entries in ascending order until fn returns false.
	Each(fn func(K, V) bool)
	// Clone returns an independent copy. Copying is lazy.
	Clone() OrderedMap[K, V]
}

const btreeDegree = 16

type entry[K, V any] struct {
	key K
	val V
}

// BTreeMap is an OrderedMap backed by a copy-on-write B-tree.
type BTreeMap[K, V any] struct {
	ns   string
	less func(a, b K) bool
	tree *btree.BTreeG[entry[K, V]]
}

// NewBTreeMap creates an empty map ordered by less.
func NewBTreeMap[K, V any](namespace string, less func(a, b K) bool) *BTreeMap[K, V] {
	return &BTreeMap[K, V]{
		ns:   namespace,
		less: less,
		tree: btree.NewG(btreeDegree, func(a, b entry[K, V]) bool { return less(a.key, b.key) }),
	}
}

// NewOrdered creates an empty map over a naturally ordered key.
func NewOrdered[K cmp.Ordered, V any](namespace string) *BTreeMap[K, V] {
	return NewBTreeMap[K, V](namespace, cmp.Less[K])
}

func (m *BTreeMap[K, V]) Namespace() string { return m.ns }

func (m *BTreeMap[K, V]) Len() int { return m.tree.Len() }

func (m *BTreeMap[K, V]) Get(key K) (V, bool) {
	e, ok := m.tree.Get(entry[K, V]{key: key})
	return e.val, ok
}

func (m *BTreeMap[K, V]) Contains(key K) bool {
	return m.tree.Has(entry[K, V]{key: key})
}

func (m *BTreeMap[K, V]) Insert(key K, value V) (V, bool) {
	prev, ok := m.tree.ReplaceOrInsert(entry[K, V]{key: key, val: value})
	return prev.val, ok
}

func (m *BTreeMap[K, V]) Remove(key K) (V, bool) {
	prev, ok := m.tree.Delete(entry[K, V]{key: key})
	return prev.val, ok
}

func (m *BTreeMap[K, V]) Min() (K, V, bool) {
	e, ok := m.tree.Min()
	return e.key, e.val, ok
}

func (m *BTreeMap[K, V]) Max() (K, V, bool) {
	e, ok := m.tree.Max()
	return e.key, e.val, ok
}

func (m *BTreeMap[K, V]) Above(key K) (K, V, bool) {
	var found entry[K, V]
	var ok bool
	m.tree.AscendGreaterOrEqual(entry[K, V]{key: key}, func(e entry[K, V]) bool {
		if !m.less(key, e.key) {
			return true
		}
		found, ok = e, true
		return false
	})
	return found.key, found.val, ok
}

func (m *BTreeMap[K, V]) Below(key K) (K, V, bool) {
	var found entry[K, V]
	var ok bool
	m.tree.DescendLessOrEqual(entry[K, V]{key: key}, func(e entry[K, V]) bool {
		if !m.less(e.key, key) {
			return true
		}
		found, ok = e, true
		return false
	})
	return found.key, found.val, ok
}

func (m *BTreeMap[K, V]) Ascend(from K, fn func(K, V) bool) {
	m.tree.AscendGreaterOrEqual(entry[K, V]{key: from}, func(e entry[K, V]) bool {
		return fn(e.key, e.val)
	})
}

func (m *BTreeMap[K, V]) Descend(from K, fn func(K, V) bool) {
	m.tree.DescendLessOrEqual(entry[K, V]{key: from}, func(e entry[K, V]) bool {
		return fn(e.key, e.val)
	})
}

func (m *BTreeMap[K, V]) Each(fn func(K, V) bool) {
	m.tree.Ascend(func(e entry[K, V]) bool {
		return fn(e.key, e.val)
	})
}

func (m *BTreeMap[K, V]) Clone() OrderedMap[K, V] {
	return &BTreeMap[K, V]{ns: m.ns, less: m.less, tree: m.tree.Clone()}
}

// Keys collects all keys in ascending order.
func Keys[K, V any](m OrderedMap[K, V]) []K {
	out := make([]K, 0, m.Len())
	m.Each(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}
