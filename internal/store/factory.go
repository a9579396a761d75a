package store

import (
	"bytes"
	"cmp"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Factory hands out uniquely namespaced collections. A namespace is the
// Keccak256 of the factory root, the collection label and a running counter,
// so two collections never share storage keys.
type Factory struct {
	root    common.Hash
	counter uint64
}

// NewFactory derives the factory root from seed.
func NewFactory(seed string) *Factory {
	return &Factory{root: crypto.Keccak256Hash([]byte(seed))}
}

// Root returns the factory root namespace.
func (f *Factory) Root() common.Hash { return f.root }

// Issued returns how many namespaces the factory has handed out.
func (f *Factory) Issued() uint64 { return f.counter }

// Next returns a fresh namespace for label.
func (f *Factory) Next(label string) string {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], f.counter)
	f.counter++
	return crypto.Keccak256Hash(f.root.Bytes(), []byte(label), seq[:]).Hex()
}

// Fork returns a factory continuing from the same counter. Namespaces issued
// by the fork are identical to the ones the parent would issue, so a fork can
// stand in for the parent inside a transaction.
func (f *Factory) Fork() *Factory {
	clone := *f
	return &clone
}

// NewMap creates an empty map under a fresh namespace.
func NewMap[K, V any](f *Factory, label string, less func(a, b K) bool) *BTreeMap[K, V] {
	return NewBTreeMap[K, V](f.Next(label), less)
}

// AddressLess orders addresses bytewise.
func AddressLess(a, b common.Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// NewOrderedMap creates an empty naturally ordered map under a fresh namespace.
func NewOrderedMap[K cmp.Ordered, V any](f *Factory, label string) *BTreeMap[K, V] {
	return NewOrdered[K, V](f.Next(label))
}
