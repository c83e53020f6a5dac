package execution

import (
	"mit.edu/dsg/aggengine/common"
	"mit.edu/dsg/aggengine/storage"
)

// ExecutionHashTable is a generic, high-performance wrapper around a Go map keyed by tuples.
// It is optimized for single-threaded execution operators (Aggregates).
type ExecutionHashTable[T any] struct {
	// The map key is a string view of the tuple's encoding (storage.EncodeTuple). Go does not support byte
	// slices as keys. Values that compare equal encode identically, so they share a key.
	table      map[string]T
	keyColumns int

	// scratchBuffer is a reusable byte slice for serializing keys during lookups.
	scratchBuffer []byte
}

func NewExecutionHashTable[T any](keyColumns int) *ExecutionHashTable[T] {
	return &ExecutionHashTable[T]{
		table:      make(map[string]T),
		keyColumns: keyColumns,
	}
}

func (ht *ExecutionHashTable[T]) encode(key storage.Tuple) []byte {
	common.Assert(key.NumColumns() == ht.keyColumns, "key has %d columns, want %d", key.NumColumns(), ht.keyColumns)
	ht.scratchBuffer = storage.EncodeTuple(ht.scratchBuffer[:0], key)
	return ht.scratchBuffer
}

// Insert adds a value to the hash table.
// This handles the necessary allocation to persist the key.
func (ht *ExecutionHashTable[T]) Insert(key storage.Tuple, value T) {
	// Standard conversion: allocates memory and copies bytes.
	// We need do this anyway because the map needs to own the key string,
	// and scratchBuffer will be overwritten.
	ht.table[string(ht.encode(key))] = value
}

// Get returns the value matching the key.
func (ht *ExecutionHashTable[T]) Get(key storage.Tuple) (value T, exists bool) {
	// Go should automatically optimize and avoid a heap allocation here
	value, exists = ht.table[string(ht.encode(key))]
	return
}
